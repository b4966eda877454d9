package service

import (
	"errors"

	"github.com/dilshat/birthday-sender/sms"
)

var (
	// ErrRunInProgress is returned when a run is triggered while another one is active
	ErrRunInProgress = errors.New("dispatch run already in progress")
	// ErrPermissionDenied aborts a run: the transport is not allowed to send
	ErrPermissionDenied = errors.New("sending permission denied")
)

func isInvalidRecipient(err error) bool {
	var target *sms.InvalidRecipientErr
	return errors.As(err, &target)
}

func isPermissionDenied(err error) bool {
	var target *sms.PermissionDeniedErr
	return errors.As(err, &target)
}
