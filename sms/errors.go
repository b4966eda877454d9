package sms

import "fmt"

// InvalidRecipientErr is returned when the phone number is rejected. Such messages are never retried.
type InvalidRecipientErr struct {
	Phone string
}

func (e *InvalidRecipientErr) Error() string {
	return "invalid recipient " + e.Phone
}

func NewInvalidRecipientError(phone string) *InvalidRecipientErr {
	return &InvalidRecipientErr{Phone: phone}
}

// PermissionDeniedErr is returned when the provider refuses to let us send at all
type PermissionDeniedErr struct {
	Reason string
}

func (e *PermissionDeniedErr) Error() string {
	return "permission denied: " + e.Reason
}

func NewPermissionDeniedError(reason string) *PermissionDeniedErr {
	return &PermissionDeniedErr{Reason: reason}
}

// TransientErr is a send failure that may succeed on retry
type TransientErr struct {
	Cause error
}

func (e *TransientErr) Error() string {
	return fmt.Sprintf("transient send failure: %v", e.Cause)
}

func (e *TransientErr) Unwrap() error {
	return e.Cause
}

func NewTransientError(cause error) *TransientErr {
	return &TransientErr{Cause: cause}
}
