package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cskr/pubsub"
	"github.com/dilshat/birthday-sender/model"
	"go.uber.org/zap"
)

const (
	SUBMIT_RESP = "submit_resp"

	//submit_sm_resp command statuses
	STATUS_OK             uint32 = 0x00
	STATUS_INV_BND_STS    uint32 = 0x04
	STATUS_INV_DST_ADR    uint32 = 0x0B
	STATUS_BIND_FAIL      uint32 = 0x0D
	STATUS_INV_PASSWORD   uint32 = 0x0E
	STATUS_INV_SYSTEM_ID  uint32 = 0x0F
	STATUS_THROTTLED      uint32 = 0x58
	STATUS_SUBMIT_FAILED  uint32 = 0x45
	STATUS_SYSTEM_ERROR   uint32 = 0x08
	STATUS_MSG_Q_FULL     uint32 = 0x14
	STATUS_INV_SOURCE_ADR uint32 = 0x0A
)

var errNotConnected = errors.New("not connected to SMSC")

// Transport delivers a single message and reports the outcome synchronously
type Transport interface {
	Send(ctx context.Context, msg model.OutboundMessage) error
}

type Sender interface {
	Transport
	Start(ctx context.Context) error
}

type sender struct {
	smppClient    SmppClient
	renderer      Renderer
	ps            *pubsub.PubSub
	from          string
	submitTimeout time.Duration
	retryInterval time.Duration
}

func NewSender(smppClient SmppClient, renderer Renderer, from string, submitTimeout time.Duration) Sender {
	return &sender{
		smppClient:    smppClient,
		renderer:      renderer,
		ps:            pubsub.New(16),
		from:          from,
		submitTimeout: submitTimeout,
		retryInterval: time.Second,
	}
}

// Start connects to the SMSC and keeps the link and the reader running until ctx is done.
// A failed initial connection is not fatal, the link is retried in background.
func (s *sender) Start(ctx context.Context) error {
	err := s.smppClient.Connect()
	if err != nil {
		zap.L().Warn("Initial SMSC connection failed, will retry", zap.Error(err))
	}

	go s.readPackets(ctx)
	go s.checkConnection(ctx)

	go func() {
		<-ctx.Done()
		s.smppClient.Disconnect()
	}()

	return nil
}

func (s *sender) readPackets(ctx context.Context) {
	for ctx.Err() == nil {
		if !s.smppClient.IsConnected() {
			sleep(ctx, s.retryInterval)
			continue
		}
		result, err := s.smppClient.ReadPacket()
		if err != nil {
			continue
		}
		if result != nil {
			s.ps.TryPub(*result, SUBMIT_RESP)
		}
	}
}

func (s *sender) checkConnection(ctx context.Context) {
	for ctx.Err() == nil {
		if !s.smppClient.IsConnected() {
			err := s.smppClient.Reconnect()
			if err != nil {
				zap.L().Error("Reconnect failed", zap.Error(err))
			}
		}
		sleep(ctx, s.retryInterval)
	}
}

func (s *sender) Send(ctx context.Context, msg model.OutboundMessage) error {
	if !s.smppClient.IsConnected() {
		return NewTransientError(errNotConnected)
	}

	text, err := s.renderer.Render(msg)
	if err != nil {
		return NewTransientError(err)
	}

	//subscribe before submitting so the response can not be missed
	responses := s.ps.Sub(SUBMIT_RESP)
	defer s.ps.Unsub(responses, SUBMIT_RESP)

	seq, err := s.smppClient.SendMessage(ctx, s.from, msg.RecipientPhone, text)
	if err != nil {
		var transient *TransientErr
		if errors.As(err, &transient) {
			return err
		}
		return NewTransientError(err)
	}

	timer := time.NewTimer(s.submitTimeout)
	defer timer.Stop()

	for {
		select {
		case val, ok := <-responses:
			if !ok {
				return NewTransientError(errNotConnected)
			}
			result := val.(SubmitResult)
			if result.Seq != seq {
				//late response of an earlier submit
				continue
			}
			return classify(result.Status, msg.RecipientPhone)
		case <-timer.C:
			return NewTransientError(fmt.Errorf("no submit_sm_resp for seq %d within %s", seq, s.submitTimeout))
		case <-ctx.Done():
			return NewTransientError(ctx.Err())
		}
	}
}

func classify(status uint32, phone string) error {
	switch status {
	case STATUS_OK:
		return nil
	case STATUS_INV_DST_ADR:
		return NewInvalidRecipientError(phone)
	case STATUS_INV_BND_STS, STATUS_BIND_FAIL, STATUS_INV_PASSWORD, STATUS_INV_SYSTEM_ID, STATUS_INV_SOURCE_ADR:
		return NewPermissionDeniedError(fmt.Sprintf("submit_sm rejected with status 0x%02X", status))
	default:
		return NewTransientError(fmt.Errorf("submit_sm failed with status 0x%02X", status))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
