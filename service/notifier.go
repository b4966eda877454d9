package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/service/dto"
	"github.com/dilshat/birthday-sender/util"
	"go.uber.org/zap"
)

// Notifier is the user visible failure channel
type Notifier interface {
	NotifyPermanentFailure(msg model.OutboundMessage, cause error)
	NotifyPermissionDenied(err error)
}

// NewNotifier returns a notifier that always logs and also posts to the web hook when one is configured
func NewNotifier(webhook string, clock util.Clock) Notifier {
	notifiers := MultiNotifier{&logNotifier{}}
	if !util.IsBlank(webhook) {
		notifiers = append(notifiers, NewWebhookNotifier(webhook, clock))
	}
	return notifiers
}

type MultiNotifier []Notifier

func (m MultiNotifier) NotifyPermanentFailure(msg model.OutboundMessage, cause error) {
	for _, n := range m {
		n.NotifyPermanentFailure(msg, cause)
	}
}

func (m MultiNotifier) NotifyPermissionDenied(err error) {
	for _, n := range m {
		n.NotifyPermissionDenied(err)
	}
}

type logNotifier struct{}

func (l *logNotifier) NotifyPermanentFailure(msg model.OutboundMessage, cause error) {
	zap.L().Error("Birthday message could not be delivered",
		zap.String("phone", msg.RecipientPhone),
		zap.String("subject", msg.SubjectName),
		zap.String("kind", string(msg.Kind)),
		zap.Int("retryCount", msg.RetryCount),
		zap.Error(cause))
}

func (l *logNotifier) NotifyPermissionDenied(err error) {
	zap.L().Error("Sending is not permitted, run aborted", zap.Error(err))
}

type webhookNotifier struct {
	webhook    string
	httpClient *http.Client
	clock      util.Clock
}

func NewWebhookNotifier(webhook string, clock util.Clock) Notifier {
	return &webhookNotifier{
		webhook:    webhook,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      clock,
	}
}

func (w *webhookNotifier) NotifyPermanentFailure(msg model.OutboundMessage, cause error) {
	failure := dto.Failure{
		Type:           dto.PERMANENT_FAILURE,
		RecipientPhone: msg.RecipientPhone,
		SubjectName:    msg.SubjectName,
		Kind:           string(msg.Kind),
		RetryCount:     msg.RetryCount,
		At:             w.clock.Now(),
	}
	if cause != nil {
		failure.Error = cause.Error()
	}
	w.post(failure)
}

func (w *webhookNotifier) NotifyPermissionDenied(err error) {
	w.post(dto.Failure{Type: dto.PERMISSION_DENIED, Error: err.Error(), At: w.clock.Now()})
}

func (w *webhookNotifier) post(failure dto.Failure) {
	body, err := json.Marshal(failure)
	if err != nil {
		zap.L().Error("Error encoding failure", zap.Error(err))
		return
	}

	req, err := http.NewRequest("POST", w.webhook, bytes.NewBuffer(body))
	if err != nil {
		zap.L().Error("Error calling web hook", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		zap.L().Error("Error calling web hook", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if !(resp.StatusCode >= 200 && resp.StatusCode <= 202) {
		zap.L().Warn("Webhook returned unexpected status", zap.String("status", resp.Status))
	}
}
