package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/service/dto"
	"github.com/dilshat/birthday-sender/sms"
	"github.com/dilshat/birthday-sender/util"
	"go.uber.org/zap"
)

// RetryEngine owns the send-or-queue path of messages.
//
// Deliver handles a fresh message: it retries transient failures in place with
// exponential backoff up to a small attempt ceiling and then falls back to the
// durable queue. Drain gives every due queued message one attempt per pass; the
// queue itself is the backoff between passes.
type RetryEngine interface {
	Deliver(ctx context.Context, msg model.OutboundMessage, report *dto.RunReport) error
	Drain(ctx context.Context, report *dto.RunReport) error
}

type retryEngine struct {
	queue     DispatchQueue
	limiter   RateLimiter
	dedup     DedupTracker
	transport sms.Transport
	notifier  Notifier
	clock     util.Clock
	phoneRx   *regexp.Regexp

	backoffBase time.Duration
	ceiling     int
	maxRetries  int
	delay       time.Duration
	batch       int
}

func NewRetryEngine(queue DispatchQueue, limiter RateLimiter, dedup DedupTracker, transport sms.Transport,
	notifier Notifier, clock util.Clock, phoneRx *regexp.Regexp, cfg Config) RetryEngine {
	return &retryEngine{
		queue:       queue,
		limiter:     limiter,
		dedup:       dedup,
		transport:   transport,
		notifier:    notifier,
		clock:       clock,
		phoneRx:     phoneRx,
		backoffBase: cfg.BackoffBase,
		ceiling:     cfg.BackoffCeilingAttempts,
		maxRetries:  cfg.MaxRetries,
		delay:       cfg.InterMessageDelay,
		batch:       cfg.DrainBatch,
	}
}

func (e *retryEngine) Deliver(ctx context.Context, msg model.OutboundMessage, report *dto.RunReport) error {
	logger := zap.L().With(zap.String("key", msg.Key))

	if !e.phoneRx.MatchString(msg.RecipientPhone) {
		logger.Warn("Invalid recipient phone, message dropped")
		report.Invalid++
		return nil
	}

	notified, err := e.dedup.HasNotified(msg.RecipientPhone, msg.SubjectId, msg.OccurrenceYear())
	if err != nil {
		return err
	}
	if notified {
		report.Skipped++
		return nil
	}

	ceiling := e.attemptCeiling(msg)
	attempts := 0
	var lastErr error
	for {
		if !e.limiter.IsWithinSendingHours(e.clock.Now()) {
			logger.Info("Outside sending hours, message queued")
			return e.park(msg, attempts, lastErr, report)
		}
		ok, err := e.limiter.TryReserve()
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("Hourly limit reached, message queued")
			return e.park(msg, attempts, lastErr, report)
		}

		err = e.transport.Send(ctx, msg)
		switch {
		case err == nil:
			if err = e.confirm(msg); err != nil {
				return err
			}
			countSent(report, msg.Kind)
			return e.pace(ctx)
		case isInvalidRecipient(err):
			logger.Warn("Recipient rejected by provider, message dropped", zap.Error(err))
			report.Invalid++
			return e.pace(ctx)
		case isPermissionDenied(err):
			if parkErr := e.park(msg, attempts, lastErr, report); parkErr != nil {
				return parkErr
			}
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case ctx.Err() != nil:
			//interrupted, not a failed attempt
			if parkErr := e.park(msg, attempts, lastErr, report); parkErr != nil {
				return parkErr
			}
			return ctx.Err()
		}

		attempts++
		lastErr = err
		if attempts >= ceiling {
			logger.Warn("Send failed, giving up for this run", zap.Int("attempts", attempts), zap.Error(err))
			if err = e.park(msg, attempts, lastErr, report); err != nil {
				return err
			}
			return e.pace(ctx)
		}

		delay := backoff(e.backoffBase, attempts)
		logger.Warn("Send failed, retrying", zap.Int("attempt", attempts), zap.Duration("backoff", delay), zap.Error(err))
		if err = e.clock.Sleep(ctx, delay); err != nil {
			if parkErr := e.park(msg, attempts, lastErr, report); parkErr != nil {
				return parkErr
			}
			return err
		}
	}
}

func (e *retryEngine) Drain(ctx context.Context, report *dto.RunReport) error {
	messages, err := e.queue.Due(e.batch)
	if err != nil {
		return err
	}
	if len(messages) > 0 {
		zap.L().Info("Draining dispatch queue", zap.Int("due", len(messages)))
	}

	for _, msg := range messages {
		if err = ctx.Err(); err != nil {
			return err
		}
		logger := zap.L().With(zap.String("key", msg.Key), zap.Int("retryCount", msg.RetryCount))

		if !e.limiter.IsWithinSendingHours(e.clock.Now()) {
			logger.Info("Outside sending hours, drain stopped")
			return nil
		}
		if !e.phoneRx.MatchString(msg.RecipientPhone) {
			logger.Warn("Invalid recipient phone, queued message dropped")
			report.Invalid++
			if err = e.queue.Complete(msg); err != nil {
				return err
			}
			continue
		}
		notified, err := e.dedup.HasNotified(msg.RecipientPhone, msg.SubjectId, msg.OccurrenceYear())
		if err != nil {
			return err
		}
		if notified {
			report.Skipped++
			if err = e.queue.Complete(msg); err != nil {
				return err
			}
			continue
		}
		ok, err := e.limiter.TryReserve()
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("Hourly limit reached, drain stopped")
			return nil
		}

		err = e.transport.Send(ctx, msg)
		switch {
		case err == nil:
			if err = e.confirm(msg); err != nil {
				return err
			}
			report.RetriedSent++
		case isInvalidRecipient(err):
			logger.Warn("Recipient rejected by provider, queued message dropped", zap.Error(err))
			report.Invalid++
			if err = e.queue.Complete(msg); err != nil {
				return err
			}
		case isPermissionDenied(err):
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			logger.Warn("Queued message send failed", zap.Error(err))
			if _, err = e.fail(msg, 1, err, report); err != nil {
				return err
			}
		}

		if err = e.pace(ctx); err != nil {
			return err
		}
	}
	return nil
}

// park stores a message that was not sent now. Failed attempts made so far are recorded.
// attemptCeiling is the number of in-run attempts left to msg; it never takes RetryCount past maxRetries
func (e *retryEngine) attemptCeiling(msg model.OutboundMessage) int {
	ceiling := e.ceiling
	if left := e.maxRetries - msg.RetryCount; left < ceiling {
		ceiling = left
	}
	if ceiling < 1 {
		ceiling = 1
	}
	return ceiling
}

func (e *retryEngine) park(msg model.OutboundMessage, attempts int, cause error, report *dto.RunReport) error {
	if attempts > 0 {
		permanent, err := e.fail(msg, attempts, cause, report)
		if err != nil || permanent {
			return err
		}
	} else if _, err := e.queue.Enqueue(msg); err != nil {
		return err
	}
	report.Queued++
	return nil
}

func (e *retryEngine) fail(msg model.OutboundMessage, attempts int, cause error, report *dto.RunReport) (bool, error) {
	permanent, err := e.queue.Fail(msg, attempts, cause)
	if err != nil || !permanent {
		return false, err
	}

	msg.RetryCount += attempts
	zap.L().Error("Message permanently failed",
		zap.String("key", msg.Key), zap.Int("retryCount", msg.RetryCount), zap.Error(cause))
	report.PermanentFailures++
	e.notifier.NotifyPermanentFailure(msg, cause)
	return true, nil
}

// confirm records a confirmed delivery and releases the queue entry if any
func (e *retryEngine) confirm(msg model.OutboundMessage) error {
	if err := e.dedup.MarkNotified(msg.RecipientPhone, msg.SubjectId, msg.OccurrenceYear()); err != nil {
		return err
	}
	return e.queue.Complete(msg)
}

func (e *retryEngine) pace(ctx context.Context) error {
	return e.clock.Sleep(ctx, e.delay)
}

func countSent(report *dto.RunReport, kind model.MessageKind) {
	switch kind {
	case model.DIRECT:
		report.DirectSent++
	case model.PEER:
		report.PeerSent++
	case model.HOD:
		report.HodSent++
	}
}
