package service

import (
	"fmt"
	"time"

	"github.com/dilshat/birthday-sender/dao"
	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/util"
)

// maxBackoffShift caps the backoff doubling
const maxBackoffShift = 16

// DispatchQueue is the durable store of undelivered messages.
// A message leaves the queue only through Complete or by reaching the retry ceiling in Fail.
type DispatchQueue interface {
	//Enqueue stores a message with its retry count unchanged; false if it is queued already
	Enqueue(msg model.OutboundMessage) (bool, error)
	//Due returns up to limit messages ready for an attempt, oldest first
	Due(limit int) ([]model.OutboundMessage, error)
	//Complete removes a delivered (or undeliverable) message
	Complete(msg model.OutboundMessage) error
	//Fail records failed attempts; it returns true when the message became a permanent failure and was removed
	Fail(msg model.OutboundMessage, attempts int, cause error) (bool, error)
	List() ([]model.OutboundMessage, error)
	Len() (int, error)
}

type dispatchQueue struct {
	dao         dao.QueueDao
	clock       util.Clock
	maxRetries  int
	backoffBase time.Duration
}

func NewDispatchQueue(queueDao dao.QueueDao, clock util.Clock, maxRetries int, backoffBase time.Duration) DispatchQueue {
	return &dispatchQueue{dao: queueDao, clock: clock, maxRetries: maxRetries, backoffBase: backoffBase}
}

func (q *dispatchQueue) Enqueue(msg model.OutboundMessage) (bool, error) {
	now := q.clock.Now()
	msg.EnqueuedAt = now
	if msg.NextAttemptAt.IsZero() {
		msg.NextAttemptAt = now
	}
	added, err := q.dao.Enqueue(&msg)
	if err != nil {
		return false, fmt.Errorf("enqueuing message %s: %w", msg.Key, err)
	}
	return added, nil
}

func (q *dispatchQueue) Due(limit int) ([]model.OutboundMessage, error) {
	messages, err := q.dao.Due(q.clock.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("reading due messages: %w", err)
	}
	return messages, nil
}

func (q *dispatchQueue) Complete(msg model.OutboundMessage) error {
	if msg.Id == 0 {
		return nil
	}
	if err := q.dao.Remove(msg.Id); err != nil {
		return fmt.Errorf("removing message %d: %w", msg.Id, err)
	}
	return nil
}

func (q *dispatchQueue) Fail(msg model.OutboundMessage, attempts int, cause error) (bool, error) {
	msg.RetryCount += attempts
	if cause != nil {
		msg.LastError = cause.Error()
	}

	if msg.RetryCount >= q.maxRetries {
		return true, q.Complete(msg)
	}

	now := q.clock.Now()
	msg.NextAttemptAt = now.Add(q.Backoff(msg.RetryCount))
	if msg.Id == 0 {
		msg.EnqueuedAt = now
		if _, err := q.dao.Enqueue(&msg); err != nil {
			return false, fmt.Errorf("enqueuing message %s: %w", msg.Key, err)
		}
		return false, nil
	}
	if err := q.dao.Update(&msg); err != nil {
		return false, fmt.Errorf("updating message %d: %w", msg.Id, err)
	}
	return false, nil
}

// Backoff is the delay before the next attempt after the given number of failures
func (q *dispatchQueue) Backoff(failures int) time.Duration {
	return backoff(q.backoffBase, failures)
}

func backoff(base time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	shift := failures - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << uint(shift)
}

func (q *dispatchQueue) List() ([]model.OutboundMessage, error) {
	return q.dao.GetAll()
}

func (q *dispatchQueue) Len() (int, error) {
	return q.dao.Count()
}
