package service

import (
	"errors"
	"testing"
	"time"

	"github.com/dilshat/birthday-sender/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(n int, kind model.MessageKind) model.OutboundMessage {
	subject := student(1, 3, 15, "CS", "3", "G1")
	subject.Id = 1
	return model.NewOutboundMessage(phone(n), subject, kind, testNow)
}

func TestEnqueueIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	queue := env.queue()
	msg := testMessage(2, model.PEER)

	added, err := queue.Enqueue(msg)
	require.NoError(t, err)
	require.True(t, added)

	added, err = queue.Enqueue(msg)
	require.NoError(t, err)
	assert.False(t, added)

	count, err := queue.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	queued := env.queued(t)
	assert.Equal(t, 0, queued[0].RetryCount)
	assert.WithinDuration(t, testNow, queued[0].EnqueuedAt, 0)
	assert.WithinDuration(t, testNow, queued[0].NextAttemptAt, 0)
}

func TestDueRespectsNextAttempt(t *testing.T) {
	env := newTestEnv(t)
	queue := env.queue()

	require.NoError(t, justEnqueue(queue, testMessage(2, model.PEER)))
	permanent, err := queue.Fail(testMessage(3, model.PEER), 1, errFlaky)
	require.NoError(t, err)
	require.False(t, permanent)

	due, err := queue.Due(10)
	require.NoError(t, err)
	assert.Equal(t, []string{phone(2)}, phones(due))

	env.clock.Advance(env.cfg.BackoffBase)
	due, err = queue.Due(10)
	require.NoError(t, err)
	assert.Equal(t, []string{phone(2), phone(3)}, phones(due))

	due, err = queue.Due(1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestFailSchedulesBackoff(t *testing.T) {
	env := newTestEnv(t)
	queue := env.queue()
	require.NoError(t, justEnqueue(queue, testMessage(2, model.PEER)))

	msg := env.queued(t)[0]
	permanent, err := queue.Fail(msg, 1, errFlaky)
	require.NoError(t, err)
	require.False(t, permanent)

	msg = env.queued(t)[0]
	assert.Equal(t, 1, msg.RetryCount)
	assert.Equal(t, errFlaky.Error(), msg.LastError)
	assert.WithinDuration(t, testNow.Add(10*time.Second), msg.NextAttemptAt, 0)

	permanent, err = queue.Fail(msg, 2, errFlaky)
	require.NoError(t, err)
	require.False(t, permanent)

	msg = env.queued(t)[0]
	assert.Equal(t, 3, msg.RetryCount)
	assert.WithinDuration(t, testNow.Add(40*time.Second), msg.NextAttemptAt, 0)
}

func TestFailReachingMaxRetriesRemoves(t *testing.T) {
	env := newTestEnv(t)
	queue := env.queue()
	require.NoError(t, justEnqueue(queue, testMessage(2, model.PEER)))

	msg := env.queued(t)[0]
	msg.RetryCount = env.cfg.MaxRetries - 1
	permanent, err := queue.Fail(msg, 1, errors.New("gone"))

	require.NoError(t, err)
	assert.True(t, permanent)
	assert.Empty(t, env.queued(t))
}

func TestCompleteRemoves(t *testing.T) {
	env := newTestEnv(t)
	queue := env.queue()
	require.NoError(t, justEnqueue(queue, testMessage(2, model.PEER)))

	require.NoError(t, queue.Complete(env.queued(t)[0]))
	assert.Empty(t, env.queued(t))

	//not queued
	assert.NoError(t, queue.Complete(testMessage(3, model.PEER)))
}

func TestBackoff(t *testing.T) {
	base := 10 * time.Second

	assert.Equal(t, time.Duration(0), backoff(base, 0))
	assert.Equal(t, 10*time.Second, backoff(base, 1))
	assert.Equal(t, 20*time.Second, backoff(base, 2))
	assert.Equal(t, 40*time.Second, backoff(base, 3))
	assert.Equal(t, backoff(base, maxBackoffShift+1), backoff(base, 100))
}

func justEnqueue(queue DispatchQueue, msg model.OutboundMessage) error {
	_, err := queue.Enqueue(msg)
	return err
}
