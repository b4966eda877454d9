package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dilshat/birthday-sender/dao"
	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/util/clocktest"
	"github.com/stretchr/testify/require"
)

var (
	errFlaky = errors.New("provider busy")
	// 2024-03-15 09:00, a Friday
	testNow = time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)
)

type mockTransport struct {
	mu       sync.Mutex
	sent     []model.OutboundMessage
	calls    int
	sendFunc func(ctx context.Context, msg model.OutboundMessage, call int) error
}

func (m *mockTransport) Send(ctx context.Context, msg model.OutboundMessage) error {
	m.mu.Lock()
	m.calls++
	call, sendFunc := m.calls, m.sendFunc
	m.mu.Unlock()

	var err error
	if sendFunc != nil {
		err = sendFunc(ctx, msg, call)
	}
	if err == nil {
		m.mu.Lock()
		m.sent = append(m.sent, msg)
		m.mu.Unlock()
	}
	return err
}

func (m *mockTransport) Sent() []model.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.OutboundMessage(nil), m.sent...)
}

func (m *mockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// failFirst fails the first n calls with errFlaky
func failFirst(n int) func(context.Context, model.OutboundMessage, int) error {
	return func(_ context.Context, _ model.OutboundMessage, call int) error {
		if call <= n {
			return errFlaky
		}
		return nil
	}
}

type mockNotifier struct {
	mu                sync.Mutex
	permanentFailures []model.OutboundMessage
	permissionDenied  []error
}

func (m *mockNotifier) NotifyPermanentFailure(msg model.OutboundMessage, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permanentFailures = append(m.permanentFailures, msg)
}

func (m *mockNotifier) NotifyPermissionDenied(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissionDenied = append(m.permissionDenied, err)
}

type testEnv struct {
	cfg       Config
	records   dao.RecordDao
	queueDao  dao.QueueDao
	marks     dao.SentMarkDao
	markers   dao.MarkerDao
	kv        dao.KvDao
	clock     *clocktest.FakeClock
	transport *mockTransport
	notifier  *mockNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := dao.Open(filepath.Join(t.TempDir(), "storm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &testEnv{
		cfg:       DefaultConfig(),
		records:   dao.NewRecordDao(db),
		queueDao:  dao.NewQueueDao(db),
		marks:     dao.NewSentMarkDao(db),
		markers:   dao.NewMarkerDao(db),
		kv:        dao.NewKvDao(db),
		clock:     clocktest.NewFakeClock(testNow),
		transport: &mockTransport{},
		notifier:  &mockNotifier{},
	}
}

func (e *testEnv) stores() Stores {
	return Stores{Records: e.records, Queue: e.queueDao, Marks: e.marks, Markers: e.markers, Kv: e.kv}
}

func (e *testEnv) engine(t *testing.T) Engine {
	return e.seededEngine(t, 1)
}

func (e *testEnv) seededEngine(t *testing.T, seed int64) Engine {
	engine, err := NewEngine(e.cfg, e.stores(), e.transport, e.notifier, e.clock, rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return engine
}

func (e *testEnv) queue() DispatchQueue {
	return NewDispatchQueue(e.queueDao, e.clock, e.cfg.MaxRetries, e.cfg.BackoffBase)
}

func (e *testEnv) dedup() DedupTracker {
	return NewDedupTracker(e.marks, e.clock)
}

func (e *testEnv) retryEngine() RetryEngine {
	limiter := NewRateLimiter(e.kv, e.clock, e.cfg.HourlyLimit, e.cfg.RateWindow, e.cfg.SendingWindowEndHour)
	return NewRetryEngine(e.queue(), limiter, e.dedup(), e.transport, e.notifier, e.clock,
		regexp.MustCompile(e.cfg.PhoneMask), e.cfg)
}

func (e *testEnv) queued(t *testing.T) []model.OutboundMessage {
	messages, err := e.queueDao.GetAll()
	require.NoError(t, err)
	return messages
}

func (e *testEnv) addRecord(t *testing.T, record model.BirthdayRecord) model.BirthdayRecord {
	require.NoError(t, e.records.Create(&record))
	return record
}

func phone(n int) string {
	return fmt.Sprintf("99670000%04d", n)
}

func student(n int, month, day int, department, year, group string) model.BirthdayRecord {
	return model.BirthdayRecord{
		Name:       fmt.Sprintf("Student %d", n),
		Phone:      phone(n),
		BirthMonth: month,
		BirthDay:   day,
		PersonType: model.STUDENT,
		Department: department,
		Year:       year,
		GroupId:    group,
	}
}

func staff(n int, month, day int, department, group string, hod bool) model.BirthdayRecord {
	return model.BirthdayRecord{
		Name:       fmt.Sprintf("Staff %d", n),
		Phone:      phone(n),
		BirthMonth: month,
		BirthDay:   day,
		PersonType: model.STAFF,
		Department: department,
		GroupId:    group,
		IsHod:      hod,
	}
}

func phones(messages []model.OutboundMessage) []string {
	res := make([]string, 0, len(messages))
	for _, m := range messages {
		res = append(res, m.RecipientPhone)
	}
	return res
}

func ofKind(messages []model.OutboundMessage, kind model.MessageKind) []model.OutboundMessage {
	var res []model.OutboundMessage
	for _, m := range messages {
		if m.Kind == kind {
			res = append(res, m)
		}
	}
	return res
}
