package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/uniuri"
	"github.com/dilshat/birthday-sender/dao"
	"github.com/dilshat/birthday-sender/log"
	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/service/dto"
	"github.com/dilshat/birthday-sender/sms"
	"github.com/dilshat/birthday-sender/util"
	"go.uber.org/zap"
)

// Engine runs the daily birthday dispatch. Only one run is active at a time.
type Engine interface {
	//Run processes yesterday and today, then drains the queue; ErrRunInProgress if a run is active
	Run(ctx context.Context) (dto.RunReport, error)
	//LastReport returns the report of the last finished run
	LastReport() (dto.RunReport, bool)
	//Queue lists undelivered messages
	Queue() ([]model.OutboundMessage, error)
}

// Stores groups the durable state the engine works on
type Stores struct {
	Records RecordStore
	Queue   dao.QueueDao
	Marks   dao.SentMarkDao
	Markers dao.MarkerDao
	Kv      dao.KvDao
}

type dispatchEngine struct {
	records  RecordStore
	markers  dao.MarkerDao
	queue    DispatchQueue
	selector PeerSelector
	retry    RetryEngine
	notifier Notifier
	clock    util.Clock

	markerStoreDays int

	running atomic.Bool
	mu      sync.Mutex
	last    *dto.RunReport
}

func NewEngine(cfg Config, stores Stores, transport sms.Transport, notifier Notifier, clock util.Clock, rnd RandSource) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dispatch config: %w", err)
	}
	phoneRx := regexp.MustCompile(cfg.PhoneMask)

	queue := NewDispatchQueue(stores.Queue, clock, cfg.MaxRetries, cfg.BackoffBase)
	limiter := NewRateLimiter(stores.Kv, clock, cfg.HourlyLimit, cfg.RateWindow, cfg.SendingWindowEndHour)
	dedup := NewDedupTracker(stores.Marks, clock)

	return &dispatchEngine{
		records:         stores.Records,
		markers:         stores.Markers,
		queue:           queue,
		selector:        NewPeerSelector(stores.Records, rnd, phoneRx, cfg.MaxStudentPeers, cfg.MaxStaffPeers, cfg.MaxHod),
		retry:           NewRetryEngine(queue, limiter, dedup, transport, notifier, clock, phoneRx, cfg),
		notifier:        notifier,
		clock:           clock,
		markerStoreDays: cfg.MarkerStoreDays,
	}, nil
}

func (e *dispatchEngine) Run(ctx context.Context) (dto.RunReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return dto.RunReport{}, ErrRunInProgress
	}
	defer e.running.Store(false)

	report := dto.RunReport{RunId: uniuri.NewLen(8), StartedAt: e.clock.Now(), Dates: []string{}}
	logger := zap.L().With(zap.String("run", report.RunId))
	logger.Info("Dispatch run started")

	err := e.run(ctx, logger, &report)
	report.FinishedAt = e.clock.Now()
	if err != nil {
		report.Aborted = true
		report.Error = err.Error()
		if errors.Is(err, ErrPermissionDenied) {
			e.notifier.NotifyPermissionDenied(err)
		}
		logger.Error("Dispatch run aborted", zap.Error(err))
	} else {
		logger.Info("Dispatch run finished",
			zap.Strings("dates", report.Dates),
			zap.Int("direct", report.DirectSent),
			zap.Int("peer", report.PeerSent),
			zap.Int("hod", report.HodSent),
			zap.Int("retried", report.RetriedSent),
			zap.Int("queued", report.Queued),
			zap.Int("permanentFailures", report.PermanentFailures))
	}

	e.mu.Lock()
	e.last = &report
	e.mu.Unlock()
	return report, err
}

func (e *dispatchEngine) run(ctx context.Context, logger *zap.Logger, report *dto.RunReport) error {
	today := util.StartOfDay(e.clock.Now())
	for _, date := range []time.Time{today.AddDate(0, 0, -1), today} {
		if err := e.processDate(ctx, logger, date, report); err != nil {
			return err
		}
	}

	if err := e.retry.Drain(ctx, report); err != nil {
		return err
	}

	if e.markerStoreDays > 0 {
		before := today.AddDate(0, 0, -e.markerStoreDays).Format(model.DateLayout)
		log.WarnIfErr("Error pruning processed markers", e.markers.RemoveOlderThan(before))
	}
	return nil
}

func (e *dispatchEngine) processDate(ctx context.Context, logger *zap.Logger, date time.Time, report *dto.RunReport) error {
	day := date.Format(model.DateLayout)
	processed, err := e.markers.IsDateProcessed(day)
	if err != nil {
		return fmt.Errorf("checking date marker %s: %w", day, err)
	}
	if processed {
		logger.Debug("Date already processed", zap.String("date", day))
		return nil
	}

	records, err := e.records.ByDate(date)
	if err != nil {
		return fmt.Errorf("reading birthdays of %s: %w", day, err)
	}
	report.Dates = append(report.Dates, day)
	logger.Info("Processing birthdays", zap.String("date", day), zap.Int("records", len(records)))

	for _, record := range records {
		if err = e.processRecord(ctx, record, date, report); err != nil {
			return err
		}
	}

	if err = e.markers.MarkDateProcessed(day, e.clock.Now()); err != nil {
		return fmt.Errorf("saving date marker %s: %w", day, err)
	}
	return nil
}

func (e *dispatchEngine) processRecord(ctx context.Context, record model.BirthdayRecord, date time.Time, report *dto.RunReport) error {
	day := date.Format(model.DateLayout)
	done, err := e.markers.IsDirectProcessed(record.Id, day)
	if err != nil {
		return fmt.Errorf("checking direct marker of record %d: %w", record.Id, err)
	}
	if !done {
		if err = e.retry.Deliver(ctx, model.NewOutboundMessage(record.Phone, record, model.DIRECT, date), report); err != nil {
			return err
		}
		if err = e.markers.MarkDirectProcessed(record.Id, day, e.clock.Now()); err != nil {
			return fmt.Errorf("saving direct marker of record %d: %w", record.Id, err)
		}
	}

	peers, err := e.peersOf(record, day)
	if err != nil {
		return err
	}
	for _, peer := range peers {
		kind := model.PEER
		if peer.IsHod {
			kind = model.HOD
		}
		if err = e.retry.Deliver(ctx, model.NewOutboundMessage(peer.Phone, record, kind, date), report); err != nil {
			return err
		}
	}
	return nil
}

// peersOf returns the peer sample of the record on the day, drawing and storing it on first use
func (e *dispatchEngine) peersOf(record model.BirthdayRecord, day string) ([]model.BirthdayRecord, error) {
	pick, found, err := e.markers.PeerPick(record.Id, day)
	if err != nil {
		return nil, fmt.Errorf("reading peer pick of record %d: %w", record.Id, err)
	}
	if found {
		return pick.Peers, nil
	}

	peers, err := e.selector.SelectPeers(record)
	if err != nil {
		return nil, err
	}
	if err = e.markers.SavePeerPick(record.Id, day, peers, e.clock.Now()); err != nil {
		return nil, fmt.Errorf("saving peer pick of record %d: %w", record.Id, err)
	}
	return peers, nil
}

func (e *dispatchEngine) LastReport() (dto.RunReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return dto.RunReport{}, false
	}
	return *e.last, true
}

func (e *dispatchEngine) Queue() ([]model.OutboundMessage, error) {
	return e.queue.List()
}
