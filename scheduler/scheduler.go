package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is fired on every tick of the schedule
type Job func(ctx context.Context) error

// Scheduler fires the daily dispatch trigger
type Scheduler interface {
	Start(ctx context.Context) error
	//Next returns the next fire time, zero if not started
	Next() time.Time
	Stop()
}

type scheduler struct {
	spec       string
	loc        *time.Location
	runOnStart bool
	job        Job
	parser     cron.Parser

	mu sync.Mutex
	c  *cron.Cron
	id cron.EntryID
	wg sync.WaitGroup
}

func New(spec string, loc *time.Location, runOnStart bool, job Job) Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &scheduler{
		spec:       spec,
		loc:        loc,
		runOnStart: runOnStart,
		job:        job,
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	logger := cron.PrintfLogger(zap.NewStdLog(zap.L()))
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	id, err := c.AddFunc(s.spec, func() { s.fire(ctx, "schedule") })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}
	s.c, s.id = c, id
	c.Start()
	zap.L().Info("Scheduler started", zap.String("schedule", s.spec), zap.String("tz", s.loc.String()))

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.fire(ctx, "start")
		}()
	}
	return nil
}

func (s *scheduler) fire(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	zap.L().Info("Dispatch triggered", zap.String("trigger", trigger))
	if err := s.job(ctx); err != nil {
		zap.L().Warn("Triggered dispatch failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

func (s *scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.id).Next
}

// Stop waits for a running job to finish
func (s *scheduler) Stop() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		zap.L().Info("Scheduler stopped")
	}
	s.wg.Wait()
}
