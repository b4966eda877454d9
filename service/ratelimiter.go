package service

import (
	"fmt"
	"time"

	"github.com/dilshat/birthday-sender/dao"
	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/util"
)

const (
	rateBucket = "rate"
	rateKey    = "window"
)

// RateLimiter caps sends per window and tells whether sending is allowed at a given time.
// The window is reset once it has fully elapsed, it does not slide.
type RateLimiter interface {
	//TryReserve takes one send from the current window; false means the caller must queue
	TryReserve() (bool, error)
	IsWithinSendingHours(now time.Time) bool
}

type rateLimiter struct {
	kv          dao.KvDao
	clock       util.Clock
	hourlyLimit int
	window      time.Duration
	endHour     int
}

func NewRateLimiter(kv dao.KvDao, clock util.Clock, hourlyLimit int, window time.Duration, endHour int) RateLimiter {
	return &rateLimiter{kv: kv, clock: clock, hourlyLimit: hourlyLimit, window: window, endHour: endHour}
}

func (l *rateLimiter) TryReserve() (bool, error) {
	var window model.RateWindow
	found, err := l.kv.Get(rateBucket, rateKey, &window)
	if err != nil {
		return false, fmt.Errorf("reading rate window: %w", err)
	}

	now := l.clock.Now()
	if !found || now.Sub(window.WindowStart) > l.window || now.Before(window.WindowStart) {
		window = model.RateWindow{Count: 0, WindowStart: now}
	}

	if window.Count >= l.hourlyLimit {
		return false, nil
	}

	window.Count++
	if err = l.kv.Set(rateBucket, rateKey, window); err != nil {
		return false, fmt.Errorf("saving rate window: %w", err)
	}
	return true, nil
}

func (l *rateLimiter) IsWithinSendingHours(now time.Time) bool {
	return now.Hour() < l.endHour
}
