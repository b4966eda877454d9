package service

import (
	"errors"
	"regexp"
	"time"
)

type Config struct {
	//HourlyLimit is the number of sends allowed per rate window
	HourlyLimit int
	RateWindow  time.Duration
	//SendingWindowEndHour is the local hour from which nothing is sent until the next run
	SendingWindowEndHour int
	//InterMessageDelay is the pause after every send attempt
	InterMessageDelay time.Duration
	MaxStudentPeers   int
	MaxStaffPeers     int
	MaxHod            int
	//MaxRetries is the number of failed attempts after which a message is dropped
	MaxRetries int
	//BackoffBase is the first in-run retry delay, doubled per attempt
	BackoffBase time.Duration
	//BackoffCeilingAttempts is the number of in-run attempts before a message is queued
	BackoffCeilingAttempts int
	//DrainBatch is the number of queued messages taken per drain pass
	DrainBatch      int
	PhoneMask       string
	MarkerStoreDays int
}

func DefaultConfig() Config {
	return Config{
		HourlyLimit:            90,
		RateWindow:             time.Hour,
		SendingWindowEndHour:   20,
		InterMessageDelay:      7 * time.Second,
		MaxStudentPeers:        3,
		MaxStaffPeers:          2,
		MaxHod:                 1,
		MaxRetries:             5,
		BackoffBase:            10 * time.Second,
		BackoffCeilingAttempts: 3,
		DrainBatch:             50,
		PhoneMask:              `^\d{10,25}$`,
		MarkerStoreDays:        7,
	}
}

func (c Config) Validate() error {
	if c.HourlyLimit <= 0 {
		return errors.New("hourly limit must be positive")
	}
	if c.RateWindow <= 0 {
		return errors.New("rate window must be positive")
	}
	if c.SendingWindowEndHour < 0 || c.SendingWindowEndHour > 24 {
		return errors.New("sending window end hour must be within 0..24")
	}
	if c.InterMessageDelay < 0 || c.BackoffBase < 0 {
		return errors.New("delays must not be negative")
	}
	if c.MaxStudentPeers < 0 || c.MaxStaffPeers < 0 || c.MaxHod < 0 {
		return errors.New("peer limits must not be negative")
	}
	if c.MaxRetries <= 0 {
		return errors.New("max retries must be positive")
	}
	if c.BackoffCeilingAttempts <= 0 {
		return errors.New("backoff ceiling attempts must be positive")
	}
	if c.BackoffCeilingAttempts > c.MaxRetries {
		return errors.New("backoff ceiling attempts must not exceed max retries")
	}
	if c.DrainBatch <= 0 {
		return errors.New("drain batch must be positive")
	}
	if _, err := regexp.Compile(c.PhoneMask); err != nil {
		return err
	}
	return nil
}
