package service

import (
	"fmt"

	"github.com/dilshat/birthday-sender/dao"
	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/util"
)

// DedupTracker remembers recipients already greeted for a birthday occurrence.
// MarkNotified must only be called after the transport confirmed the send.
type DedupTracker interface {
	HasNotified(phone string, birthdayId uint32, year int) (bool, error)
	MarkNotified(phone string, birthdayId uint32, year int) error
}

type dedupTracker struct {
	marks dao.SentMarkDao
	clock util.Clock
}

func NewDedupTracker(marks dao.SentMarkDao, clock util.Clock) DedupTracker {
	return &dedupTracker{marks: marks, clock: clock}
}

func (d *dedupTracker) HasNotified(phone string, birthdayId uint32, year int) (bool, error) {
	exists, err := d.marks.Exists(model.SentMarkKey(phone, birthdayId, year))
	if err != nil {
		return false, fmt.Errorf("checking sent mark: %w", err)
	}
	return exists, nil
}

func (d *dedupTracker) MarkNotified(phone string, birthdayId uint32, year int) error {
	err := d.marks.Create(&model.SentMark{
		Key:        model.SentMarkKey(phone, birthdayId, year),
		Phone:      phone,
		BirthdayId: birthdayId,
		Year:       year,
		SentAt:     d.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("saving sent mark: %w", err)
	}
	return nil
}
