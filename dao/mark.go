package dao

import (
	"time"

	"github.com/asdine/storm/v3/q"
	"github.com/dilshat/birthday-sender/model"
)

type SentMarkDao interface {
	//Exists reports whether a mark with the given key is stored
	Exists(key string) (bool, error)
	//Create stores the mark, overwriting an existing one with the same key
	Create(mark *model.SentMark) error
}

func NewSentMarkDao(db Db) SentMarkDao {
	return &sentMarkDao{db: db}
}

type sentMarkDao struct {
	db Db
}

func (d sentMarkDao) Exists(key string) (bool, error) {
	var mark model.SentMark
	err := d.db.One("Key", key, &mark)
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (d sentMarkDao) Create(mark *model.SentMark) error {
	return d.db.Save(mark)
}

type MarkerDao interface {
	//IsDateProcessed reports whether all records of the date were handled
	IsDateProcessed(date string) (bool, error)
	//MarkDateProcessed marks all records of the date as handled
	MarkDateProcessed(date string, at time.Time) error
	//IsDirectProcessed reports whether the direct greeting of the record was handled on the date
	IsDirectProcessed(recordId uint32, date string) (bool, error)
	//MarkDirectProcessed marks the direct greeting of the record as handled on the date
	MarkDirectProcessed(recordId uint32, date string, at time.Time) error
	//PeerPick returns the stored peer sample of the record on the date
	PeerPick(recordId uint32, date string) (model.PeerPick, bool, error)
	//SavePeerPick stores the peer sample of the record on the date
	SavePeerPick(recordId uint32, date string, peers []model.BirthdayRecord, at time.Time) error
	//RemoveOlderThan removes date markers, direct markers and peer picks for dates before the given one
	RemoveOlderThan(date string) error
}

func NewMarkerDao(db Db) MarkerDao {
	return &markerDao{db: db}
}

type markerDao struct {
	db Db
}

func (d markerDao) IsDateProcessed(date string) (bool, error) {
	var marker model.ProcessedDate
	err := d.db.One("Date", date, &marker)
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (d markerDao) MarkDateProcessed(date string, at time.Time) error {
	return d.db.Save(&model.ProcessedDate{Date: date, ProcessedAt: at})
}

func (d markerDao) IsDirectProcessed(recordId uint32, date string) (bool, error) {
	var marker model.DirectMark
	err := d.db.One("Key", model.DirectMarkKey(recordId, date), &marker)
	if isNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (d markerDao) MarkDirectProcessed(recordId uint32, date string, at time.Time) error {
	return d.db.Save(&model.DirectMark{
		Key:         model.DirectMarkKey(recordId, date),
		RecordId:    recordId,
		Date:        date,
		ProcessedAt: at,
	})
}

func (d markerDao) PeerPick(recordId uint32, date string) (model.PeerPick, bool, error) {
	var pick model.PeerPick
	err := d.db.One("Key", model.DirectMarkKey(recordId, date), &pick)
	if isNotFound(err) {
		return pick, false, nil
	}
	return pick, err == nil, err
}

func (d markerDao) SavePeerPick(recordId uint32, date string, peers []model.BirthdayRecord, at time.Time) error {
	return d.db.Save(&model.PeerPick{
		Key:      model.DirectMarkKey(recordId, date),
		RecordId: recordId,
		Date:     date,
		Peers:    peers,
		PickedAt: at,
	})
}

func (d markerDao) RemoveOlderThan(date string) error {
	//dates are formatted as model.DateLayout so lexical order is chronological
	err := d.db.Select(q.Lt("Date", date)).Delete(&model.ProcessedDate{})
	if err != nil && !isNotFound(err) {
		return err
	}
	err = d.db.Select(q.Lt("Date", date)).Delete(&model.DirectMark{})
	if err != nil && !isNotFound(err) {
		return err
	}
	err = d.db.Select(q.Lt("Date", date)).Delete(&model.PeerPick{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}
