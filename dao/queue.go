package dao

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/dilshat/birthday-sender/model"
)

type QueueDao interface {
	//Enqueue stores the message; returns false if a message with the same key is already queued
	Enqueue(msg *model.OutboundMessage) (bool, error)
	//Update overwrites a queued message
	Update(msg *model.OutboundMessage) error
	//Remove deletes a queued message by id
	Remove(id uint64) error
	//GetOneById returns queued message by id
	GetOneById(id uint64) (model.OutboundMessage, error)
	//Due returns up to limit messages whose next attempt is not after now, oldest first
	Due(now time.Time, limit int) ([]model.OutboundMessage, error)
	//GetAll returns all queued messages, oldest first
	GetAll() ([]model.OutboundMessage, error)
	//Count returns the number of queued messages
	Count() (int, error)
}

func NewQueueDao(db Db) QueueDao {
	return &queueDao{db: db}
}

type queueDao struct {
	db Db
}

func (d queueDao) Enqueue(msg *model.OutboundMessage) (bool, error) {
	msg.Id = 0
	err := d.db.Save(msg)
	if err == storm.ErrAlreadyExists {
		msg.Id = 0
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d queueDao) Update(msg *model.OutboundMessage) error {
	//Save instead of Update: storm's Update skips zero fields
	return d.db.Save(msg)
}

func (d queueDao) Remove(id uint64) error {
	var msg model.OutboundMessage
	err := d.db.One("Id", id, &msg)
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return d.db.DeleteStruct(&msg)
}

func (d queueDao) GetOneById(id uint64) (msg model.OutboundMessage, err error) {
	err = d.db.One("Id", id, &msg)
	return
}

func (d queueDao) Due(now time.Time, limit int) ([]model.OutboundMessage, error) {
	var messages []model.OutboundMessage
	query := d.db.Select(q.Lte("NextAttemptAt", now)).OrderBy("EnqueuedAt", "Id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&messages)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return messages, nil
}

func (d queueDao) GetAll() ([]model.OutboundMessage, error) {
	var messages []model.OutboundMessage
	err := d.db.Select().OrderBy("EnqueuedAt", "Id").Find(&messages)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return messages, nil
}

func (d queueDao) Count() (int, error) {
	return d.db.Select().Count(&model.OutboundMessage{})
}
