package dao

import (
	"time"

	"github.com/asdine/storm/v3/q"
	"github.com/dilshat/birthday-sender/model"
)

type RecordDao interface {
	//Create validates and stores a record, setting its id
	Create(record *model.BirthdayRecord) error
	//Upsert stores the record, replacing a stored one with the same phone and name; it reports whether a new record was created
	Upsert(record *model.BirthdayRecord) (bool, error)
	//GetOneById returns record by id
	GetOneById(id uint32) (model.BirthdayRecord, error)
	//ByDate returns records whose birthday falls on the given date
	ByDate(date time.Time) ([]model.BirthdayRecord, error)
	//ByGroup returns records of a department group; empty year matches any year
	ByGroup(department, year, groupId string) ([]model.BirthdayRecord, error)
	//ByDepartment returns all records of a department
	ByDepartment(department string) ([]model.BirthdayRecord, error)
	//GetAll returns all records
	GetAll() ([]model.BirthdayRecord, error)
}

func NewRecordDao(db Db) RecordDao {
	return &recordDao{db: db}
}

type recordDao struct {
	db Db
}

func (r recordDao) Create(record *model.BirthdayRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return r.db.Save(record)
}

func (r recordDao) Upsert(record *model.BirthdayRecord) (bool, error) {
	if err := record.Validate(); err != nil {
		return false, err
	}

	var existing model.BirthdayRecord
	err := r.db.Select(q.Eq("Phone", record.Phone), q.Eq("Name", record.Name)).OrderBy("Id").First(&existing)
	switch {
	case isNotFound(err):
		record.Id = 0
		return true, r.db.Save(record)
	case err != nil:
		return false, err
	}

	record.Id = existing.Id
	return false, r.db.Save(record)
}

func (r recordDao) GetOneById(id uint32) (record model.BirthdayRecord, err error) {
	err = r.db.One("Id", id, &record)
	return
}

func (r recordDao) ByDate(date time.Time) ([]model.BirthdayRecord, error) {
	matcher := q.And(q.Eq("BirthMonth", int(date.Month())), q.Eq("BirthDay", date.Day()))
	if date.Month() == time.February && date.Day() == 28 && !model.IsLeapYear(date.Year()) {
		matcher = q.Or(matcher, q.And(q.Eq("BirthMonth", 2), q.Eq("BirthDay", 29)))
	}

	var records []model.BirthdayRecord
	err := r.db.Select(matcher).OrderBy("Id").Find(&records)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r recordDao) ByGroup(department, year, groupId string) ([]model.BirthdayRecord, error) {
	var matchers []q.Matcher
	matchers = append(matchers, q.Eq("Department", department))
	matchers = append(matchers, q.Eq("GroupId", groupId))
	if year != "" {
		matchers = append(matchers, q.Eq("Year", year))
	}

	var records []model.BirthdayRecord
	err := r.db.Select(matchers...).OrderBy("Id").Find(&records)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r recordDao) ByDepartment(department string) ([]model.BirthdayRecord, error) {
	var records []model.BirthdayRecord
	err := r.db.Find("Department", department, &records)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r recordDao) GetAll() (records []model.BirthdayRecord, err error) {
	err = r.db.All(&records)
	return
}
