package model

import (
	"errors"
	"time"
)

type PersonType string

const (
	STUDENT PersonType = "Student"
	STAFF   PersonType = "Staff"
)

// BirthdayRecord is a person whose birthday is tracked. Records are read-only for the dispatcher.
type BirthdayRecord struct {
	Id         uint32 `storm:"id,increment"`
	Name       string
	Phone      string `storm:"index"`
	BirthMonth int    `storm:"index"`
	BirthDay   int    `storm:"index"`
	PersonType PersonType
	Department string `storm:"index"`
	//Year is the study year, set for students only
	Year    string
	GroupId string
	IsHod   bool
}

func (r BirthdayRecord) IsStudent() bool {
	return r.PersonType == STUDENT
}

// Validate checks the record level invariants
func (r BirthdayRecord) Validate() error {
	if r.PersonType != STUDENT && r.PersonType != STAFF {
		return errors.New("unknown person type " + string(r.PersonType))
	}
	if r.IsHod && r.PersonType != STAFF {
		return errors.New("only staff can be head of department")
	}
	if r.PersonType == STAFF && r.Year != "" {
		return errors.New("year is set for staff")
	}
	if r.BirthMonth < 1 || r.BirthMonth > 12 || r.BirthDay < 1 || r.BirthDay > 31 {
		return errors.New("invalid birth date")
	}
	return nil
}

// BirthdayOn reports whether the record's birthday falls on the given date.
// Feb 29 birthdays are celebrated on Feb 28 in non-leap years.
func (r BirthdayRecord) BirthdayOn(date time.Time) bool {
	if r.BirthMonth == int(date.Month()) && r.BirthDay == date.Day() {
		return true
	}
	return r.BirthMonth == 2 && r.BirthDay == 29 &&
		date.Month() == time.February && date.Day() == 28 && !IsLeapYear(date.Year())
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
