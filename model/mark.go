package model

import (
	"fmt"
	"time"
)

// SentMark records a confirmed peer/hod delivery for one birthday occurrence. Marks are never deleted.
type SentMark struct {
	Key        string `storm:"id"`
	Phone      string `storm:"index"`
	BirthdayId uint32 `storm:"index"`
	Year       int
	SentAt     time.Time
}

func SentMarkKey(phone string, birthdayId uint32, year int) string {
	return fmt.Sprintf("%s|%d|%d", phone, birthdayId, year)
}

// RateWindow is the persisted state of the hourly send cap
type RateWindow struct {
	Count       int
	WindowStart time.Time
}

// ProcessedDate marks a date whose birthday records were all handled
type ProcessedDate struct {
	Date        string `storm:"id"`
	ProcessedAt time.Time
}

// DirectMark marks that the direct greeting of a record was handled (sent or queued) on Date
type DirectMark struct {
	Key         string `storm:"id"`
	RecordId    uint32 `storm:"index"`
	Date        string `storm:"index"`
	ProcessedAt time.Time
}

func DirectMarkKey(recordId uint32, date string) string {
	return fmt.Sprintf("%d|%s", recordId, date)
}

// PeerPick is the peer sample drawn for the direct greeting of RecordId on Date.
// It is stored before the first peer send so a resumed run greets the same peers.
type PeerPick struct {
	Key      string `storm:"id"`
	RecordId uint32 `storm:"index"`
	Date     string `storm:"index"`
	Peers    []BirthdayRecord
	PickedAt time.Time
}
