package model

import (
	"fmt"
	"time"
)

// DateLayout is the layout of occurrence dates and processed-date markers
const DateLayout = "2006-01-02"

type MessageKind string

const (
	DIRECT MessageKind = "direct"
	PEER   MessageKind = "peer"
	HOD    MessageKind = "hod"
)

// OutboundMessage is a greeting that was not delivered yet
type OutboundMessage struct {
	Id             uint64 `storm:"id,increment"`
	Key            string `storm:"unique"`
	RecipientPhone string
	SubjectId      uint32
	SubjectName    string
	PersonType     PersonType
	Kind           MessageKind
	//Occurrence is the birthday date (DateLayout) the message belongs to
	Occurrence    string
	RetryCount    int
	LastError     string
	EnqueuedAt    time.Time `storm:"index"`
	NextAttemptAt time.Time
}

func NewOutboundMessage(recipientPhone string, subject BirthdayRecord, kind MessageKind, occurrence time.Time) OutboundMessage {
	msg := OutboundMessage{
		RecipientPhone: recipientPhone,
		SubjectId:      subject.Id,
		SubjectName:    subject.Name,
		PersonType:     subject.PersonType,
		Kind:           kind,
		Occurrence:     occurrence.Format(DateLayout),
	}
	msg.Key = MessageKey(msg.RecipientPhone, msg.SubjectId, msg.Kind, msg.Occurrence)
	return msg
}

// OccurrenceYear returns the year of the birthday occurrence or 0 if it can not be parsed
func (m OutboundMessage) OccurrenceYear() int {
	t, err := time.Parse(DateLayout, m.Occurrence)
	if err != nil {
		return 0
	}
	return t.Year()
}

func MessageKey(phone string, subjectId uint32, kind MessageKind, occurrence string) string {
	return fmt.Sprintf("%s|%d|%s|%s", phone, subjectId, kind, occurrence)
}
