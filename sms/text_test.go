package sms

import (
	"testing"
	"time"

	"github.com/dilshat/birthday-sender/model"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Render(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	occurrence := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	student := model.BirthdayRecord{Id: 1, Name: "Ann", PersonType: model.STUDENT}
	staff := model.BirthdayRecord{Id: 2, Name: "Dan", PersonType: model.STAFF}

	text, err := renderer.Render(model.NewOutboundMessage(PHONE, student, model.DIRECT, occurrence))
	require.NoError(t, err)
	require.Equal(t, "Happy birthday, Ann! Wishing you a wonderful year ahead.", text)

	text, err = renderer.Render(model.NewOutboundMessage(PHONE, student, model.PEER, occurrence))
	require.NoError(t, err)
	require.Contains(t, text, "classmate")

	text, err = renderer.Render(model.NewOutboundMessage(PHONE, staff, model.PEER, occurrence))
	require.NoError(t, err)
	require.Contains(t, text, "colleague")

	text, err = renderer.Render(model.NewOutboundMessage(PHONE, staff, model.HOD, occurrence))
	require.NoError(t, err)
	require.Contains(t, text, "Dan")
	require.Contains(t, text, "department staff")

	text, err = renderer.Render(model.OutboundMessage{SubjectName: "Zed", Kind: "unknown"})
	require.NoError(t, err)
	require.Equal(t, "Today is Zed's birthday.", text)
}
