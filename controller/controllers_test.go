package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dilshat/birthday-sender/model"
	"github.com/dilshat/birthday-sender/service"
	"github.com/dilshat/birthday-sender/service/dto"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestGetRunFunc(t *testing.T) {
	f := GetRunFunc(&mockEngine{report: dto.RunReport{RunId: "abc", PeerSent: 2}})

	c, rec := newContext(http.MethodPost, "/runs")
	require.NoError(t, f(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var report dto.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "abc", report.RunId)
	require.Equal(t, 2, report.PeerSent)

	f = GetRunFunc(&mockEngine{runErr: service.ErrRunInProgress})
	c, rec = newContext(http.MethodPost, "/runs")
	require.NoError(t, f(c))
	require.Equal(t, http.StatusConflict, rec.Code)

	f = GetRunFunc(&mockEngine{
		report: dto.RunReport{RunId: "abc", Aborted: true},
		runErr: fmt.Errorf("%w: bind failed", service.ErrPermissionDenied),
	})
	c, rec = newContext(http.MethodPost, "/runs")
	require.NoError(t, f(c))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.True(t, report.Aborted)

	f = GetRunFunc(&mockEngine{runErr: errors.New("disk full")})
	c, rec = newContext(http.MethodPost, "/runs")
	require.NoError(t, f(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetLastRunFunc(t *testing.T) {
	f := GetLastRunFunc(&mockEngine{})

	c, rec := newContext(http.MethodGet, "/runs/last")
	require.NoError(t, f(c))
	require.Equal(t, http.StatusNotFound, rec.Code)

	f = GetLastRunFunc(&mockEngine{last: &dto.RunReport{RunId: "xyz"}})
	c, rec = newContext(http.MethodGet, "/runs/last")
	require.NoError(t, f(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var report dto.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "xyz", report.RunId)
}

func TestGetQueueFunc(t *testing.T) {
	f := GetQueueFunc(&mockEngine{queue: []model.OutboundMessage{{
		Id:             7,
		RecipientPhone: "996700000002",
		SubjectName:    "Aigul",
		PersonType:     model.STUDENT,
		Kind:           model.PEER,
		Occurrence:     "2024-03-15",
		RetryCount:     2,
		LastError:      "throttled",
	}}})

	c, rec := newContext(http.MethodGet, "/queue")
	require.NoError(t, f(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var queue []dto.QueuedMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queue))
	require.Len(t, queue, 1)
	require.Equal(t, uint64(7), queue[0].Id)
	require.Equal(t, "peer", queue[0].Kind)
	require.Equal(t, "Student", queue[0].PersonType)
	require.Equal(t, 2, queue[0].RetryCount)

	f = GetQueueFunc(&mockEngine{})
	c, rec = newContext(http.MethodGet, "/queue")
	require.NoError(t, f(c))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())

	f = GetQueueFunc(&mockEngine{queueErr: errors.New("closed")})
	c, rec = newContext(http.MethodGet, "/queue")
	require.NoError(t, f(c))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

//-----------mocks--------
type mockEngine struct {
	report   dto.RunReport
	runErr   error
	last     *dto.RunReport
	queue    []model.OutboundMessage
	queueErr error
}

func (m *mockEngine) Run(ctx context.Context) (dto.RunReport, error) {
	return m.report, m.runErr
}

func (m *mockEngine) LastReport() (dto.RunReport, bool) {
	if m.last == nil {
		return dto.RunReport{}, false
	}
	return *m.last, true
}

func (m *mockEngine) Queue() ([]model.OutboundMessage, error) {
	return m.queue, m.queueErr
}
