package controller

import (
	"errors"
	"net/http"

	"github.com/dilshat/birthday-sender/service"
	"github.com/dilshat/birthday-sender/service/dto"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const malfunction = "System malfunction. Please, try later"

// StartRun godoc
// @Summary Start dispatch run
// @Description Greets birthdays of yesterday and today, notifies peers and drains the dispatch queue
// @Produce json
// @Success 200 {object} dto.RunReport
// @Failure 409 "run already in progress"
// @Failure 503 {object} dto.RunReport
// @Router /runs [post]
func GetRunFunc(engine service.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		report, err := engine.Run(c.Request().Context())
		if err != nil {
			switch {
			case errors.Is(err, service.ErrRunInProgress):
				return c.String(http.StatusConflict, err.Error())
			case errors.Is(err, service.ErrPermissionDenied):
				return c.JSON(http.StatusServiceUnavailable, report)
			default:
				zap.L().Error("Dispatch run failed", zap.Error(err))
				return c.String(http.StatusInternalServerError, malfunction)
			}
		}

		return c.JSON(http.StatusOK, report)
	}
}

// LastRun godoc
// @Summary Last run
// @Description Returns the report of the last finished dispatch run
// @Produce json
// @Success 200 {object} dto.RunReport
// @Failure 404 "no run yet"
// @Router /runs/last [get]
func GetLastRunFunc(engine service.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		report, ok := engine.LastReport()
		if !ok {
			return c.String(http.StatusNotFound, "No run yet")
		}

		return c.JSON(http.StatusOK, report)
	}
}

// Queue godoc
// @Summary Dispatch queue
// @Description Lists messages waiting for delivery with their retry state
// @Produce json
// @Success 200 {array} dto.QueuedMessage
// @Router /queue [get]
func GetQueueFunc(engine service.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		messages, err := engine.Queue()
		if err != nil {
			zap.L().Error("Error reading dispatch queue", zap.Error(err))
			return c.String(http.StatusInternalServerError, malfunction)
		}

		res := make([]dto.QueuedMessage, 0, len(messages))
		for _, m := range messages {
			res = append(res, dto.QueuedMessage{
				Id:             m.Id,
				RecipientPhone: m.RecipientPhone,
				SubjectName:    m.SubjectName,
				PersonType:     string(m.PersonType),
				Kind:           string(m.Kind),
				Occurrence:     m.Occurrence,
				RetryCount:     m.RetryCount,
				LastError:      m.LastError,
				EnqueuedAt:     m.EnqueuedAt,
				NextAttemptAt:  m.NextAttemptAt,
			})
		}

		return c.JSON(http.StatusOK, res)
	}
}
