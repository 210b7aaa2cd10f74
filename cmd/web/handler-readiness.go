package main

import (
	"net/http"

	"github.com/myrjola/fitcoach/internal/contexthelpers"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/readiness"
)

const (
	defaultAverageDays  = 7
	defaultHistoryLimit = 30
)

type readinessRequest struct {
	// Date is YYYY-MM-DD and defaults to today.
	Date          string                 `json:"date"`
	SleepQuality  readiness.SleepQuality `json:"sleep_quality"`
	SorenessLevel int                    `json:"soreness_level"`
}

type readinessResponse struct {
	readiness.DailyReadiness

	Date string `json:"date"`
}

func newReadinessResponse(rec readiness.DailyReadiness) readinessResponse {
	return readinessResponse{DailyReadiness: rec, Date: readiness.FormatDate(rec.Date)}
}

type averageResponse struct {
	Average float64 `json:"average"`
	Days    int     `json:"days"`
}

type historyResponse struct {
	Records []readinessResponse `json:"records"`
}

func (app *application) readinessPOST(w http.ResponseWriter, r *http.Request) {
	var req readinessRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	rec, err := app.coach.RecordReadiness(r.Context(), contexthelpers.UserID(r.Context()), date, readiness.Check{
		SleepQuality:  req.SleepQuality,
		SorenessLevel: req.SorenessLevel,
	})
	switch {
	case errors.Is(err, readiness.ErrInvalidCheck):
		app.badRequest(w, r, err)
		return
	case errors.Is(err, readiness.ErrAlreadyRecorded):
		app.errorResponse(w, r, http.StatusConflict, readiness.ErrAlreadyRecorded.Error())
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, newReadinessResponse(rec))
}

func (app *application) readinessTodayGET(w http.ResponseWriter, r *http.Request) {
	rec, err := app.coach.TodayReadiness(r.Context(), contexthelpers.UserID(r.Context()))
	if errors.Is(err, readiness.ErrNotFound) {
		app.errorResponse(w, r, http.StatusNotFound, readiness.ErrNotFound.Error())
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newReadinessResponse(rec))
}

func (app *application) readinessAverageGET(w http.ResponseWriter, r *http.Request) {
	days, err := parseIntQuery(r, "days", defaultAverageDays)
	if err != nil || days < 1 || days > readiness.MaxHistory {
		app.errorResponse(w, r, http.StatusBadRequest, "days must be between 1 and 365")
		return
	}
	average, err := app.coach.AverageReadiness(r.Context(), contexthelpers.UserID(r.Context()), days)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, averageResponse{Average: average, Days: days})
}

func (app *application) readinessHistoryGET(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntQuery(r, "limit", defaultHistoryLimit)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}
	records, err := app.coach.ReadinessHistory(r.Context(), contexthelpers.UserID(r.Context()), limit)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	resp := historyResponse{Records: make([]readinessResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, newReadinessResponse(rec))
	}
	app.writeJSON(w, r, http.StatusOK, resp)
}
