package main

import (
	"net/http"

	"github.com/myrjola/fitcoach/internal/coach"
	"github.com/myrjola/fitcoach/internal/contexthelpers"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/progression"
)

type sessionRequest struct {
	// Date is YYYY-MM-DD and defaults to today.
	Date            string  `json:"date"`
	DurationMinutes float64 `json:"duration_minutes"`
	AdherenceScore  float64 `json:"adherence_score"`
}

func (app *application) sessionPOST(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}
	date, err := parseOptionalDate(req.Date)
	if err != nil {
		app.badRequest(w, r, err)
		return
	}

	outcome, err := app.coach.CompleteSession(r.Context(), contexthelpers.UserID(r.Context()), coach.SessionRequest{
		Date:            date,
		DurationMinutes: req.DurationMinutes,
		AdherenceScore:  req.AdherenceScore,
	})
	if errors.Is(err, progression.ErrInvalidSession) {
		app.badRequest(w, r, err)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, outcome)
}

func (app *application) progressionGET(w http.ResponseWriter, r *http.Request) {
	view, err := app.coach.Progression(r.Context(), contexthelpers.UserID(r.Context()))
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, view)
}
