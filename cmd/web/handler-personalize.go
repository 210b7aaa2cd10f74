package main

import (
	"net/http"

	"github.com/myrjola/fitcoach/internal/coach"
	"github.com/myrjola/fitcoach/internal/contexthelpers"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/personalize"
	"github.com/myrjola/fitcoach/internal/readiness"
)

// personalizePOST answers with an adjusted exercise. The AI and fallback paths both answer 200; only a
// missing check-in or bad input is an error.
func (app *application) personalizePOST(w http.ResponseWriter, r *http.Request) {
	var req coach.PersonalizeRequest
	if err := readJSON(w, r, &req); err != nil {
		app.badRequest(w, r, err)
		return
	}

	rec, err := app.coach.Personalize(r.Context(), contexthelpers.UserID(r.Context()), req)
	switch {
	case errors.Is(err, personalize.ErrInvalidContext):
		app.badRequest(w, r, err)
		return
	case errors.Is(err, readiness.ErrNotFound):
		app.errorResponse(w, r, http.StatusConflict, "record today's readiness before personalizing")
		return
	case err != nil:
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, rec)
}
