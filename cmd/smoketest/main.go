package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/myrjola/fitcoach/internal/e2etest"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/logging"
	"github.com/myrjola/fitcoach/internal/testhelpers"
)

type progressionResponse struct {
	TotalPoints  int `json:"total_points"`
	CurrentLevel int `json:"current_level"`
}

// TestCheckIn records readiness for a fresh user and reads the progression of the same user back.
func TestCheckIn(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	userID := "smoketest-" + strings.ToLower(rand.Text())
	status, err := client.PostJSON(ctx, "/api/users/"+userID+"/readiness",
		map[string]any{"sleep_quality": "average", "soreness_level": 3}, nil)
	if err != nil {
		return errors.Wrap(err, "record readiness")
	}
	if status != http.StatusCreated {
		return errors.New("unexpected readiness status", slog.Int("status", status))
	}

	var progression progressionResponse
	if status, err = client.GetJSON(ctx, "/api/users/"+userID+"/progression", &progression); err != nil {
		return errors.Wrap(err, "get progression")
	}
	if status != http.StatusOK || progression.CurrentLevel != 1 {
		return errors.New("unexpected progression",
			slog.Int("status", status), slog.String("body", fmt.Sprintf("%+v", progression)))
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		start    = time.Now()
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	client := e2etest.NewClient(url)
	if err := client.WaitForReady(ctx, "/api/healthy"); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", errors.SlogError(err))
		os.Exit(1)
	}
	if err := TestCheckIn(client); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing check-in", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
}
