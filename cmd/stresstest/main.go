package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/myrjola/fitcoach/internal/e2etest"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/logging"
	"github.com/myrjola/fitcoach/internal/testhelpers"
	"golang.org/x/sync/errgroup"
)

const (
	numUsers                = 10
	historyDays             = 60
	maxConcurrentHistory    = 10
	maxConcurrentOperations = 20
	historyTimeout          = 5 * time.Minute
	scenarioTimeout         = 30 * time.Second
	successRateThreshold    = 95.0
	percentageMultiplier    = 100
	expectedArgsCount       = 2
)

var sleepQualities = []string{"poor", "average", "great"}

func userID(i int) string {
	return fmt.Sprintf("stresstest-%d-%d", time.Now().Unix(), i)
}

func expectStatus(status, want int, what string) error {
	if status != want {
		return errors.New("unexpected status", slog.String("request", what),
			slog.Int("status", status), slog.Int("want", want))
	}
	return nil
}

// GenerateHistory backfills a check-in and a session for every historyDays day before today.
func GenerateHistory(ctx context.Context, client *e2etest.Client, user string) error {
	today := time.Now().UTC()
	for d := historyDays; d > 0; d-- {
		date := today.AddDate(0, 0, -d).Format(time.DateOnly)
		status, err := client.PostJSON(ctx, "/api/users/"+user+"/readiness", map[string]any{
			"date":           date,
			"sleep_quality":  sleepQualities[d%len(sleepQualities)],
			"soreness_level": 1 + d%10, //nolint:mnd // soreness 1..10
		}, nil)
		if err != nil {
			return errors.Wrap(err, "record readiness", slog.String("date", date))
		}
		if err = expectStatus(status, http.StatusCreated, "readiness"); err != nil {
			return err
		}
		if d%2 == 0 {
			continue
		}
		status, err = client.PostJSON(ctx, "/api/users/"+user+"/sessions", map[string]any{
			"date":             date,
			"duration_minutes": 20 + d%40,
			"adherence_score":  float64(d%10) + 0.5,
		}, nil)
		if err != nil {
			return errors.Wrap(err, "complete session", slog.String("date", date))
		}
		if err = expectStatus(status, http.StatusOK, "session"); err != nil {
			return err
		}
	}
	return nil
}

// Scenario is a day in the life of a user: check in, personalize an exercise, train and look at the
// progression.
func Scenario(ctx context.Context, client *e2etest.Client, user string) error {
	base := "/api/users/" + user
	status, err := client.PostJSON(ctx, base+"/readiness",
		map[string]any{"sleep_quality": "average", "soreness_level": 4}, nil)
	if err != nil {
		return errors.Wrap(err, "record readiness")
	}
	if err = expectStatus(status, http.StatusCreated, "readiness"); err != nil {
		return err
	}

	status, err = client.PostJSON(ctx, base+"/personalize", map[string]any{
		"fitness_level": "intermediate",
		"injuries":      []any{},
		"exercise":      map[string]any{"name": "Romanian deadlift", "category": "lower", "difficulty_level": "intermediate"},
	}, nil)
	if err != nil {
		return errors.Wrap(err, "personalize")
	}
	if err = expectStatus(status, http.StatusOK, "personalize"); err != nil {
		return err
	}

	status, err = client.PostJSON(ctx, base+"/sessions",
		map[string]any{"duration_minutes": 45, "adherence_score": 8.5}, nil) //nolint:mnd // a typical session.
	if err != nil {
		return errors.Wrap(err, "complete session")
	}
	if err = expectStatus(status, http.StatusOK, "session"); err != nil {
		return err
	}

	for _, path := range []string{"/progression", "/readiness/history?limit=30", "/readiness/average?days=30"} {
		if status, err = client.GetJSON(ctx, base+path, nil); err != nil {
			return errors.Wrap(err, "get", slog.String("path", path))
		}
		if err = expectStatus(status, http.StatusOK, path); err != nil {
			return err
		}
	}
	return nil
}

// GenerateHistoryForUsers backfills history for all users concurrently.
func GenerateHistoryForUsers(ctx context.Context, client *e2etest.Client, users []string, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentHistory)
	for _, user := range users {
		g.Go(func() error {
			historyCtx, cancel := context.WithTimeout(gctx, historyTimeout)
			defer cancel()
			if err := GenerateHistory(historyCtx, client, user); err != nil {
				return errors.Wrap(err, "generate history", slog.String("user_id", user))
			}
			logger.LogAttrs(historyCtx, slog.LevelDebug, "Generated history", slog.String("user_id", user))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "history generation")
	}
	return nil
}

// RunLoadTest runs Scenario for every user concurrently and fails below successRateThreshold.
func RunLoadTest(ctx context.Context, client *e2etest.Client, users []string, logger *slog.Logger) error {
	logger.LogAttrs(ctx, slog.LevelInfo, "Starting load test", slog.Int("num_users", len(users)))

	var successCount, failureCount atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentOperations)

	for _, user := range users {
		g.Go(func() error {
			scenarioCtx, cancel := context.WithTimeout(ctx, scenarioTimeout)
			defer cancel()

			if err := Scenario(scenarioCtx, client, user); err != nil {
				failureCount.Add(1)
				// Individual failures count against the success rate without stopping the others.
				logger.LogAttrs(scenarioCtx, slog.LevelWarn, "Scenario failed",
					slog.String("user_id", user), errors.SlogError(err))
				return nil
			}
			successCount.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "load test")
	}

	successRate := float64(successCount.Load()) / float64(len(users)) * percentageMultiplier
	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed",
		slog.Int64("successful", successCount.Load()),
		slog.Int64("failed", failureCount.Load()),
		slog.Float64("success_rate", successRate))

	if successRate < successRateThreshold {
		return errors.New("success rate below threshold", slog.Float64("success_rate", successRate))
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != expectedArgsCount {
		logger.LogAttrs(ctx, slog.LevelError, "usage: stresstest <hostname>")
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

	users := make([]string, 0, numUsers)
	for i := range numUsers {
		users = append(users, userID(i))
	}

	historyStart := time.Now()
	if err := GenerateHistoryForUsers(ctx, client, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "some history generation failed, continuing with load test",
			errors.SlogError(err))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "History generation completed",
		slog.Duration("history_duration", time.Since(historyStart)),
		slog.Int("days_per_user", historyDays))

	loadTestStart := time.Now()
	if err := RunLoadTest(ctx, client, users, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "load test failed", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Load test completed successfully 🙌",
		slog.Duration("total_duration", time.Since(start)),
		slog.Duration("load_test_duration", time.Since(loadTestStart)),
		slog.Int("users_tested", len(users)))
}
