package e2etest

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/logging"

	_ "github.com/mattn/go-sqlite3"
)

// Server is a fitcoach server running in the test process.
type Server struct {
	client     *Client
	db         *sql.DB
	cancel     context.CancelCauseFunc
	serverDone chan struct{}
}

// LogAddrKey is the key used to log the address the server is listening on.
const LogAddrKey = "addr"

// LogDsnKey is the key used to log the SQL DSN of the read-write pool.
const LogDsnKey = "sqlDsn"

// logCapture collects the first logged value of each watched key.
type logCapture struct {
	mu    sync.Mutex
	seen  map[string]bool
	found chan slog.Attr
}

func newLogCapture(keys ...string) *logCapture {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = false
	}
	return &logCapture{
		mu:    sync.Mutex{},
		seen:  seen,
		found: make(chan slog.Attr, len(keys)),
	}
}

func (c *logCapture) replaceAttr(_ []string, a slog.Attr) slog.Attr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seen, watched := c.seen[a.Key]; watched && !seen {
		c.seen[a.Key] = true
		c.found <- a
	}
	return a
}

// wait blocks until every watched key was logged or ctx ends.
func (c *logCapture) wait(ctx context.Context) (map[string]string, error) {
	values := make(map[string]string, cap(c.found))
	for len(values) < cap(c.found) {
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(context.Cause(ctx), "wait for server logs")
		case a := <-c.found:
			values[a.Key] = a.Value.String()
		}
	}
	return values, nil
}

// StartServer runs the server in a goroutine and returns once it answers on /api/healthy.
//
// logSink receives the server logs, usually testhelpers.NewWriter. lookupEnv replaces [os.LookupEnv].
// run must log the listening address under LogAddrKey and the database DSN under LogDsnKey.
// The server is shut down when the test ends.
func StartServer(
	t *testing.T,
	logSink io.Writer,
	lookupEnv func(string) (string, bool),
	run func(context.Context, *slog.Logger, func(string) (string, bool)) error,
) (*Server, error) {
	var server *Server
	t.Cleanup(func() {
		if server != nil {
			server.Shutdown()
		}
	})
	ctx, cancel := context.WithCancelCause(t.Context())
	serverDone := make(chan struct{})

	capture := newLogCapture(LogAddrKey, LogDsnKey)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: capture.replaceAttr,
	})))

	go func() {
		defer close(serverDone)
		if err := run(ctx, logger, lookupEnv); err != nil {
			cancel(err)
		}
	}()
	values, err := capture.wait(ctx)
	if err != nil {
		cancel(err)
		<-serverDone
		return nil, err
	}

	client := NewClient("http://" + values[LogAddrKey])
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		cancel(err)
		<-serverDone
		return nil, errors.Wrap(err, "wait for ready", slog.String("addr", values[LogAddrKey]))
	}
	db, err := sql.Open("sqlite3", values[LogDsnKey])
	if err != nil {
		cancel(err)
		<-serverDone
		return nil, errors.Wrap(err, "open database")
	}

	server = &Server{
		client:     client,
		db:         db,
		cancel:     cancel,
		serverDone: serverDone,
	}
	return server, nil
}

// Client talks to the server's JSON API.
func (s *Server) Client() *Client {
	return s.client
}

// SessionStatuses returns the streak status of each stored session of userID, oldest first.
func (s *Server) SessionStatuses(ctx context.Context, userID string) ([]string, error) {
	return s.queryStrings(ctx,
		"SELECT streak_status FROM session_results WHERE user_id = ? ORDER BY id", userID)
}

// ReadinessDates returns the days userID checked in on, newest first.
func (s *Server) ReadinessDates(ctx context.Context, userID string) ([]string, error) {
	return s.queryStrings(ctx,
		"SELECT date FROM daily_readiness WHERE user_id = ? ORDER BY date DESC", userID)
}

func (s *Server) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query", slog.String("query", query))
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err = rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan", slog.String("query", query))
		}
		values = append(values, v)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows", slog.String("query", query))
	}
	return values, nil
}

// Shutdown stops the server and waits for run to return.
func (s *Server) Shutdown() {
	s.cancel(nil)
	<-s.serverDone
	_ = s.db.Close()
}
