package flightrecorder_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/fitcoach/internal/flightrecorder"
	"github.com/myrjola/fitcoach/internal/testhelpers"
)

func startRecorder(t *testing.T, cfg flightrecorder.Config) *flightrecorder.Service {
	t.Helper()
	s, err := flightrecorder.New(cfg, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err = s.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Stop(t.Context()) })
	return s
}

func TestService_Capture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "traces")
	s := startRecorder(t, flightrecorder.Config{TracesDirectory: dir}) //nolint:exhaustruct // defaults.

	file := s.Capture(t.Context(), "timeout")
	if file == "" {
		t.Fatal("Capture() skipped the first capture")
	}
	name := filepath.Base(file)
	if !strings.HasPrefix(name, "timeout-") || !strings.HasSuffix(name, ".trace") {
		t.Errorf("Capture() file name = %s", name)
	}
	if stat, err := os.Stat(file); err != nil || stat.Size() == 0 {
		t.Errorf("trace file %s missing or empty: %v", file, err)
	}

	if again := s.Capture(t.Context(), "timeout"); again != "" {
		t.Errorf("Capture() during cooldown wrote %s", again)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read traces directory: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("traces directory has %d files, want 1", len(entries))
	}
}

func TestService_CaptureAfterCooldown(t *testing.T) {
	s := startRecorder(t, flightrecorder.Config{ //nolint:exhaustruct // defaults.
		TracesDirectory: t.TempDir(),
		Cooldown:        time.Millisecond,
	})
	if s.Capture(t.Context(), "first") == "" {
		t.Fatal("Capture() skipped the first capture")
	}
	time.Sleep(5 * time.Millisecond)
	if s.Capture(t.Context(), "second") == "" {
		t.Error("Capture() after cooldown was skipped")
	}
}

func TestNew_RequiresDirectory(t *testing.T) {
	if _, err := flightrecorder.New(flightrecorder.Config{}, testhelpers.NewLogger(testhelpers.NewWriter(t))); err == nil { //nolint:exhaustruct // missing directory.
		t.Error("New() without traces directory succeeded")
	}
}
