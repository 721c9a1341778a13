package wld

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs(nil).(nopHandler); !ok {
		t.Error("WithAttrs did not return a nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup did not return a nopHandler")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)

	if Logger() != custom {
		t.Fatal("Logger() did not return the custom logger")
	}

	// Pool growth logs at debug level.
	s := NewBufferedSurface(&heapAllocator{}, 1, 1, FormatXRGB8888, 0, nil)
	if _, err := s.Back(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "surface pool grew") {
		t.Errorf("log output = %q, want pool growth", buf.String())
	}
}

// TestLoggerWarnsOnProcessFailure tests that a failing release poll is
// logged and does not fail Back.
func TestLoggerWarnsOnProcessFailure(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))

	s := NewBufferedSurface(&heapAllocator{}, 1, 1, FormatXRGB8888, 0, failingSocket{})
	if _, err := s.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("log output = %q, want a warning", buf.String())
	}
}

type failingSocket struct{}

func (failingSocket) Attach(*Buffer) error { return errors.New("attach") }
func (failingSocket) Process() error       { return errors.New("connection reset") }
func (failingSocket) Destroy() error       { return nil }

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	SetLogger(nil)

	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("logger enabled after SetLogger(nil)")
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
		}()
		go func() {
			defer wg.Done()
			_ = Logger()
		}()
	}
	wg.Wait()
}
