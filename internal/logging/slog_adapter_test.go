// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	slogger.Warn("service restarted",
		"service", "casesync",
		"attempt", 3,
		"backoff", 2*time.Second,
		"err", errors.New("boom"),
	)

	out := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"service":"casesync"`,
		`"attempt":3`,
		`"err":"boom"`,
		`service restarted`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestSlogHandlerGroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf))).
		With("tree", "root").
		WithGroup("supervisor")

	slogger.Info("started", "name", "api")

	out := buf.String()
	if !strings.Contains(out, `"supervisor.tree":"root"`) && !strings.Contains(out, `"tree":"root"`) {
		t.Errorf("missing pre-set attr: %s", out)
	}
	if !strings.Contains(out, `"supervisor.name":"api"`) {
		t.Errorf("missing grouped attr: %s", out)
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 1, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
