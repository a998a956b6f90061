// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Info("service ready", slog.String("service", "api"), slog.Int("port", 8080))

	out := buf.String()
	if !strings.Contains(out, `"service":"api"`) {
		t.Errorf("missing string attr in %q", out)
	}
	if !strings.Contains(out, `"port":8080`) {
		t.Errorf("missing int attr in %q", out)
	}
	if !strings.Contains(out, `"message":"service ready"`) {
		t.Errorf("missing message in %q", out)
	}
}

func TestSlogHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	base := NewSlogLogger()
	child := base.With(slog.String("supervisor", "root")).WithGroup("svc")
	child.Warn("restarting", slog.String("name", "hub"))

	out := buf.String()
	if !strings.Contains(out, `"supervisor":"root"`) {
		t.Errorf("missing inherited attr in %q", out)
	}
	if !strings.Contains(out, `"svc.name":"hub"`) {
		t.Errorf("missing grouped attr in %q", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("wrong level in %q", out)
	}
}

func TestSlogLevelMapping(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "error", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	slogger := NewSlogLogger()
	slogger.Debug("dropped")
	slogger.Info("dropped too")

	if buf.Len() != 0 {
		t.Errorf("sub-error slog records emitted at error level: %q", buf.String())
	}

	slogger.Error("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("error-level slog record not emitted")
	}
}
