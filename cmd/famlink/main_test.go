// ABOUTME: Tests for famlink command helpers
// ABOUTME: Covers token flag parsing and the colorized log handler

package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func TestParseTokenArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		email   string
		ttl     time.Duration
		wantErr bool
	}{
		{"space form", []string{"--email", "ann@example.com"}, "ann@example.com", defaultTokenTTL, false},
		{"equals form", []string{"--email=ann@example.com", "--ttl=2h"}, "ann@example.com", 2 * time.Hour, false},
		{"missing email", []string{"--ttl", "1h"}, "", 0, true},
		{"not an email", []string{"--email", "ann"}, "", 0, true},
		{"bad ttl", []string{"--email", "a@b.c", "--ttl", "soon"}, "", 0, true},
		{"negative ttl", []string{"--email", "a@b.c", "--ttl", "-1h"}, "", 0, true},
		{"unknown flag", []string{"--name", "x"}, "", 0, true},
		{"dangling flag", []string{"--email"}, "", 0, true},
		{"positional", []string{"ann@example.com"}, "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, ttl, err := parseTokenArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseTokenArgs() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTokenArgs() error = %v", err)
			}
			if email != tt.email || ttl != tt.ttl {
				t.Errorf("parseTokenArgs() = %q, %v; want %q, %v", email, ttl, tt.email, tt.ttl)
			}
		})
	}
}

func TestColorHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := slog.New(newColorHandler(&buf, slog.LevelInfo)).With("component", "api")

	logger.Debug("hidden")
	logger.WithGroup("req").Info("served", "status", 200, "path", "/api/t/x y")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record written at info level: %q", out)
	}
	for _, want := range []string{"INF [api] served", "req.status=200", `req.path="/api/t/x y"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("DEBUG") != slog.LevelDebug || parseLevel("warn") != slog.LevelWarn ||
		parseLevel("error") != slog.LevelError || parseLevel("") != slog.LevelInfo {
		t.Error("parseLevel() mapping mismatch")
	}
}
