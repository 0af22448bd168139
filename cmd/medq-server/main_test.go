package main

import (
	"bytes"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medq/medq/internal/config"
	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/internal/platform/events"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	want := map[string]bool{"serve": false, "migrate": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
		if c.Name() == "migrate" {
			var subs []string
			for _, s := range c.Commands() {
				subs = append(subs, s.Name())
			}
			if strings.Join(subs, ",") != "status,up" {
				t.Errorf("unexpected migrate subcommands: %v", subs)
			}
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing %q command", name)
		}
	}
}

func TestMigrationSource(t *testing.T) {
	if _, err := fs.Stat(migrationSource(""), "001_people.sql"); err != nil {
		t.Errorf("expected embedded migrations: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_x.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Stat(migrationSource(dir), "001_x.sql"); err != nil {
		t.Errorf("expected directory migrations: %v", err)
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_people.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_catalog.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied    2026-03-01 09:30:00") {
		t.Errorf("expected applied row, got:\n%s", out)
	}
	if !strings.Contains(out, "002_catalog.sql") || !strings.Contains(out, "pending") {
		t.Errorf("expected pending row, got:\n%s", out)
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&config.Config{Env: "production", LogLevel: "warn"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output: %s", buf.String())
	}

	buf.Reset()
	logger = newLogger(&config.Config{Env: "production", LogLevel: "nonsense"}, &buf)
	logger.Info().Msg("info")
	if !strings.Contains(buf.String(), "info") {
		t.Errorf("expected info default, got: %s", buf.String())
	}
}

func TestNewPublisher_WithoutBrokerLogs(t *testing.T) {
	p, closeFn := newPublisher(&config.Config{}, zerolog.Nop())
	defer closeFn()
	if _, ok := p.(*events.LogPublisher); !ok {
		t.Errorf("expected LogPublisher, got %T", p)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Env:          "development",
		CORSOrigins:  []string{"http://localhost:3000"},
		RateLimitRPS: 0,
	}
}

// The routes below fail on path validation or auth before any query runs.
func TestNewEcho_Routes(t *testing.T) {
	e := newEcho(testConfig(), zerolog.Nop(), newServices(nil, events.NewLogPublisher(zerolog.Nop()), zerolog.Nop()), nil)

	want := map[string]bool{
		"POST /api/v1/answers":                                       false,
		"POST /api/v1/assignments/:id/finish":                        false,
		"GET /api/v1/assignments/:id/analytics":                      false,
		"GET /api/v1/modules/:id/questions":                          false,
		"PUT /api/v1/assignments/:id/status":                         false,
		"GET /api/v1/doctors/:id/patients":                           false,
		"POST /api/v1/modules/:id/outputs":                           false,
		"GET /api/v1/answers/:assignment_id/:module_id/:question_id": false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestNewEcho_DevAuthBadParam(t *testing.T) {
	e := newEcho(testConfig(), zerolog.Nop(), newServices(nil, nil, zerolog.Nop()), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/questionnaires/abc", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func TestNewEcho_RoleEnforced(t *testing.T) {
	e := newEcho(testConfig(), zerolog.Nop(), newServices(nil, nil, zerolog.Nop()), nil)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/assignments/1/status", strings.NewReader(`{"status":"draft"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Email", "pat@example.com")
	req.Header.Set("X-User-Roles", "patient")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestNewEcho_JWTRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = "0123456789abcdef0123456789abcdef"
	e := newEcho(cfg, zerolog.Nop(), newServices(nil, nil, zerolog.Nop()), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assignments", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
