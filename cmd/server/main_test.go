package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/jobs"
	"github.com/phrazzld/drill-api/internal/platform/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{name: "no flags", args: nil, want: options{}},
		{name: "migrate", args: []string{"-migrate", "status"}, want: options{migrate: "status"}},
		{
			name: "config path",
			args: []string{"-config", "/etc/drill/config.yaml", "-migrate=up"},
			want: options{configPath: "/etc/drill/config.yaml", migrate: "up"},
		},
		{name: "positional argument", args: []string{"serve"}, wantErr: true},
		{name: "unknown flag", args: []string{"-verbose"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseFlags(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlags_Help(t *testing.T) {
	t.Parallel()
	_, err := parseFlags([]string{"-h"})
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "error", ShutdownTimeout: 2 * time.Second},
		Database: config.DatabaseConfig{
			Driver:      database.DriverSQLite,
			URL:         ":memory:",
			AutoMigrate: true,
		},
		SRS: config.SRSConfig{IntervalLadderDays: []int{1, 2, 4}},
		Schedule: config.ScheduleConfig{
			WarmupSize:      2,
			SubLessonSize:   4,
			ReviewIntervals: []int{1, 2},
			RefreshInterval: time.Hour,
		},
	}
}

func TestApplication_ServeAndShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application, err := newApplication(ctx, testConfig(), logger)
	require.NoError(t, err)
	defer application.cleanup()

	assert.True(t, application.jobRunner.Enabled())
	require.NoError(t, application.jobRunner.Start())
	assert.ErrorIs(t, application.jobRunner.Start(), jobs.ErrAlreadyStarted)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- application.serve(ctx, listener, application.setupRouter()) }()

	url := fmt.Sprintf("http://%s/health", listener.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewApplication_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Database.Driver = "mysql"

	_, err := newApplication(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, database.ErrUnsupportedDriver)
}

func TestRunMigration(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Each in-memory connection is a fresh database, so every command runs
	// against an empty schema.
	for _, command := range []string{"up", "status", "version"} {
		assert.NoError(t, runMigration(context.Background(), cfg, command, logger), command)
	}
	assert.Error(t, runMigration(context.Background(), cfg, "sideways", logger))
}
