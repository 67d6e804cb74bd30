package main

import (
	"bytes"
	"context"
	"flag"
	"testing"
	"time"

	"github.com/opd-ai/camfx/config"
	"github.com/opd-ai/camfx/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCLIFlags(t *testing.T) {
	fs := flag.NewFlagSet("camfx", flag.ContinueOnError)
	cli, err := parseCLIFlags(fs, []string{"-filter", "vcr", "-log-level", "debug", "-no-preview"})
	require.NoError(t, err)
	assert.Equal(t, "vcr", cli.filter)
	assert.Equal(t, "debug", cli.logLevel)
	assert.Equal(t, "pattern", cli.screen)
	assert.True(t, cli.noPreview)
}

func TestApplyCLIOverrides(t *testing.T) {
	tests := []struct {
		name    string
		cli     CLIConfig
		wantErr bool
	}{
		{"defaults", CLIConfig{screen: "pattern"}, false},
		{"filter", CLIConfig{screen: "pattern", filter: "old-film"}, false},
		{"unknown filter", CLIConfig{screen: "pattern", filter: "blur"}, true},
		{"bad level", CLIConfig{screen: "pattern", logLevel: "shout"}, true},
		{"bad screen", CLIConfig{screen: "x11"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := tt.cli
			err := applyCLIOverrides(config.Default(), &cli)
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrintUsageListsFilters(t *testing.T) {
	fs := flag.NewFlagSet("camfx", flag.ContinueOnError)
	_, err := parseCLIFlags(fs, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	printUsage(&out, fs)
	assert.Contains(t, out.String(), "-config")
	assert.Contains(t, out.String(), "screen-background")
	assert.Contains(t, out.String(), "gameboycolor")
}

func TestAppRunsWithoutPreview(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Width, cfg.Capture.Height = 64, 48
	cfg.Preview.Enabled = false
	cfg.Filter.Default = "sepia"

	a, err := newApp(cfg, "pattern")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.run(ctx) }()

	require.Eventually(t, func() bool {
		return a.interceptor.Loop().Mode() == pipeline.ModeSepia &&
			a.interceptor.Canvas().Frames() > 0
	}, 3*time.Second, 10*time.Millisecond)

	a.store.Set("vcr")
	require.Eventually(t, func() bool {
		return a.interceptor.Loop().Mode() == pipeline.ModeVCR
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return")
	}
}
