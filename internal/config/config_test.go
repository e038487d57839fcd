package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	writeFile(t, path, `
orchestrator_url: https://orch.example.com/
liveness_timeout: 5m
max_jobs_per_worker: 3
http_addr: ":9000"
`)
	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("ORPHAN_SWEEP_INTERVAL", "10s")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://orch.example.com", cfg.OrchestratorURL)
	assert.Equal(t, 5*time.Minute, cfg.LivenessTimeout)
	assert.Equal(t, 3, cfg.MaxJobsPerWorker)
	assert.Equal(t, ":7000", cfg.HTTPAddr, "env overrides file")
	assert.Equal(t, 10*time.Second, cfg.OrphanSweepInterval)
	assert.Equal(t, path, cfg.Path)
}

func TestLoadFile_UnparsableEnvKeepsValue(t *testing.T) {
	t.Setenv("MAX_PAGE_SIZE", "lots")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.MaxPageSize)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadFile_Invalid(t *testing.T) {
	t.Setenv("MAX_JOBS_PER_WORKER", "0")
	_, err := LoadFile("")
	assert.ErrorContains(t, err, "max_jobs_per_worker")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestURLSource(t *testing.T) {
	s := NewURLSource(" https://a.example.com/ ")
	assert.Equal(t, "https://a.example.com", s.OrchestratorURL())

	s.Set("https://b.example.com")
	assert.Equal(t, "https://b.example.com", s.OrchestratorURL())

	var zero URLSource
	assert.Empty(t, zero.OrchestratorURL())
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	writeFile(t, path, "orchestrator_url: https://a.example.com\n")

	var (
		mu  sync.Mutex
		got []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c Config) {
			mu.Lock()
			got = append(got, c.OrchestratorURL)
			mu.Unlock()
		})
	}()

	// give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, "max_jobs_per_worker: 0\n")
	writeFile(t, path, "orchestrator_url: https://b.example.com/\n")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1] == "https://b.example.com"
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
