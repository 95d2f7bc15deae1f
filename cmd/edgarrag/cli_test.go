package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgar_rag/pkg/core/config"
	"edgar_rag/pkg/core/pipeline"
	"edgar_rag/pkg/core/store"
)

const filingMarkdown = `EXAMPLE CORP

# Item 1A. Risk Factors

Competition in cloud services is intense. We face competition from large technology companies and from smaller specialized providers in every market we serve, and pricing pressure may reduce our margins over time while our costs continue to rise.

# Consolidated Balance Sheets

(In millions)

|  | June 30, 2024 | June 30, 2023 |
|---|---|---|
| Total assets | 512,163 | 411,976 |
| Total liabilities | 243,686 | 205,753 |
| Total stockholders' equity | 268,477 | 206,223 |
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EDGAR_TICKERS", "MSFT")
	t.Setenv("EDGAR_USER_AGENT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ADDR", "")
}

func TestParseThenStats(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "MSFT"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MSFT", "10K_2024-07-30.md"), []byte(filingMarkdown), 0o644))
	db := filepath.Join(t.TempDir(), "edgar.db")
	common := []string{"--store", "sqlite", "--sqlite-path", db}

	out, err := execute(t, append([]string{"schema"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Schema ready (sqlite)")

	out, err = execute(t, append([]string{"parse", "--dir", dir, "--json"}, common...)...)
	require.NoError(t, err)
	var first pipeline.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, 1, first.Processed)
	assert.Equal(t, 6, first.Facts.Inserted)
	assert.Equal(t, 1, first.Chunks.Inserted)

	out, err = execute(t, append([]string{"parse", "--dir", dir, "--json"}, common...)...)
	require.NoError(t, err)
	var second pipeline.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Zero(t, second.Facts.Inserted)
	assert.Equal(t, 6, second.Facts.Conflicts)
	assert.Equal(t, 1, second.Chunks.Conflicts)

	out, err = execute(t, append([]string{"stats", "--json"}, common...)...)
	require.NoError(t, err)
	var stats store.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Filings)
	assert.Equal(t, 6, stats.Facts)
	assert.Equal(t, 1, stats.Chunks)
	assert.Zero(t, stats.EmbeddedChunks)
}

func TestInvalidStoreDriver(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "stats", "--store", "mysql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestFetchRequiresUserAgent(t *testing.T) {
	setupEnv(t)
	_, err := execute(t, "fetch", "--store", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User-Agent")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\t c", 10))
	long := strings.Repeat("x", 20)
	assert.Equal(t, strings.Repeat("x", 8)+"...", preview(long, 8))
}

func TestPipelineConfigFollowsSettings(t *testing.T) {
	saved := app.cfg
	t.Cleanup(func() { app.cfg = saved })

	app.cfg = config.Default()
	app.cfg.Validation.BalanceSheetTolerance = 0.5
	app.cfg.Chunk.Size = 800

	cfg := pipelineConfig()
	assert.True(t, cfg.Validation.Enabled)
	assert.Equal(t, 0.5, cfg.Validation.BalanceSheetTolerance)
	assert.Equal(t, 800, cfg.Chunk.Size)
}
