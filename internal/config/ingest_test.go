package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngestPolicyDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	holder, err := NewIngestPolicyHolder(Config{Ingest: IngestConfig{PolicyPaths: []string{dir}}}, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, DefaultMaxRows, policy.MaxRows)
	assert.InDelta(t, DefaultMaxErrorRatio, policy.MaxErrorRatio, 1e-9)
}

func TestIngestPolicyFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("ingest:\n  maxRows: 50\n  maxErrorRatio: 0.5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingest.yml"), content, 0o600))

	holder, err := NewIngestPolicyHolder(Config{Ingest: IngestConfig{PolicyPaths: []string{dir}}}, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 50, policy.MaxRows)
	assert.InDelta(t, 0.5, policy.MaxErrorRatio, 1e-9)
}

func TestIngestPolicyEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("ingest:\n  maxRows: 50\n  maxErrorRatio: 0.5\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingest.yml"), content, 0o600))
	t.Setenv("TAXMATE_INGEST_MAXROWS", "7")

	holder, err := NewIngestPolicyHolder(Config{Ingest: IngestConfig{PolicyPaths: []string{dir}}}, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 7, policy.MaxRows)
	assert.InDelta(t, 0.5, policy.MaxErrorRatio, 1e-9)
}

func TestIngestPolicyEnvWithoutFile(t *testing.T) {
	t.Setenv("TAXMATE_INGEST_MAXERRORRATIO", "0.05")

	holder, err := NewIngestPolicyHolder(Config{Ingest: IngestConfig{PolicyPaths: []string{t.TempDir()}}}, zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, DefaultMaxRows, policy.MaxRows)
	assert.InDelta(t, 0.05, policy.MaxErrorRatio, 1e-9)
}

func TestIngestPolicyRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("ingest:\n  maxRows: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingest.yml"), content, 0o600))

	_, err := NewIngestPolicyHolder(Config{Ingest: IngestConfig{PolicyPaths: []string{dir}}}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("DASHBOARD_CACHE_BACKEND", "Redis")
	t.Setenv("INGEST_POLICY_PATHS", " /a , ,/b ")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Ingest.PolicyPaths)
}
