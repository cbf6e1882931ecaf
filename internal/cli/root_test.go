package cmd_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmd "github.com/rohmanhakim/webcrawler/internal/cli"
	"github.com/rohmanhakim/webcrawler/internal/config"
)

func TestBuildConfig_FromFlags(t *testing.T) {
	cmd.ResetFlags()
	t.Cleanup(cmd.ResetFlags)

	cmd.SetSeedURLsForTest([]string{"https://example.com/docs"})
	cmd.SetStorageBackendForTest(config.StorageBackendMemory)
	cmd.SetRespectRobotsForTest(false)

	cfg, err := cmd.BuildConfigForTest()
	require.NoError(t, err)

	seeds := cfg.SeedURLs()
	require.Len(t, seeds, 1)
	assert.Equal(t, "example.com", seeds[0].Host)
	assert.Equal(t, config.StorageBackendMemory, cfg.StorageBackend())
	assert.False(t, cfg.RespectRobots())
	// flag defaults flow through unchanged
	assert.Equal(t, 3, cfg.MaxDepth())
	assert.Equal(t, 100, cfg.MaxPages())
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
}

func TestBuildConfig_NoSeedsFails(t *testing.T) {
	cmd.ResetFlags()
	t.Cleanup(cmd.ResetFlags)

	_, err := cmd.BuildConfigForTest()
	assert.Error(t, err)
}

func TestBuildConfig_FromConfigFile(t *testing.T) {
	cmd.ResetFlags()
	t.Cleanup(cmd.ResetFlags)

	dir := t.TempDir()
	path := filepath.Join(dir, "crawler.json")
	content := `{"seed_urls": ["https://example.com/"], "max_depth": 1, "storage_backend": "memory"}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cmd.SetConfigFileForTest(path)

	cfg, err := cmd.BuildConfigForTest()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.MaxDepth())
	assert.Equal(t, config.StorageBackendMemory, cfg.StorageBackend())
}
