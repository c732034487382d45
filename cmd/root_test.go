package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Run from a temp dir so no config.yaml leaks into the test.
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSourcesCommand(t *testing.T) {
	out, err := execute(t, "sources")
	require.NoError(t, err)
	assert.Contains(t, out, "zabihah")
	assert.Contains(t, out, "halaljoints")
	assert.Contains(t, out, "yelp")
	assert.Contains(t, out, "gmaps")
	assert.Contains(t, out, "browser")
	assert.Contains(t, out, "static")
}

func TestScrapeCommand_RequiresRegion(t *testing.T) {
	_, err := execute(t, "scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}

func TestPromoteCommand_RequiresSelector(t *testing.T) {
	_, err := execute(t, "promote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--staged-id or --all")
}

func TestStagedCommand_UnknownStatus(t *testing.T) {
	_, err := execute(t, "staged", "--status", "APPROVED_MAYBE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown staged status")
}
