package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, opts := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := execute(root, opts, args)
	return out.String(), err
}

func TestRootCmd_RequiresFiles(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}

func TestExecute_ClosesLogFileWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "rag.log")
	cfgPath := writeFile(t, dir, "config.yaml", "logging:\n  level: debug\n  file: "+logPath+"\n")

	root, opts := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := execute(root, opts, []string{"--config", cfgPath, "search", "x.txt"})

	require.Error(t, err)
	assert.Nil(t, opts.cleanup, "log output released")
	_, statErr := os.Stat(logPath)
	assert.NoError(t, statErr)
}

func TestSearchCmd_Text(t *testing.T) {
	// Given: two documents and the default config
	dir := t.TempDir()
	writeFile(t, dir, "go.txt", "Go channels make concurrency simple.")
	writeFile(t, dir, "bread.txt", "Sourdough bread needs a starter.")
	cfgPath := filepath.Join(dir, "missing.yaml")

	// When: searching for a concurrency term
	out, err := run(t, "--config", cfgPath, "search", "-q", "concurrency", filepath.Join(dir, "*.txt"))

	// Then: the matching document ranks first
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "1. ")
	assert.Contains(t, out, "go.txt")
	assert.Less(t, strings.Index(out, "go.txt"), strings.Index(out, "bread.txt"))
}

func TestSearchCmd_JSONWithFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "# Notes\n\nHybrid search notes.")
	writeFile(t, dir, "b.txt", "Hybrid search text.")

	out, err := run(t, "--config", filepath.Join(dir, "missing.yaml"),
		"search", "-q", "hybrid search", "--type", "md", "--format", "json",
		filepath.Join(dir, "a.md"), filepath.Join(dir, "b.txt"))
	require.NoError(t, err)

	var results []jsonResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "markdown", results[0].Strategy)
	assert.Contains(t, results[0].Text, "Hybrid search notes.")
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "search", "x.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--query is required")
}

func TestSearchCmd_NothingIndexed(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "search", "-q", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing indexed")
}

func TestSearchCmd_SQLitePersists(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "kr.txt", "포트폴리오 관리 방법을 설명합니다.")
	cfgPath := writeFile(t, dir, "config.yaml", "vector_store:\n  type: sqlite\n  sqlite:\n    path: "+filepath.Join(dir, "rag.db")+"\n")

	_, err := run(t, "--config", cfgPath, "search", "-q", "포트", doc)
	require.NoError(t, err)

	// no files: served from the database written by the first run
	out, err := run(t, "--config", cfgPath, "search", "-q", "포트", "--weight", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "kr.txt")
	assert.Contains(t, out, "포트폴리오")

	out, err = run(t, "--config", cfgPath, "clear")
	require.NoError(t, err)
	assert.Equal(t, "1 records removed\n", out)
}

func TestDeleteCmd(t *testing.T) {
	dir := t.TempDir()
	keep := writeFile(t, dir, "keep.txt", "Vector search keeps this one.")
	drop := writeFile(t, dir, "drop.txt", "Vector search drops this one.")
	cfgPath := writeFile(t, dir, "config.toml", "[vector_store]\ntype = \"sqlite\"\n\n[vector_store.sqlite]\npath = \""+
		filepath.ToSlash(filepath.Join(dir, "rag.db"))+"\"\n")

	out, err := run(t, "--config", cfgPath, "search", "-q", "vector search", "--format", "json", keep, drop)
	require.NoError(t, err)
	var results []jsonResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	var dropID string
	for _, r := range results {
		if src, _ := r.Source.(string); src == drop {
			dropID, _ = r.DocumentID.(string)
		}
	}
	require.NotEmpty(t, dropID)

	out, err = run(t, "--config", cfgPath, "delete", dropID)
	require.NoError(t, err)
	assert.Equal(t, dropID+": 1 chunks removed\n", out)

	out, err = run(t, "--config", cfgPath, "search", "-q", "vector search")
	require.NoError(t, err)
	assert.Contains(t, out, "keep.txt")
	assert.NotContains(t, out, "drop.txt")
}

func TestStrategiesCmd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", `
chunker:
  type: strategy
  use_builtins: true
  strategies:
    - name: logs
      chunk_size: 200
      chunk_overlap: 0
      detection_rules:
        source_patterns: ["*.log"]
`)
	out, err := run(t, "--config", cfgPath, "strategies")
	require.NoError(t, err)

	assert.Contains(t, out, "NAME")
	for _, name := range []string{"pdf", "markdown", "code", "korean", "logs", "default"} {
		assert.Contains(t, out, name)
	}
	assert.Less(t, strings.Index(out, "korean"), strings.Index(out, "logs"))
	assert.Contains(t, out, "source=*.log")
	assert.Contains(t, out, "(fallback)")
}

func TestStrategiesCmd_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "chunker:\n  strategies:\n    - {name: bad, chunk_size: 5, chunk_overlap: 5}\n")
	_, err := run(t, "--config", cfgPath, "strategies")
	require.Error(t, err)
}
