package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walk = `
graph "walk" {
  node "root" {
    trait "Blend" {
      a      = node.clip
      weight = 1
    }
  }

  node "clip" {
    trait "Clip" {
      clip   = object("walk_cycle")
      length = 2
      loop   = true
      rate   = 1
    }
    trait "Print" {
      label = object("walking")
      every = 1
    }
  }
}

module "walker" {
  graph  = "walk"
  events = ["PrePhysics"]
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	err := Execute(context.Background(), args, out)
	return out.String(), err
}

func requireExitCode(t *testing.T, err error, code int) *ExitError {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
	assert.Equal(t, code, exitErr.Code)
	return exitErr
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "walk.hcl", walk)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Descriptions are valid: 1 graphs, 1 module instances, 0 warnings")
}

func TestValidateReportsErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.hcl", `
graph "g" {
  node "a" {
    trait "Clop" {}
  }
}
`)
	_, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "did you mean 'Clip'?")
}

func TestRunFrames(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "walk.hcl", walk)

	out, err := execute(t, "run", "--frames", "2", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Frame loop finished.")
	assert.Contains(t, out, "frames=2")
	assert.Contains(t, out, "label=walking")
}

func TestRunUsesSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "walk.hcl", walk)
	settings := writeFile(t, dir, "traitgraph.yaml", "paths: ["+path+"]\nframes: 4\nlog_format: json\n")

	out, err := execute(t, "run", "--config", settings, "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, `"msg":"🏁 Frame loop finished."`)
	assert.Contains(t, out, `"frames":4`)
}

func TestCompileWritesArchives(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "walk.hcl", walk)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "compile", "--out", outDir, path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote walk.tgraph")
	assert.FileExists(t, filepath.Join(outDir, "walk.tgraph"))

	// The compiled directory serves as a file store for later runs.
	out, err = execute(t, "dump", "--store", "file", "--store-dir", outDir, path)
	require.NoError(t, err)
	assert.Contains(t, out, "graph walk: 2 nodes")
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "walk.hcl", walk)

	out, err := execute(t, "dump", "--templates", "--graph", "walk", path)
	require.NoError(t, err)
	assert.Contains(t, out, "graph walk: 2 nodes")

	_, err = execute(t, "dump", "--graph", "run", path)
	assert.ErrorContains(t, err, "graph 'run' is not loaded")
}

func TestUsageErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "walk.hcl", walk)

	t.Run("unknown flag", func(t *testing.T) {
		_, err := execute(t, "run", "--this-is-not-a-valid-flag")
		exitErr := requireExitCode(t, err, 2)
		assert.Contains(t, exitErr.Message, "unknown flag: --this-is-not-a-valid-flag")
	})

	t.Run("bad log level", func(t *testing.T) {
		_, err := execute(t, "validate", "--log-level", "loud", path)
		exitErr := requireExitCode(t, err, 2)
		assert.Contains(t, exitErr.Message, "invalid log level 'loud'")
	})

	t.Run("no paths", func(t *testing.T) {
		_, err := execute(t, "validate", "--config", filepath.Join(dir, "none.yaml"))
		exitErr := requireExitCode(t, err, 2)
		assert.Contains(t, exitErr.Message, "reading settings")
	})

	t.Run("missing default settings file is fine", func(t *testing.T) {
		_, err := execute(t, "validate")
		exitErr := requireExitCode(t, err, 2)
		assert.Contains(t, exitErr.Message, "no graph description paths configured")
	})

	t.Run("negative frames", func(t *testing.T) {
		_, err := execute(t, "run", "--frames", "-1", path)
		exitErr := requireExitCode(t, err, 2)
		assert.Contains(t, exitErr.Message, "frames must not be negative")
	})
}

func TestHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "validate")
}

func TestValidateExamples(t *testing.T) {
	out, err := execute(t, "validate", filepath.Join("..", "..", "examples"))
	require.NoError(t, err)
	assert.Contains(t, out, "Descriptions are valid: 1 graphs, 2 module instances, 0 warnings")
}
