package exec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestLocalExecCapturesOutput(t *testing.T) {
	script := writeScript(t, `echo "out $1"; echo "err" >&2`)
	result, err := NewLocalExec().Run(context.Background(), []string{script, "arg"}, &Opts{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out arg\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
}

func TestLocalExecNonZeroExit(t *testing.T) {
	script := writeScript(t, `exit 3`)
	result, err := NewLocalExec().Run(context.Background(), []string{script}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestLocalExecMissingExecutable(t *testing.T) {
	_, err := NewLocalExec().Run(context.Background(), []string{"definitely-not-a-real-tool-xyz"}, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalExecTimeout(t *testing.T) {
	script := writeScript(t, `sleep 5`)
	start := time.Now()
	_, err := NewLocalExec().Run(context.Background(), []string{script}, &Opts{Timeout: 100 * time.Millisecond})
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLocalExecWorkDirAndEnv(t *testing.T) {
	script := writeScript(t, `pwd; echo "$DOC_FLAG"`)
	dir := t.TempDir()
	result, err := NewLocalExec().Run(context.Background(), []string{script}, &Opts{WorkDir: dir, Env: []string{"DOC_FLAG=on"}})
	require.NoError(t, err)
	resolved, _ := filepath.EvalSymlinks(dir)
	assert.Contains(t, result.Stdout, filepath.Base(resolved))
	assert.Contains(t, result.Stdout, "on\n")

	_, err = NewLocalExec().Run(context.Background(), []string{script}, &Opts{WorkDir: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestLocalExecEmptyCommand(t *testing.T) {
	_, err := NewLocalExec().Run(context.Background(), nil, nil)
	assert.Error(t, err)
}
