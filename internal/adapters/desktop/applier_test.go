package desktop

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/adityak74/weatherweave/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "apply.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCommandApplier_Substitutes(t *testing.T) {
	out := filepath.Join(t.TempDir(), "applied.txt")
	s := script(t, `echo "$1 $2" >> "`+out+`"`)

	a, err := NewCommandApplier(testLogger(), s+" {display} {path}", []domain.DisplayID{"left", "right"})
	require.NoError(t, err)

	displays, err := a.Displays(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.DisplayID{"left", "right"}, displays)

	for _, d := range displays {
		require.NoError(t, a.Apply(context.Background(), "/tmp/my walls/w.png", d))
	}

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "left /tmp/my walls/w.png\nright /tmp/my walls/w.png\n", string(data))
}

func TestCommandApplier_Failure(t *testing.T) {
	s := script(t, `echo "no such display" >&2; exit 1`)

	a, err := NewCommandApplier(testLogger(), s+" {path}", nil)
	require.NoError(t, err)

	err = a.Apply(context.Background(), "/tmp/w.png", "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such display")
}

func TestCommandApplier_Timeout(t *testing.T) {
	s := script(t, `exec sleep 30`)

	a, err := NewCommandApplier(testLogger(), s+" {path}", nil)
	require.NoError(t, err)
	a.timeout = 100 * time.Millisecond

	err = a.Apply(context.Background(), "/tmp/w.png", "main")
	assert.ErrorContains(t, err, "timed out")
}

func TestNew(t *testing.T) {
	a, err := New(testLogger(), "  ", nil)
	require.NoError(t, err)
	_, isLog := a.(*LogApplier)
	assert.True(t, isLog)
	assert.NoError(t, a.Apply(context.Background(), "/tmp/w.png", "main"))

	_, err = New(testLogger(), "feh --bg-fill", nil)
	assert.ErrorContains(t, err, "{path}")

	a, err = New(testLogger(), "feh --bg-fill {path}", nil)
	require.NoError(t, err)
	_, isCmd := a.(*CommandApplier)
	assert.True(t, isCmd)
}
