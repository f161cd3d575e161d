package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityak74/weatherweave/internal/core/domain"
)

// setupEnv points every command at a temp data dir, a fake weather API
// and a shell worker that writes its prompt into the destination file.
func setupEnv(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell worker not supported on windows")
	}

	weather := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"current":{"time":"2024-06-01T10:00","temperature_2m":55.2,
			"precipitation":1.4,"cloud_cover":90,"weather_code":61}}`))
	}))
	t.Cleanup(weather.Close)

	dir := t.TempDir()
	worker := filepath.Join(dir, "worker.sh")
	require.NoError(t, os.WriteFile(worker, []byte("#!/bin/sh\nprintf '%s' \"$1\" > \"$2\"\n"), 0o755))

	dataDir := filepath.Join(dir, "data")
	t.Setenv("WEATHERWEAVE_DATA_DIR", dataDir)
	t.Setenv("WEATHERWEAVE_DB_PATH", "")
	t.Setenv("WEATHERWEAVE_WEATHER_URL", weather.URL)
	t.Setenv("WEATHERWEAVE_WORKER_COMMAND", worker)
	t.Setenv("WEATHERWEAVE_FALLBACK_URL", "http://127.0.0.1:1")
	t.Setenv("WEATHERWEAVE_APPLY_COMMAND", "")
	t.Setenv("WEATHERWEAVE_LATITUDE", "51.5")
	t.Setenv("WEATHERWEAVE_LONGITUDE", "-0.12")
	t.Setenv("WEATHERWEAVE_SECRET_KEY", "")
	t.Setenv("WEATHERWEAVE_LOG_LEVEL", "error")
	return dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("1.2.3")
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCmd_Commands(t *testing.T) {
	root := NewRootCmd("dev")

	want := []string{"serve", "generate", "weather", "history", "apply", "delete", "prune", "themes", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Short, name)
	}

	for _, flag := range []string{"env-file", "data-dir", "latitude", "longitude", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionAndThemes(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "weatherweave 1.2.3\n", out)

	out, err = execute(t, "themes")
	require.NoError(t, err)
	for _, th := range domain.AllThemes {
		assert.Contains(t, out, string(th))
	}
	assert.Contains(t, out, "(default)")
}

func TestWeather(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "weather", "--theme", "cyberpunk", "--json")
	require.NoError(t, err)

	var p struct {
		Category domain.WeatherCategory `json:"category"`
		Theme    domain.Theme           `json:"theme"`
		Prompt   string                 `json:"prompt"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, domain.WeatherRainy, p.Category)
	assert.Equal(t, domain.ThemeCyberpunk, p.Theme)
	assert.NotEmpty(t, p.Prompt)

	_, err = execute(t, "weather", "--theme", "vaporwave")
	assert.ErrorIs(t, err, domain.ErrUnknownTheme)
}

func TestGenerateRequiresLocation(t *testing.T) {
	setupEnv(t)
	t.Setenv("WEATHERWEAVE_LATITUDE", "")
	t.Setenv("WEATHERWEAVE_LONGITUDE", "")

	_, err := execute(t, "generate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHERWEAVE_LATITUDE")
}

func TestGenerateHistoryApplyDeletePrune(t *testing.T) {
	dataDir := setupEnv(t)

	var ids []string
	for i := 0; i < 3; i++ {
		out, err := execute(t, "generate", "--json")
		require.NoError(t, err)
		var res struct {
			Artifact domain.Artifact `json:"artifact"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		require.NotEmpty(t, res.Artifact.ID)
		assert.True(t, strings.HasPrefix(res.Artifact.ImagePath, filepath.Join(dataDir, "wallpapers")))
		ids = append(ids, string(res.Artifact.ID))
	}

	out, err := execute(t, "history")
	require.NoError(t, err)
	for _, id := range ids {
		assert.Contains(t, out, id)
	}

	_, err = execute(t, "apply", ids[0])
	require.NoError(t, err)

	out, err = execute(t, "history", "--json")
	require.NoError(t, err)
	var hist struct {
		Current   domain.ArtifactID `json:"current"`
		Artifacts []domain.Artifact `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hist))
	assert.Equal(t, domain.ArtifactID(ids[0]), hist.Current)
	assert.Len(t, hist.Artifacts, 3)

	_, err = execute(t, "delete", ids[2])
	require.NoError(t, err)
	_, err = execute(t, "delete", ids[2])
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// ids[0] is current, so pruning to one drops ids[1].
	out, err = execute(t, "prune", "--keep", "1", "--runs", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 wallpaper(s), 1 kept")
	assert.Contains(t, out, "Removed 2 run record(s)")

	_, err = execute(t, "prune", "--keep", "0")
	assert.Error(t, err)

	_, err = execute(t, "apply", "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	NewLogger(buf, "warn", "json").Info("hidden")
	assert.Empty(t, buf.String())

	NewLogger(buf, "debug", "text").Debug("shown", "k", "v")
	assert.Contains(t, buf.String(), "k=v")
}
