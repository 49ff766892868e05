package providers

import (
	"context"
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
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "grib2json")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestGrib2JSONConvert(t *testing.T) {
	// $3 is the --output argument.
	bin := writeScript(t, `echo "[{\"header\":{}}]" > "$3"`+"\n")
	out := filepath.Join(t.TempDir(), "out.json")

	err := NewGrib2JSON(bin, time.Minute, nil).Convert(context.Background(), testStamp(t), "in.f000", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "header")
}

func TestGrib2JSONReportsStderr(t *testing.T) {
	bin := writeScript(t, "echo 'cannot read grib' >&2\nexit 3\n")

	err := NewGrib2JSON(bin, time.Minute, nil).Convert(context.Background(), testStamp(t), "in.f000", "out.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read grib")
	assert.Contains(t, err.Error(), "2024011506")
}

func TestGrib2JSONArgs(t *testing.T) {
	g := NewGrib2JSON("grib2json", 0, nil)
	assert.Equal(t,
		[]string{"--data", "--output", "json-data/x.json", "--names", "--compact", "grib-data/x.f000"},
		g.args("grib-data/x.f000", "json-data/x.json"))
}
