package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/litedev/observability"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	s, err := Load("", nil)
	require.NoError(t, err)

	assert.True(t, s.Projects.ShowOutputWhenBuilding)
	assert.True(t, s.Projects.ShowErrorsWhenBuildFailed)
	assert.False(t, s.Projects.StrictConditions)
	assert.Equal(t, "dotnet", s.Build.Tool)
	assert.Empty(t, s.Build.Args)
	assert.Equal(t, 1, s.Build.MaxParallel)
	assert.Equal(t, "netcoredbg", s.Debugger.Adapter)
	assert.Equal(t, []string{"--interpreter=vscode"}, s.Debugger.AdapterArgs)
	assert.Equal(t, "none", s.Tracing.Exporter)
	assert.Empty(t, s.File)

	level, err := s.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, observability.InfoLevel, level)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `
projects:
  show_output_when_building: false
build:
  tool: msbuild
  args: ["/nologo", "/m"]
  max_parallel: 4
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0o644))
	t.Setenv("LITEDEV_BUILD_MAX_PARALLEL", "8")
	t.Setenv("LITEDEV_DEBUGGER_ADAPTER_ARGS", "--interpreter=vscode --engineLogging")

	flags := pflag.NewFlagSet("litedev", pflag.ContinueOnError)
	flags.String("verbosity", "info", "")
	flags.String("tool", "dotnet", "")
	require.NoError(t, flags.Parse([]string{"--verbosity", "warn"}))

	s, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, FileName), s.File)
	assert.False(t, s.Projects.ShowOutputWhenBuilding, "file overrides defaults")
	assert.True(t, s.Projects.ShowErrorsWhenBuildFailed, "unset keys keep defaults")
	assert.Equal(t, "msbuild", s.Build.Tool, "flags not set explicitly do not override")
	assert.Equal(t, []string{"/nologo", "/m"}, s.Build.Args)
	assert.Equal(t, 8, s.Build.MaxParallel, "environment overrides the file")
	assert.Equal(t, []string{"--interpreter=vscode", "--engineLogging"}, s.Debugger.AdapterArgs)
	assert.Equal(t, "warn", s.Log.Level, "flags override everything")
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("tracing:\n  exporter: stdout\n"), 0o644))

	s, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "stdout", s.TracerConfig().ExporterType)
	assert.Equal(t, "localhost:4317", s.TracerConfig().OTLPEndpoint)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("build: [unterminated"), 0o644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestFindFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileNameAlt), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, FileNameAlt), FindFile(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, FileName), FindFile(dir))
}
