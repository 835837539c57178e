// Package config loads litedev settings from defaults, litedev.yaml, LITEDEV_
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/willibrandon/litedev/observability"
)

// FileName is the settings file looked up next to the solution or in the working directory.
const FileName = "litedev.yaml"

// FileNameAlt is accepted when FileName does not exist.
const FileNameAlt = "litedev.yml"

// EnvPrefix marks environment variables that override settings, e.g. LITEDEV_BUILD_TOOL.
const EnvPrefix = "LITEDEV_"

// Settings is the complete litedev configuration.
type Settings struct {
	Projects ProjectSettings  `koanf:"projects"`
	Build    BuildSettings    `koanf:"build"`
	Debugger DebuggerSettings `koanf:"debugger"`
	Log      LogSettings      `koanf:"log"`
	Tracing  TracingSettings  `koanf:"tracing"`

	// File is the settings file that was read, or empty
	File string `koanf:"-"`
}

// ProjectSettings controls what the workbench surfaces around builds.
type ProjectSettings struct {
	ShowOutputWhenBuilding    bool `koanf:"show_output_when_building"`
	ShowErrorsWhenBuildFailed bool `koanf:"show_errors_when_build_failed"`

	// StrictConditions rejects property group conditions that are not a
	// plain configuration/platform comparison instead of ignoring them
	StrictConditions bool `koanf:"strict_conditions"`
}

// BuildSettings selects the external build tool.
type BuildSettings struct {
	Tool        string   `koanf:"tool"`
	Args        []string `koanf:"args"`
	MaxParallel int      `koanf:"max_parallel"`
}

// DebuggerSettings selects the debug adapter. An adapter of the form
// tcp://host:port is dialed instead of spawned.
type DebuggerSettings struct {
	Adapter     string   `koanf:"adapter"`
	AdapterArgs []string `koanf:"adapter_args"`
	AdapterID   string   `koanf:"adapter_id"`
}

// LogSettings controls the console logger.
type LogSettings struct {
	Level string `koanf:"level"`
}

// TracingSettings controls the OpenTelemetry exporter.
type TracingSettings struct {
	Exporter string `koanf:"exporter"`
	Endpoint string `koanf:"endpoint"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"projects.show_output_when_building":     true,
		"projects.show_errors_when_build_failed": true,
		"projects.strict_conditions":             false,
		"build.tool":                             "dotnet",
		"build.args":                             []string{},
		"build.max_parallel":                     1,
		"debugger.adapter":                       "netcoredbg",
		"debugger.adapter_args":                  []string{"--interpreter=vscode"},
		"debugger.adapter_id":                    "coreclr",
		"log.level":                              "info",
		"tracing.exporter":                       "none",
		"tracing.endpoint":                       "localhost:4317",
	}
}

// flagKeys maps command-line flags to settings keys.
var flagKeys = map[string]string{
	"verbosity":    "log.level",
	"tool":         "build.tool",
	"max-parallel": "build.max_parallel",
	"adapter":      "debugger.adapter",
	"tracing":      "tracing.exporter",
}

// listKeys are split on whitespace when they come from the environment.
var listKeys = map[string]bool{
	"build.args":            true,
	"debugger.adapter_args": true,
}

// Load reads settings. path names the settings file; when empty, FindFile
// searches the working directory. flags may be nil; only flags the user
// set explicitly override other sources.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = FindFile(wd)
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	s.File = path
	return &s, nil
}

// envValue maps LITEDEV_BUILD_MAX_PARALLEL to build.max_parallel: the first
// underscore separates the section from the key.
func envValue(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.Replace(key, "_", ".", 1)
	if listKeys[key] {
		return key, strings.Fields(value)
	}
	return key, value
}

// FindFile returns the settings file in dir, or "" when there is none.
func FindFile(dir string) string {
	for _, name := range []string{FileName, FileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LogLevel parses Log.Level.
func (s *Settings) LogLevel() (observability.LogLevel, error) {
	return observability.ParseLogLevel(s.Log.Level)
}

// TracerConfig returns the tracing configuration for observability.SetupTracing.
func (s *Settings) TracerConfig() observability.TracerConfig {
	cfg := observability.DefaultTracerConfig()
	cfg.ExporterType = s.Tracing.Exporter
	cfg.OTLPEndpoint = s.Tracing.Endpoint
	return cfg
}
