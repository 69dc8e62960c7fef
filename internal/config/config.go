// Package config resolves Pensa/Springfield settings from flags, the
// PN_ environment (plus SGF_RALPH_BINARY for the harness path), and a
// project-local .pensa/config.toml, in that order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper singleton. Call once at process
// startup, the way the teacher's own CLI entrypoints call
// config.Initialize before dispatching to a subcommand.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("toml")

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			path := filepath.Join(dir, ".pensa", "config.toml")
			if _, err := os.Stat(path); err == nil {
				v.SetConfigFile(path)
				break
			}
		}
	}

	v.SetEnvPrefix("PN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ralph-binary", "PN_RALPH_BINARY", "SGF_RALPH_BINARY")

	v.SetDefault("port", 7533)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("actor", "")
	v.SetDefault("ralph-binary", "ralph")
	v.SetDefault("ralph-template", "ralph-sandbox:latest")
	v.SetDefault("ralph-max-iterations", 30)
	v.SetDefault("ralph-auto-push", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// Get is the viper singleton, exposed for flag binding in cobra
// command init() functions.
func Get() *viper.Viper {
	if v == nil {
		_ = Initialize()
	}
	return v
}

func Port() int                 { return Get().GetInt("port") }
func Host() string              { return Get().GetString("host") }
func DefaultActor() string      { return Get().GetString("actor") }
func RalphBinary() string       { return Get().GetString("ralph-binary") }
func RalphTemplate() string     { return Get().GetString("ralph-template") }
func RalphMaxIterations() int   { return Get().GetInt("ralph-max-iterations") }
func RalphAutoPushDefault() bool { return Get().GetBool("ralph-auto-push") }
