// Package config resolves TempleDB's runtime settings: the database
// path, log level, and log-to-file toggle (spec §6's three recognized
// environment variables). Grounded on the teacher's
// internal/config/config.go precedence chain and viper wiring.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is a resolved, immutable snapshot of the settings below.
type Config struct {
	DBPath     string
	LogLevel   string
	LogToFile  bool
	LogFilePath string
}

// Load resolves settings from TEMPLEDB_* environment variables, an
// optional templedb.yaml (project dir, then user config dir), and
// built-in defaults. projectDir is the directory to search first for
// templedb.yaml; pass "" to skip project-local discovery.
func Load(projectDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("templedb")

	configFileSet := false
	if projectDir != "" {
		candidate := filepath.Join(projectDir, "templedb.yaml")
		if _, err := os.Stat(candidate); err == nil {
			v.SetConfigFile(candidate)
			configFileSet = true
		}
	}
	if !configFileSet {
		if dir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(dir, "templedb", "templedb.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("TEMPLEDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", defaultDBPath())
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", false)
	v.SetDefault("log-file-path", defaultLogPath())

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return &Config{
		DBPath:      v.GetString("db"),
		LogLevel:    v.GetString("log-level"),
		LogToFile:   v.GetBool("log-file"),
		LogFilePath: v.GetString("log-file-path"),
	}, nil
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "templedb", "templedb.db")
}

func defaultLogPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "templedb", "templedb.log")
}
