package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tinyland-inc/xnostr/pkg/config"
)

const Logo = "🌉"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

func GetHomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".xnostr")
}

func GetConfigPath() string {
	return filepath.Join(GetHomeDir(), "config.yaml")
}

// LoadConfig reads the YAML config (default path when empty) merged with
// the dotenv file and the process environment.
func LoadConfig(configPath, envFile string) (*config.Config, error) {
	if configPath == "" {
		configPath = GetConfigPath()
	}
	cfg, err := config.Load(config.LoadOptions{ConfigPath: configPath, EnvFile: envFile})
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
