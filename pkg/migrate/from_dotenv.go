// Package migrate converts a dotenv deployment into a YAML config file.
package migrate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/tinyland-inc/xnostr/pkg/config"
)

// secretVars are never written to the YAML file. Each becomes a ${VAR}
// reference that config.Load expands from the environment.
var secretVars = []string{
	"X_API_KEY",
	"X_API_SECRET",
	"X_BEARER_TOKEN",
	"NOSTR_BOT_NSEC",
	"NOSTR_BUILD_API_KEY",
	"XNOSTR_ALERT_DISCORD_WEBHOOK",
	"XNOSTR_ALERT_SLACK_WEBHOOK",
	"XNOSTR_ALERT_TELEGRAM_TOKEN",
}

// ignoredVars are recognised but have no counterpart: the timeline is read
// with app-only auth, so user-context tokens are unused.
var ignoredVars = map[string]string{
	"X_ACCESS_TOKEN":        "user-context token is not used with app-only auth",
	"X_ACCESS_TOKEN_SECRET": "user-context token is not used with app-only auth",
	"X_ACCESS_SECRET":       "user-context token is not used with app-only auth",
}

type FromDotenvOptions struct {
	EnvPath    string
	OutputPath string
	DryRun     bool
	Force      bool
	Stdout     io.Writer // dry-run output, defaults to os.Stdout
}

type FromDotenvResult struct {
	OutputPath string
	Warnings   []string
}

const header = `# Generated by "xnostr migrate from-dotenv".
# Secrets are referenced as ${VAR} and resolved from the environment at load time.
`

// RunFromDotenv reads a dotenv file, overlays it on the defaults and writes
// the result as YAML with secrets redacted.
func RunFromDotenv(opts FromDotenvOptions) (*FromDotenvResult, error) {
	if opts.EnvPath == "" {
		return nil, errors.New("env path is required")
	}
	if opts.OutputPath == "" && !opts.DryRun {
		return nil, errors.New("output path is required")
	}

	vars, err := godotenv.Read(opts.EnvPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", opts.EnvPath, err)
	}

	cfg, warnings, err := redactedConfig(vars)
	if err != nil {
		return nil, err
	}

	result := &FromDotenvResult{OutputPath: opts.OutputPath, Warnings: warnings}

	if opts.DryRun {
		doc, err := config.EncodeConfig(cfg, header)
		if err != nil {
			return nil, err
		}
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		if _, err := out.Write(doc); err != nil {
			return nil, err
		}
		return result, nil
	}

	if _, err := os.Stat(opts.OutputPath); err == nil && !opts.Force {
		return nil, fmt.Errorf("%s already exists (use --force to overwrite)", opts.OutputPath)
	}
	if err := config.SaveConfig(opts.OutputPath, cfg, header); err != nil {
		return nil, err
	}
	return result, nil
}

// Convert renders the YAML document for a set of dotenv variables.
func Convert(vars map[string]string) ([]byte, []string, error) {
	cfg, warnings, err := redactedConfig(vars)
	if err != nil {
		return nil, nil, err
	}
	doc, err := config.EncodeConfig(cfg, header)
	if err != nil {
		return nil, nil, err
	}
	return doc, warnings, nil
}

func redactedConfig(vars map[string]string) (*config.Config, []string, error) {
	cfg := config.DefaultConfig()
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, nil, fmt.Errorf("parse variables: %w", err)
	}

	var warnings []string
	for _, name := range secretVars {
		if vars[name] == "" {
			continue
		}
		redact(cfg, name)
		warnings = append(warnings, fmt.Sprintf("%s redacted; export it in the service environment", name))
	}

	names := make([]string, 0, len(ignoredVars))
	for name := range ignoredVars {
		if _, ok := vars[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		warnings = append(warnings, fmt.Sprintf("%s ignored: %s", name, ignoredVars[name]))
	}
	return cfg, warnings, nil
}

func redact(cfg *config.Config, name string) {
	ref := "${" + name + "}"
	switch name {
	case "X_API_KEY":
		cfg.X.APIKey = ref
	case "X_API_SECRET":
		cfg.X.APISecret = ref
	case "X_BEARER_TOKEN":
		cfg.X.BearerToken = ref
	case "NOSTR_BOT_NSEC":
		cfg.Nostr.SecretKey = ref
	case "NOSTR_BUILD_API_KEY":
		cfg.Media.NostrBuildAPIKey = ref
	case "XNOSTR_ALERT_DISCORD_WEBHOOK":
		cfg.Alerts.Discord.WebhookURL = ref
	case "XNOSTR_ALERT_SLACK_WEBHOOK":
		cfg.Alerts.Slack.WebhookURL = ref
	case "XNOSTR_ALERT_TELEGRAM_TOKEN":
		cfg.Alerts.Telegram.Token = ref
	}
}
