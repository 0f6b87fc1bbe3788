package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/adhocore/gronx"
)

// ErrMissing marks startup errors caused by absent mandatory values.
var ErrMissing = errors.New("missing required configuration")

// MissingError lists every mandatory variable that was not set.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissing, strings.Join(e.Vars, ", "))
}

func (e *MissingError) Unwrap() error { return ErrMissing }

// Validate reports the first class of fatal problems: missing mandatory
// values as a *MissingError, otherwise every malformed tunable joined.
func (c *Config) Validate() error {
	var missing []string
	if c.Nostr.SecretKey == "" {
		missing = append(missing, "NOSTR_BOT_NSEC")
	}
	if c.X.AccountID == "" {
		missing = append(missing, "X_ACCOUNT_ID_TO_FOLLOW")
	}
	if c.X.BearerToken == "" {
		if c.X.APIKey == "" {
			missing = append(missing, "X_API_KEY (or X_BEARER_TOKEN)")
		}
		if c.X.APISecret == "" {
			missing = append(missing, "X_API_SECRET (or X_BEARER_TOKEN)")
		}
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}

	var errs []error
	if len(c.Nostr.Relays) == 0 {
		errs = append(errs, errors.New("nostr.relays: at least one relay is required"))
	}
	for _, r := range c.Nostr.Relays {
		u, err := url.Parse(r)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			errs = append(errs, fmt.Errorf("nostr.relays: %q is not a ws:// or wss:// URL", r))
		}
	}
	for _, h := range c.Media.Hosts {
		if h != HostNostrBuild && h != HostVoidCat {
			errs = append(errs, fmt.Errorf("media.hosts: unknown host %q", h))
		}
	}
	if c.Media.StageDir == "" {
		errs = append(errs, errors.New("media.stage_dir is required"))
	}
	if c.X.MaxResults < 1 || c.X.MaxResults > 100 {
		errs = append(errs, fmt.Errorf("x.max_results: %d out of range 1..100", c.X.MaxResults))
	}
	if c.Bridge.Schedule != "" {
		if !gronx.IsValid(c.Bridge.Schedule) {
			errs = append(errs, fmt.Errorf("bridge.schedule: invalid cron expression %q", c.Bridge.Schedule))
		}
	} else if c.Bridge.Interval <= 0 {
		errs = append(errs, errors.New("bridge.interval must be positive"))
	}
	if c.Bridge.PostDelay < 0 {
		errs = append(errs, errors.New("bridge.post_delay must not be negative"))
	}
	if c.Alerts.Telegram.Token != "" && c.Alerts.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("alerts.telegram.chat_id is required with a token"))
	}
	return errors.Join(errs...)
}
