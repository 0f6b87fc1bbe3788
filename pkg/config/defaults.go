package config

import "time"

const (
	HostNostrBuild = "nostr.build"
	HostVoidCat    = "void.cat"
)

// DefaultRelays is the relay set the bridge publishes to unless configured.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://relay.snort.social",
	"wss://nos.lol",
	"wss://relay.nostr.band",
}

func DefaultConfig() *Config {
	return &Config{
		X: XConfig{
			BaseURL:    "https://api.twitter.com",
			TokenURL:   "https://api.twitter.com/oauth2/token",
			MaxResults: 5,
			Timeout:    30 * time.Second,
		},
		Nostr: NostrConfig{
			Relays:         append([]string(nil), DefaultRelays...),
			ClientTag:      "x-nostr-bridge",
			Provenance:     true,
			PublishTimeout: 10 * time.Second,
			DialTimeout:    10 * time.Second,
		},
		Media: MediaConfig{
			StageDir:         "~/.xnostr/temp_images",
			Hosts:            []string{HostNostrBuild, HostVoidCat},
			NostrBuildURL:    "https://nostr.build/api/v2/upload/files",
			VoidCatURL:       "https://void.cat",
			DownloadTimeout:  30 * time.Second,
			UploadTimeout:    60 * time.Second,
			MaxDownloadBytes: 20 << 20,
			Concurrency:      2,
		},
		Bridge: BridgeConfig{
			Interval:  15 * time.Minute,
			PostDelay: 3 * time.Second,
		},
		Health: HealthConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    18795,
		},
		Store: StoreConfig{
			Key: "xnostr:cursor",
		},
		Alerts: AlertsConfig{
			Prefix: "xnostr",
		},
	}
}
