package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/tinyland-inc/xnostr/pkg/config"
)

var (
	// ErrHostNotConfigured means the host was skipped without a request.
	ErrHostNotConfigured = errors.New("host not configured")
	// ErrNoURL means the host answered but the response carried no usable URL.
	ErrNoURL = errors.New("host response has no url")
)

// Host is one public image host. Upload sends the staged file and returns the
// public URL it is reachable at.
type Host interface {
	Name() string
	Upload(ctx context.Context, path string) (string, error)
}

// NostrBuild uploads to nostr.build's v2 API with a bearer key.
type NostrBuild struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewNostrBuild(client *resty.Client, endpoint, apiKey string) *NostrBuild {
	return &NostrBuild{client: client, endpoint: endpoint, apiKey: apiKey}
}

func (h *NostrBuild) Name() string { return config.HostNostrBuild }

func (h *NostrBuild) Upload(ctx context.Context, path string) (string, error) {
	if h.apiKey == "" {
		return "", ErrHostNotConfigured
	}
	resp, err := h.client.R().
		SetContext(ctx).
		SetAuthToken(h.apiKey).
		SetFile("file", path).
		Post(h.endpoint)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("%s: status %d", h.Name(), resp.StatusCode())
	}
	return extractURL(resp.Body(), "data.0.url", "")
}

// VoidCat uploads anonymously; the public URL is derived from the file id.
type VoidCat struct {
	client  *resty.Client
	baseURL string
}

func NewVoidCat(client *resty.Client, baseURL string) *VoidCat {
	return &VoidCat{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (h *VoidCat) Name() string { return config.HostVoidCat }

func (h *VoidCat) Upload(ctx context.Context, path string) (string, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetFile("file", path).
		Post(h.baseURL + "/upload")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("%s: status %d", h.Name(), resp.StatusCode())
	}
	return extractURL(resp.Body(), "file.id", h.baseURL+"/d/")
}

func extractURL(body []byte, path, prefix string) (string, error) {
	v := gjson.GetBytes(body, path)
	if !v.Exists() || v.String() == "" {
		return "", ErrNoURL
	}
	return prefix + v.String(), nil
}

// HostsFromConfig builds the upload chain in the configured priority order.
func HostsFromConfig(client *resty.Client, cfg config.MediaConfig) ([]Host, error) {
	hosts := make([]Host, 0, len(cfg.Hosts))
	for _, name := range cfg.Hosts {
		switch name {
		case config.HostNostrBuild:
			hosts = append(hosts, NewNostrBuild(client, cfg.NostrBuildURL, cfg.NostrBuildAPIKey))
		case config.HostVoidCat:
			hosts = append(hosts, NewVoidCat(client, cfg.VoidCatURL))
		default:
			return nil, fmt.Errorf("unknown media host %q", name)
		}
	}
	return hosts, nil
}
