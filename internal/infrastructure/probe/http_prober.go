package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"eclairia/internal/core/domain"
	"eclairia/internal/core/ports"
)

const (
	DefaultMethod    = http.MethodHead
	DefaultUserAgent = "Eclairia-Radio-Player/1.0"

	unknownContentType = "unknown"
)

type Config struct {
	Method string
	// ProxyBaseURL routes probes through "<base>/proxy?url=<stream>" when set.
	ProxyBaseURL string
	UserAgent    string
}

// HTTPProber checks a station by issuing one HTTP request to its stream URL.
// The per-attempt deadline comes from the request context.
type HTTPProber struct {
	client *http.Client
	cfg    Config
}

var _ ports.Prober = (*HTTPProber)(nil)

func NewHTTPProber(client *http.Client, cfg Config) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Method == "" {
		cfg.Method = DefaultMethod
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	cfg.ProxyBaseURL = strings.TrimRight(cfg.ProxyBaseURL, "/")
	return &HTTPProber{client: client, cfg: cfg}
}

// Target returns the URL actually requested for a stream.
func (p *HTTPProber) Target(streamURL string) string {
	if p.cfg.ProxyBaseURL == "" {
		return streamURL
	}
	return p.cfg.ProxyBaseURL + "/proxy?url=" + url.QueryEscape(streamURL)
}

func (p *HTTPProber) Probe(ctx context.Context, station domain.Station) (domain.ProbeOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, p.cfg.Method, p.Target(station.StreamURL), nil)
	if err != nil {
		return domain.ProbeOutcome{}, domain.NewNetworkError(err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.ProbeOutcome{}, classifyTransportError(ctx, err)
	}
	// live streams never end, so the body is closed unread
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ProbeOutcome{}, domain.NewHTTPError(resp.StatusCode, statusText(resp))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = unknownContentType
	}
	return domain.ProbeOutcome{StatusCode: resp.StatusCode, ContentType: contentType}, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &domain.ProbeError{Kind: domain.ErrorKindTimeout, Message: "request timed out"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.ProbeError{Kind: domain.ErrorKindTimeout, Message: netErr.Error()}
	}
	return domain.NewNetworkError(err)
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
