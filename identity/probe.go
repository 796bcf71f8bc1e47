package identity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/net/proxy"
)

// Unknown is the sentinel returned when the visible address cannot be
// determined. Identity observation decorates logs and outcomes only, so
// the sentinel is always safe to use in place of a real address.
const Unknown = "unknown"

// Current fetches the configured identity endpoint through the SOCKS
// proxy and returns the externally visible address, or Unknown on any
// failure. The endpoint answers with the caller's address as plain text.
func (r *Rotator) Current(ctx context.Context) string {
	client, err := r.probeClient()
	if err != nil {
		slog.Debug("identity probe unavailable", "error", err)
		return Unknown
	}
	defer client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.probeURL, nil)
	if err != nil {
		slog.Debug("identity probe failed", "error", err)
		return Unknown
	}

	resp, err := client.Do(req)
	if err != nil {
		slog.Debug("identity probe failed", "url", r.probeURL, "error", err)
		return Unknown
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Debug("identity probe failed", "url", r.probeURL, "status", resp.StatusCode)
		return Unknown
	}

	// The body is a bare address; a small cap guards against surprises.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		slog.Debug("identity probe failed", "error", err)
		return Unknown
	}

	addr := strings.TrimSpace(string(body))
	if addr == "" {
		return Unknown
	}
	return addr
}

// probeClient builds an HTTP client that dials through the SOCKS proxy
// when one is configured, so the probe observes the exit address rather
// than the local one.
func (r *Rotator) probeClient() (*http.Client, error) {
	transport := &http.Transport{}
	if r.socksAddr != "" {
		socks, err := proxy.SOCKS5("tcp", r.socksAddr, nil, &net.Dialer{Timeout: r.probeTimeout})
		if err != nil {
			return nil, fmt.Errorf("identity: socks5 dialer: %w", err)
		}
		cd, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("identity: socks5 dialer lacks context support")
		}
		transport.DialContext = cd.DialContext
	}
	return &http.Client{Transport: transport, Timeout: r.probeTimeout}, nil
}
