package search

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"
)

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Unknown hello ID only; ApplyPreset rejects the zero spec.
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// fetcher performs HTTP requests with a Chrome TLS fingerprint (utls),
// optionally dialing through a SOCKS5 proxy so the backend sees the
// anonymized exit address.
type fetcher struct {
	socksAddr string // empty = direct connection
	userAgent string
	timeout   time.Duration
}

func newFetcher(socksAddr, userAgent string, timeout time.Duration) *fetcher {
	return &fetcher{socksAddr: socksAddr, userAgent: userAgent, timeout: timeout}
}

// fetch retrieves the URL and returns the response body.
// Transport failures and non-2xx statuses are both reported as errors so
// the caller can distinguish "backend unreachable" from "empty markup".
func (f *fetcher) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	transport := &http.Transport{
		DialContext:       f.dialRaw,
		DialTLSContext:    f.dialTLS,
		ForceAttemptHTTP2: false,
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}

	// Simulate browser-like headers.
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity") // plain body, no decompression step

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	// Read body with a 10 MB limit to prevent unbounded memory use.
	const maxBody = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("search: read body: %w", err)
	}

	return body, nil
}

// dialTLS establishes the TCP connection (through the SOCKS5 proxy when
// configured) and wraps it with the Chrome fingerprint handshake.
func (f *fetcher) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	raw, err := f.dialRaw(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(raw, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		raw.Close()
		return nil, fmt.Errorf("search: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (f *fetcher) dialRaw(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if f.socksAddr == "" {
		return dialer.DialContext(ctx, network, addr)
	}

	socks, err := proxy.SOCKS5("tcp", f.socksAddr, nil, dialer)
	if err != nil {
		return nil, fmt.Errorf("search: socks5 dialer: %w", err)
	}
	// The SOCKS5 dialer from x/net/proxy supports context dialing.
	if cd, ok := socks.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return socks.Dial(network, addr)
}
