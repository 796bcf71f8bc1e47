// Package identity rotates the Tor circuit over the control port and
// observes the externally visible address through the SOCKS proxy.
//
// Rotation is advisory: the circuit swap is asynchronous relative to the
// control-port acknowledgment, so callers treat a failed rotation as a
// warning and keep working with the current identity.
package identity

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/use-agent/syphon/config"
)

// Rotator drives the control-port conversation that requests a fresh
// circuit, and probes the exit address on demand. One instance serves a
// whole run; each Rotate opens its own short-lived control connection.
type Rotator struct {
	controlAddr string
	password    string
	cookiePath  string
	dialTimeout time.Duration
	cooldown    time.Duration

	socksAddr    string
	probeURL     string
	probeTimeout time.Duration
}

// NewRotator builds a Rotator from the Tor configuration.
func NewRotator(cfg config.TorConfig) *Rotator {
	return &Rotator{
		controlAddr:  cfg.ControlAddr,
		password:     cfg.ControlPassword,
		cookiePath:   cfg.CookiePath,
		dialTimeout:  cfg.DialTimeout,
		cooldown:     cfg.Cooldown,
		socksAddr:    cfg.SocksAddr,
		probeURL:     cfg.ProbeURL,
		probeTimeout: cfg.ProbeTimeout,
	}
}

// Rotate asks the control port for a new circuit and reports whether the
// signal was acknowledged. On success it sleeps the configured cooldown so
// the new circuit has time to establish. Failures are logged and reported
// as false, never as an error: rotation is best-effort.
func (r *Rotator) Rotate(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: r.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.controlAddr)
	if err != nil {
		slog.Warn("identity rotation failed: control port unreachable",
			"addr", r.controlAddr, "error", err)
		return false
	}
	defer conn.Close()

	// One deadline covers the whole authenticate/signal exchange.
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(r.dialTimeout))
	}

	br := bufio.NewReader(conn)

	cred, err := r.credential()
	if err != nil {
		slog.Warn("identity rotation failed: cannot read auth cookie",
			"path", r.cookiePath, "error", err)
		return false
	}
	if err := roundTrip(conn, br, "AUTHENTICATE "+cred, "authenticate"); err != nil {
		slog.Warn("identity rotation failed", "error", err)
		return false
	}

	if err := roundTrip(conn, br, "SIGNAL NEWNYM", "signal newnym"); err != nil {
		slog.Warn("identity rotation failed", "error", err)
		return false
	}

	slog.Debug("new identity signaled, cooling down", "cooldown", r.cooldown)
	select {
	case <-time.After(r.cooldown):
	case <-ctx.Done():
	}
	return true
}

// credential picks the AUTHENTICATE argument: a quoted password when
// configured, else the hex-encoded cookie-file contents, else the empty
// quoted string for controllers with open auth.
func (r *Rotator) credential() (string, error) {
	if r.password != "" {
		return `"` + r.password + `"`, nil
	}
	if r.cookiePath != "" {
		data, err := os.ReadFile(r.cookiePath)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(data), nil
	}
	return `""`, nil
}

// roundTrip sends one control command and checks for the 250 success
// reply. The label keeps credentials out of error text.
func roundTrip(conn net.Conn, br *bufio.Reader, cmd, label string) error {
	if _, err := fmt.Fprintf(conn, "%s\r\n", cmd); err != nil {
		return fmt.Errorf("identity: %s: send: %w", label, err)
	}
	reply, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("identity: %s: read reply: %w", label, err)
	}
	reply = strings.TrimSpace(reply)
	if !strings.HasPrefix(reply, "250") {
		return fmt.Errorf("identity: %s: control replied %q", label, reply)
	}
	return nil
}
