package identity

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/syphon/config"
)

// startControlServer runs a one-shot scripted control endpoint: it reads
// one command per scripted reply and answers with that reply. Received
// commands are delivered on the returned channel.
func startControlServer(t *testing.T, replies []string) (string, chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	cmds := make(chan string, len(replies))
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		br := bufio.NewReader(conn)
		for _, reply := range replies {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			cmds <- strings.TrimSpace(line)
			fmt.Fprintf(conn, "%s\r\n", reply)
		}
	}()

	return ln.Addr().String(), cmds
}

func testTorConfig(controlAddr string) config.TorConfig {
	return config.TorConfig{
		ControlAddr: controlAddr,
		DialTimeout: 2 * time.Second,
		Cooldown:    time.Millisecond,
	}
}

func receivedCommands(cmds chan string) []string {
	var got []string
	for {
		select {
		case c := <-cmds:
			got = append(got, c)
		default:
			return got
		}
	}
}

func TestRotate_NullAuth(t *testing.T) {
	addr, cmds := startControlServer(t, []string{"250 OK", "250 OK"})

	r := NewRotator(testTorConfig(addr))
	if !r.Rotate(context.Background()) {
		t.Fatal("Rotate = false, want true")
	}

	got := receivedCommands(cmds)
	want := []string{`AUTHENTICATE ""`, "SIGNAL NEWNYM"}
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRotate_PasswordAuth(t *testing.T) {
	addr, cmds := startControlServer(t, []string{"250 OK", "250 OK"})

	cfg := testTorConfig(addr)
	cfg.ControlPassword = "hunter2"
	r := NewRotator(cfg)
	if !r.Rotate(context.Background()) {
		t.Fatal("Rotate = false, want true")
	}

	got := receivedCommands(cmds)
	if len(got) == 0 || got[0] != `AUTHENTICATE "hunter2"` {
		t.Errorf("first command = %v, want quoted password auth", got)
	}
}

func TestRotate_CookieAuth(t *testing.T) {
	addr, cmds := startControlServer(t, []string{"250 OK", "250 OK"})

	cookiePath := filepath.Join(t.TempDir(), "control.authcookie")
	if err := os.WriteFile(cookiePath, []byte{0xde, 0xad, 0xbe, 0xef}, 0o600); err != nil {
		t.Fatalf("write cookie: %v", err)
	}

	cfg := testTorConfig(addr)
	cfg.CookiePath = cookiePath
	r := NewRotator(cfg)
	if !r.Rotate(context.Background()) {
		t.Fatal("Rotate = false, want true")
	}

	got := receivedCommands(cmds)
	if len(got) == 0 || got[0] != "AUTHENTICATE deadbeef" {
		t.Errorf("first command = %v, want hex cookie auth", got)
	}
}

func TestRotate_PasswordTakesPrecedenceOverCookie(t *testing.T) {
	addr, cmds := startControlServer(t, []string{"250 OK", "250 OK"})

	cfg := testTorConfig(addr)
	cfg.ControlPassword = "pw"
	cfg.CookiePath = filepath.Join(t.TempDir(), "ignored")
	r := NewRotator(cfg)
	if !r.Rotate(context.Background()) {
		t.Fatal("Rotate = false, want true")
	}

	got := receivedCommands(cmds)
	if len(got) == 0 || got[0] != `AUTHENTICATE "pw"` {
		t.Errorf("first command = %v, want password auth", got)
	}
}

func TestRotate_AuthRejected(t *testing.T) {
	addr, _ := startControlServer(t, []string{"515 Authentication failed"})

	r := NewRotator(testTorConfig(addr))
	if r.Rotate(context.Background()) {
		t.Error("Rotate = true, want false on auth rejection")
	}
}

func TestRotate_SignalRejected(t *testing.T) {
	addr, _ := startControlServer(t, []string{"250 OK", "552 Unrecognized signal"})

	r := NewRotator(testTorConfig(addr))
	if r.Rotate(context.Background()) {
		t.Error("Rotate = true, want false on signal rejection")
	}
}

func TestRotate_ControlPortUnreachable(t *testing.T) {
	// Grab a free port and close it again so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := testTorConfig(addr)
	cfg.DialTimeout = 500 * time.Millisecond
	r := NewRotator(cfg)
	if r.Rotate(context.Background()) {
		t.Error("Rotate = true, want false when the control port is down")
	}
}

func TestRotate_MissingCookieFile(t *testing.T) {
	addr, _ := startControlServer(t, []string{"250 OK"})

	cfg := testTorConfig(addr)
	cfg.CookiePath = filepath.Join(t.TempDir(), "does-not-exist")
	r := NewRotator(cfg)
	if r.Rotate(context.Background()) {
		t.Error("Rotate = true, want false when the cookie file is unreadable")
	}
}

func TestCurrent_ReturnsProbedAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "203.0.113.7")
	}))
	defer srv.Close()

	cfg := config.TorConfig{ProbeURL: srv.URL, ProbeTimeout: 2 * time.Second}
	r := NewRotator(cfg)
	if got := r.Current(context.Background()); got != "203.0.113.7" {
		t.Errorf("Current = %q, want %q", got, "203.0.113.7")
	}
}

func TestCurrent_SentinelOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cases := []struct {
		name string
		cfg  config.TorConfig
	}{
		{"http error", config.TorConfig{ProbeURL: srv.URL, ProbeTimeout: 2 * time.Second}},
		{"unreachable", config.TorConfig{ProbeURL: "http://127.0.0.1:1", ProbeTimeout: 500 * time.Millisecond}},
		{"bad url", config.TorConfig{ProbeURL: "://broken", ProbeTimeout: time.Second}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRotator(tt.cfg)
			if got := r.Current(context.Background()); got != Unknown {
				t.Errorf("Current = %q, want the sentinel", got)
			}
		})
	}
}
