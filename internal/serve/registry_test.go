package serve

import (
	"errors"
	"net"
	"os"
	"strings"
	"testing"

	"github.com/asreview/prior/internal/config"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name string
		addr net.Addr
		want string
	}{
		{"loopback", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080}, "http://127.0.0.1:8080/api"},
		{"wildcard v4", &net.TCPAddr{IP: net.IPv4zero, Port: 9000}, "http://127.0.0.1:9000/api"},
		{"wildcard v6", &net.TCPAddr{IP: net.IPv6unspecified, Port: 9001}, "http://127.0.0.1:9001/api"},
		{"no ip", &net.TCPAddr{Port: 9002}, "http://127.0.0.1:9002/api"},
		{"v6 host", &net.TCPAddr{IP: net.IPv6loopback, Port: 7}, "http://[::1]:7/api"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseURL(tt.addr); got != tt.want {
				t.Errorf("BaseURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisterAndDiscover(t *testing.T) {
	dir := t.TempDir()

	if _, ok := DiscoverAPIBase(dir); ok {
		t.Fatal("discovered a server before one registered")
	}

	release, err := Register(dir, Registration{APIBase: "http://127.0.0.1:4321/api", Auth: true})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	reg, ok := Lookup(dir)
	if !ok {
		t.Fatal("Lookup found nothing while registered")
	}
	if reg.APIBase != "http://127.0.0.1:4321/api" || !reg.Auth {
		t.Errorf("registration = %+v", reg)
	}
	if reg.PID != os.Getpid() || reg.StartedAt.IsZero() {
		t.Errorf("defaults not filled: %+v", reg)
	}

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := DiscoverAPIBase(dir); ok {
		t.Error("discovered a server after release")
	}
	if _, err := os.Stat(config.StatePath(dir, registryFile)); !os.IsNotExist(err) {
		t.Errorf("registration file left behind: %v", err)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	dir := t.TempDir()
	release, err := Register(dir, Registration{APIBase: "http://127.0.0.1:1/api"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer release()

	_, err = Register(dir, Registration{APIBase: "http://127.0.0.1:2/api"})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Register: got %v, want ErrAlreadyRunning", err)
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Errorf("error does not name the running server: %v", err)
	}

	// the first registration is untouched
	if base, _ := DiscoverAPIBase(dir); base != "http://127.0.0.1:1/api" {
		t.Errorf("base = %q", base)
	}
}

func TestStaleRegistrationIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(config.StatePath(dir, ""), 0755); err != nil {
		t.Fatal(err)
	}
	// left behind by a server that crashed: file present, lock free
	stale := `{"api_base":"http://127.0.0.1:5555/api","pid":1}`
	if err := os.WriteFile(config.StatePath(dir, registryFile), []byte(stale), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(config.StatePath(dir, registryLock), nil, 0600); err != nil {
		t.Fatal(err)
	}

	if _, ok := Lookup(dir); ok {
		t.Error("stale registration reported as live")
	}

	release, err := Register(dir, Registration{APIBase: "http://127.0.0.1:6666/api"})
	if err != nil {
		t.Fatalf("Register over stale file: %v", err)
	}
	defer release()
	if base, _ := DiscoverAPIBase(dir); base != "http://127.0.0.1:6666/api" {
		t.Errorf("base = %q, want the new server", base)
	}
}

func TestLookupBadFile(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"no api base", `{"pid":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			os.MkdirAll(config.StatePath(dir, ""), 0755)
			if err := os.WriteFile(config.StatePath(dir, registryFile), []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, ok := Lookup(dir); ok {
				t.Error("Lookup accepted a bad registration")
			}
		})
	}
}
