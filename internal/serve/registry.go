package serve

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/asreview/prior/internal/config"
)

const (
	registryFile = "serve.json"
	registryLock = "serve.lock"
)

// ErrAlreadyRunning is returned by Register when another server holds the lock.
var ErrAlreadyRunning = errors.New("prior serve already running")

// Registration is what a running server advertises in .prior/serve.json.
// The server holds an exclusive lock on .prior/serve.lock while it runs, so a
// registration whose lock is free belongs to a server that has exited.
type Registration struct {
	APIBase   string    `json:"api_base"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Auth      bool      `json:"auth"`
}

// BaseURL returns the API root clients on this machine should use for a
// listener bound to addr. Wildcard binds are reached through loopback.
func BaseURL(addr net.Addr) string {
	host, port := "127.0.0.1", "0"
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = strconv.Itoa(tcp.Port)
		if tcp.IP != nil && !tcp.IP.IsUnspecified() {
			host = tcp.IP.String()
		}
	}
	return "http://" + net.JoinHostPort(host, port) + APIPrefix
}

// Register takes the server lock for baseDir and writes reg. The returned
// release func removes the registration and drops the lock; call it on
// shutdown.
func Register(baseDir string, reg Registration) (release func() error, err error) {
	if err := os.MkdirAll(config.StatePath(baseDir, ""), 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	lock, err := os.OpenFile(config.StatePath(baseDir, registryLock), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}

	ok, err := tryLock(lock)
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("lock %s: %w", lock.Name(), err)
	}
	if !ok {
		lock.Close()
		if other, err := readRegistration(baseDir); err == nil {
			return nil, fmt.Errorf("%w at %s (pid %d)", ErrAlreadyRunning, other.APIBase, other.PID)
		}
		return nil, ErrAlreadyRunning
	}

	if reg.PID == 0 {
		reg.PID = os.Getpid()
	}
	if reg.StartedAt.IsZero() {
		reg.StartedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err == nil {
		err = os.WriteFile(config.StatePath(baseDir, registryFile), data, 0644)
	}
	if err != nil {
		unlock(lock)
		lock.Close()
		return nil, fmt.Errorf("write registration: %w", err)
	}

	return func() error {
		defer lock.Close()
		defer unlock(lock)
		if err := os.Remove(config.StatePath(baseDir, registryFile)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove registration: %w", err)
		}
		return nil
	}, nil
}

// Lookup returns the registration of the server running for baseDir.
func Lookup(baseDir string) (Registration, bool) {
	reg, err := readRegistration(baseDir)
	if err != nil || reg.APIBase == "" {
		return Registration{}, false
	}
	if !locked(baseDir) {
		return Registration{}, false
	}
	return reg, true
}

// DiscoverAPIBase returns the API root of a live `prior serve` started from
// baseDir, if there is one.
func DiscoverAPIBase(baseDir string) (string, bool) {
	reg, ok := Lookup(baseDir)
	return reg.APIBase, ok
}

func readRegistration(baseDir string) (Registration, error) {
	var reg Registration
	data, err := os.ReadFile(config.StatePath(baseDir, registryFile))
	if err != nil {
		return reg, err
	}
	if err := json.Unmarshal(data, &reg); err != nil {
		return reg, fmt.Errorf("parse %s: %w", registryFile, err)
	}
	return reg, nil
}

// locked reports whether some process holds the server lock
func locked(baseDir string) bool {
	f, err := os.OpenFile(config.StatePath(baseDir, registryLock), os.O_RDWR, 0600)
	if err != nil {
		return false
	}
	defer f.Close()
	ok, err := tryLock(f)
	if err != nil {
		return false
	}
	if ok {
		unlock(f)
		return false
	}
	return true
}
