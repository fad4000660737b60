// Package connectivity decides whether the device currently has a usable
// network path to the backend.
package connectivity

import (
	"net"
	"net/url"
	"time"
)

// Gate reports whether the backend looks reachable right now.
type Gate interface {
	Online() bool
}

// ProbeGate answers by opening a short-lived TCP connection to the backend
// host. A failed dial means offline.
type ProbeGate struct {
	addr    string
	timeout time.Duration
}

// NewProbeGate derives the probe address from the backend base URL.
func NewProbeGate(baseURL string, timeout time.Duration) (*ProbeGate, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ProbeGate{addr: net.JoinHostPort(host, port), timeout: timeout}, nil
}

func (g *ProbeGate) Online() bool {
	conn, err := net.DialTimeout("tcp", g.addr, g.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
