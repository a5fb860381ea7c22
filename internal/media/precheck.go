package media

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

var defaultPorts = map[string]string{
	"rtmp":  "1935",
	"rtmps": "443",
	"srt":   "9000",
}

// DialAddress returns the host:port to dial for an ingest URL.
func DialAddress(destination string) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("parse destination: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("destination %q has no host", destination)
	}
	port := u.Port()
	if port == "" {
		p, ok := defaultPorts[strings.ToLower(u.Scheme)]
		if !ok {
			return "", fmt.Errorf("destination %q has no port and scheme %q has no default", destination, u.Scheme)
		}
		port = p
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// Reachable opens and closes a TCP connection to the destination. It is an
// advisory check: the relay keeps running when it fails.
func Reachable(ctx context.Context, destination string, timeout time.Duration) error {
	addr, err := DialAddress(destination)
	if err != nil {
		return err
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn.Close()
}
