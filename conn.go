// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
)

// State represents the connection lifecycle position of a Client.
type State int

const (
	// StateDisconnected means no transport is open.
	StateDisconnected State = iota

	// StateOpening means the transport is being dialed.
	StateOpening

	// StateLoggingIn means the transport is open and the login
	// handshake is in progress.
	StateLoggingIn

	// StateReady means the client is authenticated and can run
	// requests.
	StateReady

	// StateClosing means the client is tearing down terminally.
	StateClosing
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateOpening:
		return "opening"
	case StateLoggingIn:
		return "logging-in"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// address resolves the dial address. A target already carrying a port
// is used as-is; otherwise the configured port applies, or the
// protocol default for the transport (8728 plaintext, 8729 TLS).
func (c *Client) address() string {
	if _, _, err := net.SplitHostPort(c.Target); err == nil {
		return c.Target
	}
	port := c.Port
	if port == 0 {
		if c.UseTLS {
			port = DefaultTLSPort
		} else {
			port = DefaultPort
		}
	}
	return net.JoinHostPort(c.Target, fmt.Sprintf("%d", port))
}

// dial opens the transport, TLS-wrapped when configured. The dial and
// the TLS handshake are both bounded by ConnectTimeout.
func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	addr := c.address()
	dialer := &net.Dialer{Timeout: c.ConnectTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errTransport("open", err)
	}
	if !c.UseTLS {
		return raw, nil
	}

	config := c.tlsClientConfig(addr)
	conn := tls.Client(raw, config)
	hsCtx, cancel := context.WithTimeout(ctx, c.ConnectTimeout)
	defer cancel()
	if err := conn.HandshakeContext(hsCtx); err != nil {
		_ = raw.Close()
		return nil, errTransport("open", err)
	}
	return conn, nil
}

// tlsClientConfig builds the per-connection TLS configuration. A
// config supplied via WithTLSConfig wins; otherwise the posture
// options apply. Go's crypto/tls cannot negotiate the anonymous cipher
// suites some very old devices expect; for those fleets the closest
// interoperable posture is VerifyCertificate(false).
func (c *Client) tlsClientConfig(addr string) *tls.Config {
	var config *tls.Config
	if c.tlsConfig != nil {
		config = c.tlsConfig.Clone()
	} else {
		config = &tls.Config{
			InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec // Explicit operator opt-in for self-signed device certs
		}
	}
	if config.ServerName == "" && !config.InsecureSkipVerify {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			config.ServerName = host
		}
	}
	return config
}
