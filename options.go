// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"crypto/tls"
	"time"
)

// Client configuration options using the functional options pattern

// Username sets the login name for authentication
func Username(username string) func(*Client) {
	return func(c *Client) {
		c.username = username
	}
}

// Password sets the login password for authentication
func Password(password string) func(*Client) {
	return func(c *Client) {
		c.password = password
	}
}

// Port sets the API port. When unset the port follows the transport:
// 8728 for plaintext, 8729 for TLS.
func Port(port int) func(*Client) {
	return func(c *Client) {
		c.Port = port
	}
}

// TLS enables or disables TLS transport (default: false, matching the
// plaintext API service on port 8728).
func TLS(enabled bool) func(*Client) {
	return func(c *Client) {
		c.UseTLS = enabled
	}
}

// VerifyCertificate enables or disables TLS certificate verification
// (default: true).
//
// WARNING: Disabling certificate verification makes the connection
// vulnerable to Man-in-the-Middle attacks. RouterOS devices commonly
// ship self-signed certificates, so interoperating with an unmanaged
// fleet may require turning verification off; prefer installing a CA
// and keeping it on.
//
// Example:
//
//	client, _ := routeros.NewClient("192.168.88.1",
//	    routeros.Username("admin"),
//	    routeros.Password("secret"),
//	    routeros.TLS(true),
//	    routeros.VerifyCertificate(false))  // Self-signed device cert
func VerifyCertificate(verify bool) func(*Client) {
	return func(c *Client) {
		c.VerifyCertificate = verify
	}
}

// WithTLSConfig supplies a complete TLS configuration, overriding the
// TLS posture options. The config is cloned per connection attempt.
// Use this for client certificates, pinned roots, or custom cipher
// policies.
func WithTLSConfig(config *tls.Config) func(*Client) {
	return func(c *Client) {
		c.tlsConfig = config
	}
}

// Legacy selects the pre-6.43 MD5 challenge/response login handshake
// (default: false, plain credentials in one round trip).
func Legacy(enabled bool) func(*Client) {
	return func(c *Client) {
		c.LegacyLogin = enabled
	}
}

// ConnectTimeout sets the deadline applied to each phase of a
// connection attempt: the dial, the TLS handshake and the login
// handshake are bounded separately (default: 10s).
func ConnectTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.ConnectTimeout = duration
	}
}

// OperationTimeout sets the default deadline applied to each
// request/reply exchange (default: 15s).
func OperationTimeout(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.OperationTimeout = duration
	}
}

// Attempts sets the total number of connect-and-login cycles before
// Connect gives up (default: 3, minimum 1).
func Attempts(attempts int) func(*Client) {
	return func(c *Client) {
		c.Attempts = attempts
	}
}

// Delay sets the sleep between failed connection attempts (default: 1s).
func Delay(duration time.Duration) func(*Client) {
	return func(c *Client) {
		c.Delay = duration
	}
}

// WithLogger configures a custom logger for the client.
//
// By default, the client uses NoOpLogger which discards all log
// messages. Use this option to enable logging with DefaultLogger,
// ZerologLogger, or a custom Logger implementation.
//
// Sentences logged at Debug level have their =password= and =response=
// words redacted.
//
// Example:
//
//	logger := routeros.NewDefaultLogger(routeros.LogLevelInfo)
//	client, _ := routeros.NewClient("192.168.88.1",
//	    routeros.Username("admin"),
//	    routeros.Password("secret"),
//	    routeros.WithLogger(logger))
func WithLogger(logger Logger) func(*Client) {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Request modifiers for individual operations

// Timeout returns a request modifier that sets a custom timeout for
// the operation, taking precedence over the client's OperationTimeout.
//
// Example:
//
//	res, err := client.Run(ctx, q,
//	    routeros.Timeout(2*time.Minute))
func Timeout(duration time.Duration) func(*Req) {
	return func(req *Req) {
		req.Timeout = duration
	}
}
