// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Default client configuration values
const (
	DefaultPort              = 8728
	DefaultTLSPort           = 8729
	DefaultAttempts          = 3
	DefaultDelay             = 1 * time.Second
	DefaultConnectTimeout    = 10 * time.Second
	DefaultOperationTimeout  = 15 * time.Second
	DefaultUseTLS            = false
	DefaultVerifyCertificate = true
)

// redactedWord replaces credential-bearing words in debug logs.
const redactedWord = "[REDACTED]"

// Client represents a RouterOS API connection to a network device.
//
// A client owns exactly one transport and speaks the protocol strictly
// request/reply: one sentence out, one reply in. Callers wanting
// parallelism own multiple clients; sharing one client across
// goroutines without external serialization fails fast with a misuse
// error rather than interleaving frames.
type Client struct {
	// conn is the transport handle, owned exclusively by this client
	conn net.Conn

	// state tracks the connection lifecycle
	state State

	// inFlight guards the strict request/reply discipline
	inFlight bool

	// closed marks a terminal Close
	closed bool

	// mu synchronizes access to mutable state
	mu sync.Mutex

	// Connection parameters
	Target   string
	Port     int
	username string // unexported for security
	password string // unexported for security

	// TLS options
	UseTLS             bool
	VerifyCertificate  bool
	InsecureSkipVerify bool // Alias for !VerifyCertificate
	tlsConfig          *tls.Config

	// LegacyLogin selects the pre-6.43 MD5 challenge handshake
	LegacyLogin bool

	// Timeout configuration
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration

	// Retry configuration
	Attempts int
	Delay    time.Duration

	// Logging configuration
	logger Logger
}

// NewClient creates a new RouterOS API client with the specified
// target and options.
//
// The client does NOT open a connection immediately. The connection is
// established by Connect, or automatically on the first Run call.
//
// Example:
//
//	client, err := routeros.NewClient(
//	    "192.168.88.1",
//	    routeros.Username("admin"),
//	    routeros.Password("secret"),
//	    routeros.Attempts(5),
//	)
//	if err != nil {
//	    log.Fatal(err)  // Configuration error
//	}
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)  // Connection or login error
//	}
//
//	res, err := client.Run(ctx, routeros.Body{}.Command("/interface/print"))
//
// Returns a configured Client or an error if configuration validation
// fails.
func NewClient(target string, opts ...func(*Client)) (*Client, error) {
	client := &Client{
		Target:            target,
		UseTLS:            DefaultUseTLS,
		VerifyCertificate: DefaultVerifyCertificate,
		ConnectTimeout:    DefaultConnectTimeout,
		OperationTimeout:  DefaultOperationTimeout,
		Attempts:          DefaultAttempts,
		Delay:             DefaultDelay,
		logger:            &NoOpLogger{},
	}

	for _, opt := range opts {
		opt(client)
	}

	// Set InsecureSkipVerify alias
	client.InsecureSkipVerify = !client.VerifyCertificate

	if err := client.validateConfig(); err != nil {
		return nil, err
	}

	client.logger.Info(context.Background(), "RouterOS client created",
		"target", client.Target,
		"tls", client.UseTLS,
		"legacy_login", client.LegacyLogin)

	return client, nil
}

// validateConfig validates client configuration before connection.
//
// Validates:
//   - Target is not empty
//   - Username is present
//   - Port range (1-65535, or 0 meaning the protocol default)
//   - Positive timeouts
//   - Attempts >= 1, Delay >= 0
//
// Returns a config-kind error if validation fails.
func (c *Client) validateConfig() error {
	if strings.TrimSpace(c.Target) == "" {
		return errConfig("target address cannot be empty")
	}
	if c.username == "" {
		return errConfig("username cannot be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errConfig("invalid port: %d (must be 1-65535)", c.Port)
	}
	if c.ConnectTimeout <= 0 {
		return errConfig("connect timeout must be positive, got: %v", c.ConnectTimeout)
	}
	if c.OperationTimeout <= 0 {
		return errConfig("operation timeout must be positive, got: %v", c.OperationTimeout)
	}
	if c.Attempts < 1 {
		return errConfig("attempts must be at least 1, got: %d", c.Attempts)
	}
	if c.Delay < 0 {
		return errConfig("delay must be non-negative, got: %v", c.Delay)
	}

	if c.UseTLS && c.InsecureSkipVerify {
		c.logger.Warn(context.Background(), "TLS certificate verification disabled",
			"target", c.Target,
			"risk", "Man-in-the-Middle attacks possible")
	}
	if !c.UseTLS {
		c.logger.Warn(context.Background(), "plaintext transport, credentials travel unencrypted",
			"target", c.Target,
			"recommendation", "enable TLS for production use")
	}
	if c.password == "" {
		c.logger.Warn(context.Background(), "empty password configured",
			"target", c.Target,
			"message", "device may reject login")
	}

	return nil
}

// Connect opens the transport and drives the login handshake,
// retrying up to Attempts times with Delay between cycles. The
// transport is closed on every failure path; on success the client is
// Ready.
//
// Connect is idempotent while Ready.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

// connectLocked runs the retry loop. Caller must hold c.mu.
func (c *Client) connectLocked(ctx context.Context) error {
	if c.closed {
		return errNotConnected("connect")
	}
	if c.state == StateReady {
		return nil
	}

	var last error
	for attempt := 1; attempt <= c.Attempts; attempt++ {
		if attempt > 1 {
			c.logger.Info(ctx, "retrying RouterOS connection",
				"attempt", attempt,
				"delay", c.Delay)
			if err := sleepContext(ctx, c.Delay); err != nil {
				c.state = StateDisconnected
				return errTransport("connect", err)
			}
		}
		err := c.connectOnce(ctx)
		if err == nil {
			return nil
		}
		last = err
		c.logger.Warn(ctx, "RouterOS connection attempt failed",
			"attempt", attempt,
			"error", err.Error())
	}

	c.state = StateDisconnected
	return &ClientError{
		Kind:     KindConnectionFailed,
		Op:       "connect",
		Message:  "all connection attempts exhausted",
		Attempts: c.Attempts,
		Err:      last,
	}
}

// connectOnce performs one open-transport-then-login cycle. The dial,
// the TLS handshake and the login exchange are each bounded by
// ConnectTimeout.
func (c *Client) connectOnce(ctx context.Context) error {
	c.state = StateOpening
	conn, err := c.dial(ctx)
	if err != nil {
		c.state = StateDisconnected
		return err
	}

	c.state = StateLoggingIn
	_ = conn.SetDeadline(time.Now().Add(c.ConnectTimeout))
	if err := c.login(ctx, conn); err != nil {
		_ = conn.Close()
		c.state = StateDisconnected
		return err
	}
	_ = conn.SetDeadline(time.Time{})

	c.conn = conn
	c.state = StateReady
	c.logger.Info(ctx, "RouterOS connection established",
		"target", c.Target,
		"address", c.address())
	return nil
}

// Run builds the request words from q and exchanges one sentence for
// one reply.
//
// A reply terminating in !trap is returned as a typed Reply with a nil
// error so the caller can inspect Trailer["message"]; the connection
// stays usable. A reply terminating in !fatal surfaces its reason and
// tears the connection down.
//
// Example:
//
//	res, err := client.Run(ctx, routeros.Body{}.
//	    Command("/interface/print").
//	    Where("type", "ether"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if res.Kind == routeros.ReplyTrap {
//	    log.Printf("device error: %s", res.Trailer["message"])
//	}
//	for _, row := range res.Rows {
//	    fmt.Println(row["name"])
//	}
func (c *Client) Run(ctx context.Context, q Body, mods ...func(*Req)) (Reply, error) {
	words, err := q.Words()
	if err != nil {
		return Reply{}, err
	}
	return c.RunWords(ctx, words, mods...)
}

// RunWords exchanges a pre-built word sequence for one reply. The
// first word must be a command word beginning with '/'; words must be
// non-empty since an empty word would terminate the sentence early.
func (c *Client) RunWords(ctx context.Context, words []string, mods ...func(*Req)) (Reply, error) {
	if err := checkContextCancellation(ctx); err != nil {
		return Reply{}, errTransport("run", err)
	}
	if err := validateWords(words); err != nil {
		return Reply{}, err
	}

	req := Req{Timeout: c.OperationTimeout}
	for _, mod := range mods {
		mod(&req)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Reply{}, errNotConnected("run")
	}
	if c.inFlight {
		c.mu.Unlock()
		return Reply{}, errMisuse("run", "request issued while a prior reply is outstanding")
	}
	if c.state != StateReady {
		if err := c.connectLocked(ctx); err != nil {
			c.mu.Unlock()
			return Reply{}, err
		}
	}
	conn := c.conn
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	_ = conn.SetDeadline(time.Now().Add(req.Timeout))
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	c.logger.Debug(ctx, "RouterOS request",
		"command", words[0],
		"sentence", strings.Join(redactWords(words), " "))

	if err := writeSentence(conn, words); err != nil {
		c.teardown(ctx)
		return Reply{}, err
	}
	reply, err := readReply(ctx, conn, c.logger)
	if err != nil {
		c.teardown(ctx)
		return Reply{}, err
	}

	c.logger.Debug(ctx, "RouterOS reply",
		"kind", string(reply.Kind),
		"rows", len(reply.Rows))

	if reply.Kind == ReplyFatal {
		reason := reply.Trailer["message"]
		c.teardown(ctx)
		return reply, &ClientError{
			Kind:    KindTransport,
			Op:      "run",
			Message: fmt.Sprintf("connection terminated by device: %s", reason),
		}
	}
	return reply, nil
}

// Disconnect closes the transport but preserves the client
// configuration. Unlike Close, the client remains usable: the next
// Connect or Run reconnects.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn(context.Background(), "RouterOS transport close returned error during disconnect",
			"target", c.Target,
			"error", err.Error())
	}
	c.conn = nil
	c.state = StateDisconnected

	c.logger.Info(context.Background(), "RouterOS connection disconnected",
		"target", c.Target,
		"reusable", true)
	return nil
}

// Close closes the connection and retires the client (terminal
// operation). Subsequent operations fail with a not-connected error.
//
// Thread-safe: safe to call multiple times (subsequent calls are
// no-ops).
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.state = StateClosing

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected

	c.logger.Info(context.Background(), "RouterOS connection closed",
		"target", c.Target,
		"reusable", false)
	return err
}

// State returns the current connection lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// HasCredentials returns true if login credentials are configured,
// without exposing the values.
func (c *Client) HasCredentials() bool {
	return c.username != "" || c.password != ""
}

// teardown closes the transport after a failure. Every transport or
// protocol error retires the connection; the next Run reconnects.
func (c *Client) teardown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	c.logger.Warn(ctx, "RouterOS connection retired after failure",
		"target", c.Target)
}

// validateWords enforces the query contract: a non-empty sequence of
// non-empty words, the first being a command word.
func validateWords(words []string) error {
	if len(words) == 0 {
		return errMisuse("run", "request has no words")
	}
	if !strings.HasPrefix(words[0], "/") {
		return errMisuse("run", fmt.Sprintf("first word %q is not a command word", words[0]))
	}
	for i, word := range words {
		if word == "" {
			return errMisuse("run", fmt.Sprintf("word at index %d is empty", i))
		}
	}
	return nil
}

// redactWords masks credential-bearing words for debug logging.
func redactWords(words []string) []string {
	out := make([]string, len(words))
	for i, word := range words {
		switch {
		case strings.HasPrefix(word, "=password="):
			out[i] = "=password=" + redactedWord
		case strings.HasPrefix(word, "=response="):
			out[i] = "=response=" + redactedWord
		default:
			out[i] = word
		}
	}
	return out
}

// checkContextCancellation reports a context that is already done.
func checkContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// sleepContext sleeps for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
