// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// startServer starts a protocol-speaking fake device on a loopback
// listener and returns its address. Each accepted connection is
// handled in its own goroutine.
func startServer(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handler(conn)
		}
	}()
	return ln.Addr().String()
}

// serveSession is a generic device session: accept any login, answer
// /interface/print with two rows, trap everything else.
func serveSession(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	for {
		words, err := readSentence(conn)
		if err != nil {
			return
		}
		if len(words) == 0 {
			continue
		}
		switch words[0] {
		case "/login":
			err = writeSentence(conn, []string{"!done"})
		case "/interface/print":
			if err = writeSentence(conn, []string{"!re", "=.id=*1", "=name=ether1"}); err != nil {
				return
			}
			if err = writeSentence(conn, []string{"!re", "=name=ether2"}); err != nil {
				return
			}
			err = writeSentence(conn, []string{"!done"})
		default:
			if err = writeSentence(conn, []string{"!trap", "=category=0", "=message=no such item"}); err != nil {
				return
			}
			err = writeSentence(conn, []string{"!done"})
		}
		if err != nil {
			return
		}
	}
}

// TestConnectPlainLogin tests the one round trip login against a fake
// device
func TestConnectPlainLogin(t *testing.T) {
	got := make(chan []string, 1)
	addr := startServer(t, func(conn net.Conn) {
		defer func() { _ = conn.Close() }()
		words, err := readSentence(conn)
		if err != nil {
			return
		}
		got <- words
		_ = writeSentence(conn, []string{"!done"})
		_, _ = readSentence(conn) // hold the session open
	})

	client, err := NewClient(addr, Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Expected connect to succeed, got: %v", err)
	}
	if client.State() != StateReady {
		t.Errorf("Expected ready state, got %s", client.State())
	}

	select {
	case words := <-got:
		want := []string{"/login", "=name=admin", "=password=secret"}
		if len(words) != len(want) {
			t.Fatalf("Expected %v, got %v", want, words)
		}
		for i := range want {
			if words[i] != want[i] {
				t.Errorf("Word %d: expected %q, got %q", i, want[i], words[i])
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server never received the login sentence")
	}
}

// TestConnectLegacyLogin tests the MD5 challenge handshake end to end
func TestConnectLegacyLogin(t *testing.T) {
	got := make(chan []string, 1)
	addr := startServer(t, func(conn net.Conn) {
		defer func() { _ = conn.Close() }()
		if _, err := readSentence(conn); err != nil {
			return
		}
		if err := writeSentence(conn, []string{"!done", "=ret=ebddf7535953c936c93b75502bfb9982"}); err != nil {
			return
		}
		words, err := readSentence(conn)
		if err != nil {
			return
		}
		got <- words
		_ = writeSentence(conn, []string{"!done"})
		_, _ = readSentence(conn)
	})

	client, err := NewClient(addr,
		Username("admin"),
		Password("abc"),
		Legacy(true))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Expected connect to succeed, got: %v", err)
	}

	select {
	case words := <-got:
		want := []string{"/login", "=name=admin", "=response=00a12b59fef13fcc334c302cd991e0f30c"}
		if len(words) != len(want) {
			t.Fatalf("Expected %v, got %v", want, words)
		}
		for i := range want {
			if words[i] != want[i] {
				t.Errorf("Word %d: expected %q, got %q", i, want[i], words[i])
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server never received the response sentence")
	}
}

// TestConnectAuthDenied tests that a trap during login surfaces as an
// auth failure inside the connection-failed error
func TestConnectAuthDenied(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer func() { _ = conn.Close() }()
		if _, err := readSentence(conn); err != nil {
			return
		}
		if err := writeSentence(conn, []string{"!trap", "=message=invalid user name or password (6)"}); err != nil {
			return
		}
		_ = writeSentence(conn, []string{"!done"})
	})

	client, err := NewClient(addr,
		Username("admin"),
		Password("wrong"),
		Attempts(1))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	err = client.Connect(context.Background())
	if err == nil {
		t.Fatal("Expected connect to fail")
	}
	if !IsKind(err, KindConnectionFailed) {
		t.Errorf("Expected connection-failed kind, got: %v", err)
	}
	if !IsKind(err, KindAuthDenied) {
		t.Errorf("Expected auth-denied in the error chain, got: %v", err)
	}
	if !strings.Contains(err.Error(), "attempts: 1") {
		t.Errorf("Expected attempt count in error, got: %v", err)
	}
	if client.State() != StateDisconnected {
		t.Errorf("Expected disconnected state, got %s", client.State())
	}
}

// TestConnectRetryExhaustion tests that all attempts are spent with
// the configured delay between them
func TestConnectRetryExhaustion(t *testing.T) {
	// Grab an address with no listener behind it.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	delay := 30 * time.Millisecond
	client, err := NewClient(addr,
		Username("admin"),
		Password("secret"),
		Attempts(3),
		Delay(delay),
		ConnectTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	err = client.Connect(context.Background())
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Expected connect to fail")
	}
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindConnectionFailed {
		t.Fatalf("Expected connection-failed error, got: %v", err)
	}
	if ce.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", ce.Attempts)
	}
	if !IsKind(err, KindTransport) {
		t.Errorf("Expected transport cause in chain, got: %v", err)
	}
	// Two sleeps between three attempts.
	if elapsed < 2*delay {
		t.Errorf("Expected at least %v of retry delay, elapsed %v", 2*delay, elapsed)
	}
}

// TestRunListing tests a full request/reply exchange with lazy
// connection
func TestRunListing(t *testing.T) {
	addr := startServer(t, serveSession)

	client, err := NewClient(addr, Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	// No explicit Connect: Run connects lazily.
	res, err := client.Run(context.Background(), Body{}.Command("/interface/print"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !res.OK || res.Kind != ReplyDone {
		t.Errorf("Expected done reply, got kind=%s", res.Kind)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[0][".id"] != "*1" || res.Rows[0]["name"] != "ether1" {
		t.Errorf("Unexpected first row: %v", res.Rows[0])
	}
	if res.Rows[1]["name"] != "ether2" {
		t.Errorf("Unexpected second row: %v", res.Rows[1])
	}
}

// TestRunTrapKeepsConnection tests that a trap reply is surfaced as a
// typed reply and the connection survives
func TestRunTrapKeepsConnection(t *testing.T) {
	addr := startServer(t, serveSession)

	client, err := NewClient(addr, Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	res, err := client.Run(context.Background(), Body{}.Command("/no/such/command"))
	if err != nil {
		t.Fatalf("Expected trap as typed reply, got error: %v", err)
	}
	if res.Kind != ReplyTrap || res.OK {
		t.Errorf("Expected trap reply, got kind=%s ok=%v", res.Kind, res.OK)
	}
	if res.Trailer["message"] != "no such item" || res.Trailer["category"] != "0" {
		t.Errorf("Unexpected trailer: %v", res.Trailer)
	}
	if client.State() != StateReady {
		t.Errorf("Expected connection to stay ready, got %s", client.State())
	}

	// The connection remains usable.
	res, err = client.Run(context.Background(), Body{}.Command("/interface/print"))
	if err != nil {
		t.Fatalf("Expected follow-up request to succeed, got: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("Expected 2 rows after trap, got %d", len(res.Rows))
	}
}

// TestRunFatalClosesConnection tests that a fatal reply surfaces its
// reason and retires the connection
func TestRunFatalClosesConnection(t *testing.T) {
	addr := startServer(t, func(conn net.Conn) {
		defer func() { _ = conn.Close() }()
		if _, err := readSentence(conn); err != nil {
			return
		}
		if err := writeSentence(conn, []string{"!done"}); err != nil {
			return
		}
		if _, err := readSentence(conn); err != nil {
			return
		}
		_ = writeSentence(conn, []string{"!fatal", "session terminated"})
	})

	client, err := NewClient(addr, Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	res, err := client.Run(context.Background(), Body{}.Command("/system/reboot"))
	if err == nil {
		t.Fatal("Expected error for fatal reply")
	}
	if !IsKind(err, KindTransport) {
		t.Errorf("Expected transport kind, got: %v", err)
	}
	if res.Kind != ReplyFatal {
		t.Errorf("Expected fatal reply surfaced, got kind=%s", res.Kind)
	}
	if res.Trailer["message"] != "session terminated" {
		t.Errorf("Expected reason in trailer, got %v", res.Trailer)
	}
	if client.State() != StateDisconnected {
		t.Errorf("Expected disconnected state, got %s", client.State())
	}
}

// TestRunMisuse tests that a second request issued while a reply is
// outstanding fails fast
func TestRunMisuse(t *testing.T) {
	release := make(chan struct{})
	addr := startServer(t, func(conn net.Conn) {
		defer func() { _ = conn.Close() }()
		if _, err := readSentence(conn); err != nil {
			return
		}
		if err := writeSentence(conn, []string{"!done"}); err != nil {
			return
		}
		if _, err := readSentence(conn); err != nil {
			return
		}
		<-release
		_ = writeSentence(conn, []string{"!done"})
	})

	client, err := NewClient(addr, Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	first := make(chan error, 1)
	go func() {
		_, err := client.Run(context.Background(), Body{}.Command("/slow/print"))
		first <- err
	}()

	// Let the first request reach the wire, then violate the
	// request/reply discipline.
	time.Sleep(100 * time.Millisecond)
	_, err = client.Run(context.Background(), Body{}.Command("/interface/print"))
	if !IsKind(err, KindMisuse) {
		t.Errorf("Expected misuse kind, got: %v", err)
	}

	close(release)
	if err := <-first; err != nil {
		t.Errorf("Expected first request to complete, got: %v", err)
	}
}

// TestRunAfterClose tests terminal close semantics
func TestRunAfterClose(t *testing.T) {
	client, err := NewClient("192.0.2.1", Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Expected repeated close to be a no-op, got: %v", err)
	}

	_, err = client.Run(context.Background(), Body{}.Command("/interface/print"))
	if !IsKind(err, KindNotConnected) {
		t.Errorf("Expected not-connected kind from Run, got: %v", err)
	}
	if err := client.Connect(context.Background()); !IsKind(err, KindNotConnected) {
		t.Errorf("Expected not-connected kind from Connect, got: %v", err)
	}
}

// TestDisconnectReusable tests that Disconnect preserves the client
// for reconnection
func TestDisconnectReusable(t *testing.T) {
	addr := startServer(t, serveSession)

	client, err := NewClient(addr, Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if client.State() != StateDisconnected {
		t.Errorf("Expected disconnected state, got %s", client.State())
	}

	// Next Run reconnects.
	res, err := client.Run(context.Background(), Body{}.Command("/interface/print"))
	if err != nil {
		t.Fatalf("Expected reconnect and run to succeed, got: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("Expected 2 rows after reconnect, got %d", len(res.Rows))
	}
}

// TestRunCancelledContext tests that an already-cancelled context is
// rejected before touching the wire
func TestRunCancelledContext(t *testing.T) {
	client, err := NewClient("192.0.2.1", Username("admin"), Password("secret"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Run(ctx, Body{}.Command("/interface/print"))
	if !IsKind(err, KindTransport) {
		t.Errorf("Expected transport kind for cancelled context, got: %v", err)
	}
}

// TestNewClientValidation tests client configuration validation
func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		opts       []func(*Client)
		wantErrMsg string
	}{
		{
			name:       "empty target",
			target:     "",
			opts:       []func(*Client){Username("admin")},
			wantErrMsg: "target address cannot be empty",
		},
		{
			name:       "whitespace target",
			target:     "   ",
			opts:       []func(*Client){Username("admin")},
			wantErrMsg: "target address cannot be empty",
		},
		{
			name:       "missing username",
			target:     "192.168.88.1",
			opts:       nil,
			wantErrMsg: "username cannot be empty",
		},
		{
			name:       "invalid port high",
			target:     "192.168.88.1",
			opts:       []func(*Client){Username("admin"), Port(65536)},
			wantErrMsg: "invalid port: 65536",
		},
		{
			name:       "invalid port negative",
			target:     "192.168.88.1",
			opts:       []func(*Client){Username("admin"), Port(-1)},
			wantErrMsg: "invalid port: -1",
		},
		{
			name:       "zero connect timeout",
			target:     "192.168.88.1",
			opts:       []func(*Client){Username("admin"), ConnectTimeout(0)},
			wantErrMsg: "connect timeout must be positive",
		},
		{
			name:       "zero operation timeout",
			target:     "192.168.88.1",
			opts:       []func(*Client){Username("admin"), OperationTimeout(0)},
			wantErrMsg: "operation timeout must be positive",
		},
		{
			name:       "zero attempts",
			target:     "192.168.88.1",
			opts:       []func(*Client){Username("admin"), Attempts(0)},
			wantErrMsg: "attempts must be at least 1",
		},
		{
			name:       "negative delay",
			target:     "192.168.88.1",
			opts:       []func(*Client){Username("admin"), Delay(-1 * time.Second)},
			wantErrMsg: "delay must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.target, tt.opts...)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !IsKind(err, KindConfig) {
				t.Errorf("Expected config kind, got: %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErrMsg) {
				t.Errorf("Expected message containing %q, got: %v", tt.wantErrMsg, err)
			}
		})
	}
}

// TestAddressResolution tests port defaulting for both transports
func TestAddressResolution(t *testing.T) {
	tests := []struct {
		name   string
		target string
		opts   []func(*Client)
		want   string
	}{
		{
			name:   "plaintext default port",
			target: "192.168.88.1",
			opts:   []func(*Client){Username("admin")},
			want:   "192.168.88.1:8728",
		},
		{
			name:   "tls default port",
			target: "192.168.88.1",
			opts:   []func(*Client){Username("admin"), TLS(true)},
			want:   "192.168.88.1:8729",
		},
		{
			name:   "explicit port",
			target: "192.168.88.1",
			opts:   []func(*Client){Username("admin"), Port(1234)},
			want:   "192.168.88.1:1234",
		},
		{
			name:   "target already carries port",
			target: "10.0.0.1:9999",
			opts:   []func(*Client){Username("admin"), Port(1234)},
			want:   "10.0.0.1:9999",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.target, tt.opts...)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if got := client.address(); got != tt.want {
				t.Errorf("Expected address %q, got %q", tt.want, got)
			}
		})
	}
}

// TestValidateWords tests the query contract checks
func TestValidateWords(t *testing.T) {
	tests := []struct {
		name  string
		words []string
	}{
		{"no words", nil},
		{"first word not a command", []string{"=name=ether1"}},
		{"empty word mid-sentence", []string{"/interface/print", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWords(tt.words)
			if !IsKind(err, KindMisuse) {
				t.Errorf("Expected misuse kind, got: %v", err)
			}
		})
	}

	if err := validateWords([]string{"/login", "=name=admin"}); err != nil {
		t.Errorf("Expected valid words to pass, got: %v", err)
	}
}

// TestRedactWords tests credential masking for debug logs
func TestRedactWords(t *testing.T) {
	words := []string{"/login", "=name=admin", "=password=secret", "=response=00abcd"}
	got := redactWords(words)

	want := []string{"/login", "=name=admin", "=password=[REDACTED]", "=response=[REDACTED]"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Word %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if words[2] != "=password=secret" {
		t.Error("Input slice must not be mutated")
	}
}

// TestStateString tests the lifecycle state labels
func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateOpening, "opening"},
		{StateLoggingIn, "logging-in"},
		{StateReady, "ready"},
		{StateClosing, "closing"},
		{State(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d): expected %q, got %q", int(tt.state), tt.want, got)
		}
	}
}
