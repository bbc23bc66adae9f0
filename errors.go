// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"fmt"
)

// ErrorKind classifies client errors into the failure taxonomy of the
// RouterOS API protocol engine.
type ErrorKind string

const (
	// KindConfig indicates a missing or ill-typed configuration value,
	// detected at client construction.
	KindConfig ErrorKind = "config"

	// KindTransport indicates a socket open/read/write or TLS failure.
	// Transport errors are fatal to the connection.
	KindTransport ErrorKind = "transport"

	// KindEncode indicates a word whose length exceeds the protocol
	// maximum of 0xFFFFFFFF bytes.
	KindEncode ErrorKind = "encode"

	// KindProtocol indicates a malformed length prefix, a truncated
	// frame, or an unexpected reply shape.
	KindProtocol ErrorKind = "protocol"

	// KindAuthDenied indicates the device rejected the login
	// credentials with !trap or !fatal during the handshake.
	KindAuthDenied ErrorKind = "auth-denied"

	// KindConnectionFailed indicates all login attempts were exhausted.
	KindConnectionFailed ErrorKind = "connection-failed"

	// KindNotConnected indicates an operation on a closed connection.
	KindNotConnected ErrorKind = "not-connected"

	// KindMisuse indicates a caller-side contract violation, such as
	// issuing a request while a prior reply is still being consumed.
	KindMisuse ErrorKind = "misuse"
)

// ClientError represents a structured RouterOS client error with
// operation context.
//
// Use errors.Is with a *ClientError carrying only a Kind to match by
// taxonomy:
//
//	_, err := client.Run(ctx, q)
//	if errors.Is(err, &routeros.ClientError{Kind: routeros.KindTransport}) {
//	    // reconnect or give up
//	}
//
// or the IsKind helper for the common case.
type ClientError struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Op names the operation that failed ("connect", "login", "run", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Attempts is the number of connection attempts made, for
	// connection-failed errors.
	Attempts int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Attempts > 0 {
		return fmt.Sprintf("routeros: %s failed: %s (attempts: %d)", e.Op, msg, e.Attempts)
	}
	if e.Op == "" {
		return fmt.Sprintf("routeros: %s", msg)
	}
	return fmt.Sprintf("routeros: %s failed: %s", e.Op, msg)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error. A *ClientError target
// matches on Kind alone, so sentinel-style matching works without
// comparing messages.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// IsKind reports whether err is a *ClientError of the given kind,
// anywhere in its wrap chain.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if ce, ok := err.(*ClientError); ok && ce.Kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Error constructors used throughout the engine. Each pins the Kind so
// call sites stay terse.

func errConfig(format string, args ...any) error {
	return &ClientError{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

func errTransport(op string, err error) error {
	return &ClientError{Kind: KindTransport, Op: op, Err: err}
}

func errProtocol(op, format string, args ...any) error {
	return &ClientError{Kind: KindProtocol, Op: op, Message: fmt.Sprintf(format, args...)}
}

func errAuthDenied(message string) error {
	return &ClientError{Kind: KindAuthDenied, Op: "login", Message: message}
}

func errMisuse(op, message string) error {
	return &ClientError{Kind: KindMisuse, Op: op, Message: message}
}

func errNotConnected(op string) error {
	return &ClientError{Kind: KindNotConnected, Op: op, Message: "not connected"}
}
