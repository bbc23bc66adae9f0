// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package routeros

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net"
)

// challengeHexLength is the length of the hex-encoded 16-byte
// challenge sent by pre-6.43 devices in the "ret" trailer attribute.
const challengeHexLength = 32

// login drives the authentication handshake on a freshly opened
// transport. Mode selection follows the LegacyLogin option: current
// devices take the credentials in one round trip, pre-6.43 devices use
// an MD5 challenge/response exchange.
func (c *Client) login(ctx context.Context, conn net.Conn) error {
	if c.LegacyLogin {
		return c.loginLegacy(ctx, conn)
	}
	return c.loginPlain(ctx, conn)
}

// loginPlain performs the post-6.43 one round trip login.
func (c *Client) loginPlain(ctx context.Context, conn net.Conn) error {
	words := []string{"/login", "=name=" + c.username, "=password=" + c.password}
	if err := writeSentence(conn, words); err != nil {
		return err
	}
	reply, err := readReply(ctx, conn, c.logger)
	if err != nil {
		return err
	}
	return loginResult(reply)
}

// loginLegacy performs the pre-6.43 two round trip challenge login.
func (c *Client) loginLegacy(ctx context.Context, conn net.Conn) error {
	if err := writeSentence(conn, []string{"/login"}); err != nil {
		return err
	}
	reply, err := readReply(ctx, conn, c.logger)
	if err != nil {
		return err
	}
	if err := loginResult(reply); err != nil {
		return err
	}

	challenge, ok := reply.Trailer["ret"]
	if !ok {
		return errProtocol("login", "challenge reply carries no ret attribute")
	}
	response, err := challengeResponse(c.password, challenge)
	if err != nil {
		return err
	}

	words := []string{"/login", "=name=" + c.username, "=response=" + response}
	if err := writeSentence(conn, words); err != nil {
		return err
	}
	reply, err = readReply(ctx, conn, c.logger)
	if err != nil {
		return err
	}
	return loginResult(reply)
}

// loginResult maps a handshake reply onto the auth failure taxonomy.
// Any trap or fatal during login is a credential rejection.
func loginResult(reply Reply) error {
	if reply.Kind == ReplyDone {
		return nil
	}
	message := reply.Trailer["message"]
	if message == "" {
		message = "login rejected by device"
	}
	return errAuthDenied(message)
}

// challengeResponse computes the legacy login response word value:
// "00" followed by the lowercase hex MD5 of a zero byte, the password
// bytes, and the decoded challenge.
func challengeResponse(password, challengeHex string) (string, error) {
	if len(challengeHex) != challengeHexLength {
		return "", errProtocol("login", "malformed challenge: %d hex characters, want %d",
			len(challengeHex), challengeHexLength)
	}
	challenge, err := hex.DecodeString(challengeHex)
	if err != nil {
		return "", errProtocol("login", "malformed challenge: %v", err)
	}

	h := md5.New()
	h.Write([]byte{0})
	h.Write([]byte(password))
	h.Write(challenge)
	return "00" + hex.EncodeToString(h.Sum(nil)), nil
}
