// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package session

import "errors"

// Errors returned by this package. All of them are fatal to the session: on
// any of these, the session moves to Failed and every later call returns
// ErrSessionFailed.
var (
	// ErrBadKey is returned when a caller-supplied RSA public key could not
	// be parsed.
	ErrBadKey = errors.New("session: bad rsa public key")

	// ErrProtocolVersion is returned when a Server Hello's version byte
	// doesn't match CurrentProtocolVersion.
	ErrProtocolVersion = errors.New("session: protocol version mismatch")

	// ErrBadSignature is returned when the Server Hello's RSA-PSS signature
	// doesn't verify.
	ErrBadSignature = errors.New("session: bad signature")

	// ErrBadMAC is returned when an inbound record's HMAC tag doesn't match.
	ErrBadMAC = errors.New("session: mac mismatch")

	// ErrMalformedFrame is returned when the codec or handshake parser can't
	// make sense of a buffer.
	ErrMalformedFrame = errors.New("session: malformed frame")

	// ErrDecompress is returned when Snappy decompression of a command
	// payload fails.
	ErrDecompress = errors.New("session: snappy decompress failed")

	// ErrCryptoBackend is returned when a cryptographic primitive fails
	// unexpectedly.
	ErrCryptoBackend = errors.New("session: crypto backend failure")

	// ErrSessionFailed is returned by any operation on a session that is not
	// in the state it requires.
	ErrSessionFailed = errors.New("session: session failed")

	// ErrEmptyFrame is returned when encoding a command produced zero bytes.
	ErrEmptyFrame = errors.New("session: empty frame")

	// ErrTooManyParams is returned when a Command has more than MaxParams
	// params.
	ErrTooManyParams = errors.New("session: too many params")

	// ErrTooManyHeaders is returned when a Command's Message has more than
	// MaxHeaders headers.
	ErrTooManyHeaders = errors.New("session: too many headers")
)
