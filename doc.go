// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

/*
Package session implements the wire-level cryptographic session protocol
used by Uniqush push-notification clients.

The protocol is a Diffie-Hellman + RSA-PSS authenticated handshake
followed by a duplex stream of encrypted, authenticated, framed
commands. A client starts a session with New, reads a Server Hello off
the transport (sized by BytesToReadForServerHello), and calls
ReplyToServerHello to derive the four directional session keys and
produce the Client Hello to send back. Once established, WriteCommand
and ReadRecord encrypt/decrypt framed Command values using AES-128-CTR
with a little-endian counter and authenticate them with HMAC-SHA256 in
encrypt-then-MAC order.

Package session performs no I/O. The caller (a transport collaborator)
is responsible for reading and writing exact byte counts given by the
BytesToReadFor* hints and for any blocking or cancellation semantics.
See internal/pkg/transport for a minimal helper built on that contract.

A Session is not safe for concurrent use: all operations on one Session
must be serialized by the caller. Any error transitions the session to
a terminal Failed state; it must not be reused afterwards.
*/
package session
