// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package session

// Protocol constants. These are fixed by the wire protocol and must match
// the peer; they are not negotiated.
const (
	// DHGroupID identifies the Diffie-Hellman group used for the handshake.
	// 14 is the IANA group number for the RFC 3526 2048-bit MODP group.
	DHGroupID = 14

	// DHPubKeyLen is the fixed wire length, in bytes, of a DH public key for
	// DHGroupID (2048 bits).
	DHPubKeyLen = 256

	// NonceLen is the length in bytes of the server-provided nonce.
	NonceLen = 32

	// AuthKeyLen is the length in bytes of an HMAC-SHA256 auth key and tag.
	AuthKeyLen = 32

	// EncKeyLen is the length in bytes of an AES-128 encryption key.
	EncKeyLen = 16

	// BlkLen is the AES block size in bytes.
	BlkLen = 16

	// CurrentProtocolVersion is the single-byte version sent and expected in
	// the handshake.
	CurrentProtocolVersion = 1

	// cmdFlagCompress is bit 0 of the codec's flag byte.
	cmdFlagCompress = 1 << 0
)
