// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file derives the four directional session keys from a Diffie-Hellman
// shared secret and a server-provided nonce.
//
// A widely seen reference implementation of this protocol computes its
// MGF1-SHA256 step by feeding the evolving output buffer back into SHA256
// rather than keeping the seed fixed. That behavior was rejected here in
// favor of the standard MGF1 definition (seed fixed, only the counter
// varies); a reference peer is required to confirm this before shipping
// against a real Uniqush server.

package kdf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
)

// MasterKeyLen is the length in bytes of the intermediate master key mkey.
const MasterKeyLen = 48

// authKeyLen and encKeyLen mirror the session package's AuthKeyLen and
// EncKeyLen; duplicated here to keep this package dependency-free of the
// parent package.
const (
	authKeyLen = 32
	encKeyLen  = 16
)

// MGF1SHA256 implements the standard MGF1 mask generation function with
// SHA-256: for counter = 0, 1, ..., append SHA256(seed || BE32(counter))
// until the output reaches length bytes, then truncate.
func MGF1SHA256(seed []byte, length int) []byte {
	out := make([]byte, 0, length+sha256.Size)
	var counterBytes [4]byte
	for counter := uint32(0); len(out) < length; counter++ {
		binary.BigEndian.PutUint32(counterBytes[:], counter)
		h := sha256.New()
		h.Write(seed)
		h.Write(counterBytes[:])
		out = h.Sum(out)
	}
	return out[:length]
}

// labelKey derives a directional key as HMAC-SHA256(mkey, label).
func labelKey(mkey []byte, label string) []byte {
	mac := hmac.New(sha256.New, mkey)
	mac.Write([]byte(label))
	return mac.Sum(nil)
}

// Derive computes the four directional session keys from a DH shared
// secret and the server's handshake nonce: form seed = secret || nonce,
// expand it to a 48-byte master key with MGF1-SHA256, then derive each
// directional key as HMAC-SHA256(mkey, label) for the ASCII labels
// "ClientAuth", "ClientEncr", "ServerAuth", "ServerEncr". The *Auth keys
// are the full 32-byte outputs; the *Enc keys are the first 16 bytes.
func Derive(secret, nonce []byte) (clientAuthKey, clientEncKey, serverAuthKey, serverEncKey []byte) {
	seed := make([]byte, 0, len(secret)+len(nonce))
	seed = append(seed, secret...)
	seed = append(seed, nonce...)
	mkey := MGF1SHA256(seed, MasterKeyLen)

	clientAuthKey = labelKey(mkey, "ClientAuth")
	clientEncKey = labelKey(mkey, "ClientEncr")[:encKeyLen]
	serverAuthKey = labelKey(mkey, "ServerAuth")
	serverEncKey = labelKey(mkey, "ServerEncr")[:encKeyLen]
	return
}
