// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file contains thin bindings to the cryptographic primitives the
// session protocol is built from: SHA-256, HMAC-SHA256, AES-128-CTR with a
// little-endian counter, and RSA-PSS/SHA-256 signature verification.

package primitives

import (
	"crypto"
	"crypto/aes"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"errors"
)

// ErrUnparseableKey is returned when a DER-encoded RSA public key can't be
// parsed in either PKIX or PKCS1 form.
var ErrUnparseableKey = errors.New("primitives: unparseable rsa public key")

// pssSaltLength is fixed by the protocol: SHA-256 digest size.
const pssSaltLength = 32

// Sha256 returns the SHA-256 digest of data.
func Sha256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HMACSHA256 returns the HMAC-SHA256 tag of message under key.
func HMACSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// CTRState is the mutable (counter, carry) pair that advances as an
// AES-CTR stream is consumed. The zero value is a fresh all-zero state.
type CTRState struct {
	counter   [aes.BlockSize]byte
	keystream [aes.BlockSize]byte
	pos       int
}

// NewCTRState returns a fresh CTR state with a zeroed counter block.
func NewCTRState() *CTRState {
	return &CTRState{}
}

// incCounterLE increments a 128-bit little-endian counter block in place.
func incCounterLE(c *[aes.BlockSize]byte) {
	for i := 0; i < len(c); i++ {
		c[i]++
		if c[i] != 0 {
			return
		}
	}
}

// AESCTRXor encrypts or decrypts input (the operation is symmetric) under
// key using AES-128 in CTR mode with a 128-bit little-endian counter, and
// advances state. state must not be shared between encrypt and decrypt
// directions. Counters advance only when this function returns
// successfully.
func AESCTRXor(key []byte, state *CTRState, input []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(input))
	for i := range input {
		if state.pos == 0 {
			block.Encrypt(state.keystream[:], state.counter[:])
		}
		out[i] = input[i] ^ state.keystream[state.pos]
		state.pos++
		if state.pos == aes.BlockSize {
			state.pos = 0
			incCounterLE(&state.counter)
		}
	}
	return out, nil
}

// ParseRSAPublicKey parses a DER-encoded RSA public key in either PKIX
// (SubjectPublicKeyInfo) or PKCS1 form.
func ParseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaPub, ok := pub.(*rsa.PublicKey); ok {
			return rsaPub, nil
		}
		return nil, ErrUnparseableKey
	}
	if pub, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return pub, nil
	}
	return nil, ErrUnparseableKey
}

// RSAVerifyPSSSHA256 verifies an RSASSA-PSS signature over SHA256(message)
// using pubKeyDER (DER-encoded, PKIX or PKCS1), with SHA-256 as both the
// message hash and the MGF1 mask hash and a 32-byte salt.
func RSAVerifyPSSSHA256(pubKeyDER, message, signature []byte) error {
	pub, err := ParseRSAPublicKey(pubKeyDER)
	if err != nil {
		return ErrUnparseableKey
	}
	digest := Sha256(message)
	opts := &rsa.PSSOptions{SaltLength: pssSaltLength, Hash: crypto.SHA256}
	return rsa.VerifyPSS(pub, crypto.SHA256, digest, signature, opts)
}
