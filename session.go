// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file implements the SessionProtocol state machine: the handshake
// reply and the duplex encrypted record stream built on top of it.

package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"

	"github.com/uniqush/uniqush-session/internal/pkg/dh"
	"github.com/uniqush/uniqush-session/internal/pkg/kdf"
	"github.com/uniqush/uniqush-session/internal/pkg/primitives"
)

// Phase is one of the three states a Session can be in.
type Phase int

const (
	// PhaseAwaitingServerHello is the initial state: the client has a DH
	// keypair but no session keys yet.
	PhaseAwaitingServerHello Phase = iota
	// PhaseEstablished is entered once ReplyToServerHello succeeds; all
	// four session keys are fixed for the rest of the session's lifetime.
	PhaseEstablished
	// PhaseFailed is terminal. Every operation on a Failed session returns
	// ErrSessionFailed.
	PhaseFailed
)

// Session is the client side of the protocol: a DH keypair, established on
// construction, plus (once Established) four directional symmetric keys
// and two independent AES-CTR cipher states. A Session is not safe for
// concurrent use.
type Session struct {
	cliPriv *big.Int
	cliPub  *big.Int

	clientAuthKey []byte
	clientEncKey  []byte
	serverAuthKey []byte
	serverEncKey  []byte

	encState *primitives.CTRState
	decState *primitives.CTRState

	phase Phase
}

// New creates a Session with a freshly generated DH keypair in
// PhaseAwaitingServerHello.
func New() (*Session, error) {
	priv, err := dh.GeneratePrivateKey(dh.Group2048)
	if err != nil {
		return nil, ErrCryptoBackend
	}
	pub := dh.PublicKey(dh.Group2048, priv)
	return &Session{
		cliPriv:  priv,
		cliPub:   pub,
		encState: primitives.NewCTRState(),
		decState: primitives.NewCTRState(),
		phase:    PhaseAwaitingServerHello,
	}, nil
}

// Phase reports the session's current state.
func (s *Session) Phase() Phase {
	return s.phase
}

// BytesToReadForServerHello returns the exact number of bytes a Server
// Hello occupies on the wire for the given DER-encoded server RSA public
// key: 1 (version) + DHPubKeyLen (server DH public key) + the RSA
// modulus size (signature) + NonceLen. It returns ErrBadKey, and moves the
// session to PhaseFailed, if the key can't be parsed, and ErrSessionFailed
// on a session that is already Failed.
func (s *Session) BytesToReadForServerHello(serverPubKeyDER []byte) (int, error) {
	if s.phase == PhaseFailed {
		return 0, ErrSessionFailed
	}
	pub, err := primitives.ParseRSAPublicKey(serverPubKeyDER)
	if err != nil {
		s.phase = PhaseFailed
		return 0, ErrBadKey
	}
	return 1 + DHPubKeyLen + pub.Size() + NonceLen, nil
}

// ReplyToServerHello processes a Server Hello buffer (exactly
// BytesToReadForServerHello(serverPubKeyDER) bytes) and, on success,
// derives the four session keys and returns the Client Hello to send
// back. It is only valid in PhaseAwaitingServerHello; it transitions to
// PhaseEstablished on success and PhaseFailed on any error.
func (s *Session) ReplyToServerHello(buf, serverPubKeyDER []byte) ([]byte, error) {
	if s.phase != PhaseAwaitingServerHello {
		return nil, ErrSessionFailed
	}

	fail := func(err error) ([]byte, error) {
		s.phase = PhaseFailed
		return nil, err
	}

	want, err := s.BytesToReadForServerHello(serverPubKeyDER)
	if err != nil {
		return fail(ErrBadKey)
	}
	if len(buf) != want {
		return fail(ErrMalformedFrame)
	}

	version := buf[0]
	if version != CurrentProtocolVersion {
		return fail(ErrProtocolVersion)
	}

	pub, _ := primitives.ParseRSAPublicKey(serverPubKeyDER)
	sigLen := pub.Size()

	serverDHPubBytes := buf[1 : 1+DHPubKeyLen]
	sigOffset := 1 + DHPubKeyLen
	signature := buf[sigOffset : sigOffset+sigLen]
	nonce := buf[sigOffset+sigLen:]

	signedMessage := buf[:1+DHPubKeyLen]
	if err := primitives.RSAVerifyPSSSHA256(serverPubKeyDER, signedMessage, signature); err != nil {
		return fail(ErrBadSignature)
	}

	serverPub := new(big.Int).SetBytes(serverDHPubBytes)
	secret, err := dh.SharedSecret(dh.Group2048, s.cliPriv, serverPub)
	if err != nil {
		return fail(ErrCryptoBackend)
	}

	clientAuthKey, clientEncKey, serverAuthKey, serverEncKey := kdf.Derive(secret, nonce)
	s.clientAuthKey = clientAuthKey
	s.clientEncKey = clientEncKey
	s.serverAuthKey = serverAuthKey
	s.serverEncKey = serverEncKey

	cliPubPadded := dh.BytesPadded(s.cliPub, DHPubKeyLen)
	hello := make([]byte, 0, 1+DHPubKeyLen+AuthKeyLen)
	hello = append(hello, CurrentProtocolVersion)
	hello = append(hello, cliPubPadded...)
	mac := primitives.HMACSHA256(s.clientAuthKey, hello)
	hello = append(hello, mac...)

	s.phase = PhaseEstablished
	return hello, nil
}

// BytesToReadForRecordLength is always 2: the little-endian uint16 length
// prefix of an inbound record.
func (s *Session) BytesToReadForRecordLength() int {
	return 2
}

// BytesToReadForNextRecord returns the number of remaining bytes to read
// for a record once its cmdLen has been recovered from the 2-byte length
// prefix: the ciphertext plus the trailing auth tag.
func (s *Session) BytesToReadForNextRecord(cmdLen int) int {
	return cmdLen + AuthKeyLen
}

// WriteCommand encodes cmd (optionally Snappy-compressed), encrypts it
// under the client's encryption key, and authenticates the result under
// the client's auth key. It is only valid in PhaseEstablished.
func (s *Session) WriteCommand(cmd *Command, compress bool) ([]byte, error) {
	if s.phase != PhaseEstablished {
		return nil, ErrSessionFailed
	}

	enc, err := EncodeCommand(cmd, compress)
	if err != nil {
		s.phase = PhaseFailed
		return nil, err
	}
	if len(enc) == 0 {
		s.phase = PhaseFailed
		return nil, ErrEmptyFrame
	}

	cipher, err := primitives.AESCTRXor(s.clientEncKey, s.encState, enc)
	if err != nil {
		s.phase = PhaseFailed
		return nil, ErrCryptoBackend
	}

	header := make([]byte, 2+len(cipher))
	binary.LittleEndian.PutUint16(header[:2], uint16(len(enc)))
	copy(header[2:], cipher)

	tag := primitives.HMACSHA256(s.clientAuthKey, header)
	return append(header, tag...), nil
}

// ReadRecord authenticates and decrypts an inbound record. cmdLen is the
// length already recovered from the record's 2-byte prefix; buf must be
// exactly BytesToReadForNextRecord(cmdLen) bytes (ciphertext followed by
// the auth tag). The MAC is checked before any decryption is attempted,
// so a MAC failure never advances the decrypt counter. It is only valid
// in PhaseEstablished.
func (s *Session) ReadRecord(cmdLen int, buf []byte) (*Command, error) {
	if s.phase != PhaseEstablished {
		return nil, ErrSessionFailed
	}
	if cmdLen <= 0 || len(buf) != s.BytesToReadForNextRecord(cmdLen) {
		s.phase = PhaseFailed
		return nil, ErrMalformedFrame
	}

	cipher := buf[:cmdLen]
	tag := buf[cmdLen:]

	header := make([]byte, 2+cmdLen)
	binary.LittleEndian.PutUint16(header[:2], uint16(cmdLen))
	copy(header[2:], cipher)

	expectedTag := primitives.HMACSHA256(s.serverAuthKey, header)
	if !hmac.Equal(expectedTag, tag) {
		s.phase = PhaseFailed
		return nil, ErrBadMAC
	}

	plain, err := primitives.AESCTRXor(s.serverEncKey, s.decState, cipher)
	if err != nil {
		s.phase = PhaseFailed
		return nil, ErrCryptoBackend
	}

	cmd, err := DecodeCommand(plain)
	if err != nil {
		s.phase = PhaseFailed
		return nil, err
	}
	return cmd, nil
}

// ExportKeyingMaterial derives length bytes of additional secret key
// material from the session's two encryption keys, labelled by label, via
// HKDF-SHA256. It is only valid in PhaseEstablished. This does not touch
// the wire protocol or any invariant in the handshake or record layer; it
// exists so an application (e.g. binding a push-subscription token to the
// session) can derive extra secrets without a second round trip.
func (s *Session) ExportKeyingMaterial(label string, length int) ([]byte, error) {
	if s.phase != PhaseEstablished {
		return nil, ErrSessionFailed
	}
	secret := make([]byte, 0, len(s.clientEncKey)+len(s.serverEncKey))
	secret = append(secret, s.clientEncKey...)
	secret = append(secret, s.serverEncKey...)

	kdfr := hkdf.New(sha256.New, secret, nil, []byte(label))
	out := make([]byte, length)
	if _, err := io.ReadFull(kdfr, out); err != nil {
		return nil, ErrCryptoBackend
	}
	return out, nil
}
