// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package session

import (
	"bytes"
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"math/big"
	"testing"

	"github.com/uniqush/uniqush-session/internal/pkg/dh"
	"github.com/uniqush/uniqush-session/internal/pkg/primitives"
)

// serverKeys bundles the simulated server's long-term RSA signing key and
// per-handshake DH keypair, used to build Server Hello buffers for tests.
type serverKeys struct {
	priv   *rsa.PrivateKey
	pubDER []byte
	dhPriv *big.Int
	dhPub  *big.Int
	nonce  []byte
}

func newServerKeys(t *testing.T) *serverKeys {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatal(err)
	}
	dhPriv, err := dh.GeneratePrivateKey(dh.Group2048)
	if err != nil {
		t.Fatal(err)
	}
	dhPub := dh.PublicKey(dh.Group2048, dhPriv)
	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		t.Fatal(err)
	}
	return &serverKeys{
		priv:   priv,
		pubDER: x509.MarshalPKCS1PublicKey(&priv.PublicKey),
		dhPriv: dhPriv,
		dhPub:  dhPub,
		nonce:  nonce,
	}
}

// buildServerHello builds a valid Server Hello buffer for sk, optionally
// overriding the version byte (0 means use CurrentProtocolVersion).
func buildServerHello(t *testing.T, sk *serverKeys, version byte) []byte {
	t.Helper()
	if version == 0 {
		version = CurrentProtocolVersion
	}
	dhPubPadded := dh.BytesPadded(sk.dhPub, DHPubKeyLen)

	signed := append([]byte{version}, dhPubPadded...)
	digest := sha256.Sum256(signed)
	sig, err := rsa.SignPSS(rand.Reader, sk.priv, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256})
	if err != nil {
		t.Fatal(err)
	}

	hello := append([]byte{}, signed...)
	hello = append(hello, sig...)
	hello = append(hello, sk.nonce...)
	return hello
}

func TestBytesToReadForServerHelloExact(t *testing.T) {
	sk := newServerKeys(t)
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	n, err := sess.BytesToReadForServerHello(sk.pubDER)
	if err != nil {
		t.Fatal(err)
	}
	hello := buildServerHello(t, sk, 0)
	if n != len(hello) {
		t.Fatalf("BytesToReadForServerHello=%d, actual hello length=%d", n, len(hello))
	}
}

func TestBytesToReadForServerHelloBadKey(t *testing.T) {
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.BytesToReadForServerHello([]byte("garbage")); err != ErrBadKey {
		t.Fatalf("expected ErrBadKey, got %v", err)
	}
}

// A valid handshake produces a well-formed Client Hello.
func TestReplyToServerHelloValid(t *testing.T) {
	sk := newServerKeys(t)
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	hello := buildServerHello(t, sk, 0)

	clientHello, err := sess.ReplyToServerHello(hello, sk.pubDER)
	if err != nil {
		t.Fatalf("ReplyToServerHello failed: %v", err)
	}
	if sess.Phase() != PhaseEstablished {
		t.Fatalf("expected Established, got %v", sess.Phase())
	}

	wantLen := 1 + DHPubKeyLen + AuthKeyLen
	if len(clientHello) != wantLen {
		t.Fatalf("client hello length = %d, want %d", len(clientHello), wantLen)
	}
	if clientHello[0] != CurrentProtocolVersion {
		t.Fatalf("client hello version byte = %d, want %d", clientHello[0], CurrentProtocolVersion)
	}

	mac := clientHello[len(clientHello)-AuthKeyLen:]
	signed := clientHello[:1+DHPubKeyLen]
	expected := primitives.HMACSHA256(sess.clientAuthKey, signed)
	if !hmac.Equal(mac, expected) {
		t.Fatalf("client hello HMAC does not verify under clientAuthKey")
	}
}

// A version mismatch fails with ErrProtocolVersion and no keys are
// derived (session goes straight to Failed).
func TestReplyToServerHelloBadVersion(t *testing.T) {
	sk := newServerKeys(t)
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	hello := buildServerHello(t, sk, 0)
	hello[0] = CurrentProtocolVersion + 1

	_, err = sess.ReplyToServerHello(hello, sk.pubDER)
	if err != ErrProtocolVersion {
		t.Fatalf("expected ErrProtocolVersion, got %v", err)
	}
	if sess.Phase() != PhaseFailed {
		t.Fatalf("expected Failed, got %v", sess.Phase())
	}
}

// A flipped signature byte fails with ErrBadSignature.
func TestReplyToServerHelloBadSignature(t *testing.T) {
	sk := newServerKeys(t)
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	hello := buildServerHello(t, sk, 0)
	sigOffset := 1 + DHPubKeyLen
	hello[sigOffset] ^= 0xFF

	_, err = sess.ReplyToServerHello(hello, sk.pubDER)
	if err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
	if sess.Phase() != PhaseFailed {
		t.Fatalf("expected Failed, got %v", sess.Phase())
	}
}

func TestReplyToServerHelloWrongLength(t *testing.T) {
	sk := newServerKeys(t)
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	hello := buildServerHello(t, sk, 0)
	_, err = sess.ReplyToServerHello(hello[:len(hello)-1], sk.pubDER)
	if err != ErrMalformedFrame {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
}

// establishClient runs a full handshake and returns the resulting
// Established client session.
func establishClient(t *testing.T) *Session {
	t.Helper()
	sk := newServerKeys(t)
	client, err := New()
	if err != nil {
		t.Fatal(err)
	}
	hello := buildServerHello(t, sk, 0)
	if _, err := client.ReplyToServerHello(hello, sk.pubDER); err != nil {
		t.Fatal(err)
	}
	return client
}

// echoSession builds a Session that decrypts/authenticates using the given
// session's client keys as if it were the peer on the other end — used to
// feed WriteCommand's output back through ReadRecord.
func echoSession(client *Session) *Session {
	return &Session{
		serverAuthKey: client.clientAuthKey,
		serverEncKey:  client.clientEncKey,
		decState:      primitives.NewCTRState(),
		phase:         PhaseEstablished,
	}
}

// A command written by the client and fed back in as an inbound record
// round-trips to the original command.
func TestWriteCommandThenReadBackRoundTrips(t *testing.T) {
	client := establishClient(t)

	cmd := &Command{
		Type:   0x01,
		Params: []string{"hello"},
		Message: Message{
			Headers: []Header{{Key: "k", Value: "v"}},
		},
		Body: []byte("X"),
	}

	record, err := client.WriteCommand(cmd, false)
	if err != nil {
		t.Fatal(err)
	}

	cmdLen := int(record[0]) | int(record[1])<<8
	rest := record[2:]
	if len(rest) != client.BytesToReadForNextRecord(cmdLen) {
		t.Fatalf("record framing inconsistent")
	}

	echo := echoSession(client)
	got, err := echo.ReadRecord(cmdLen, rest)
	if err != nil {
		t.Fatalf("ReadRecord failed: %v", err)
	}
	if got.Type != cmd.Type {
		t.Fatalf("Type mismatch: got %v want %v", got.Type, cmd.Type)
	}
	if len(got.Params) != 1 || got.Params[0] != "hello" {
		t.Fatalf("Params mismatch: %v", got.Params)
	}
	if len(got.Message.Headers) != 1 || got.Message.Headers[0] != (Header{Key: "k", Value: "v"}) {
		t.Fatalf("Headers mismatch: %v", got.Message.Headers)
	}
	if !bytes.Equal(got.Body, cmd.Body) {
		t.Fatalf("Body mismatch: %v", got.Body)
	}
}

// Multiple records in sequence must all decrypt correctly: CTR counters
// advance in transmission order on both sides in lockstep.
func TestMultipleRecordsInSequence(t *testing.T) {
	client := establishClient(t)
	echo := echoSession(client)

	bodies := [][]byte{[]byte("one"), []byte("two"), []byte("three, a bit longer this time")}
	for i, body := range bodies {
		record, err := client.WriteCommand(&Command{Type: uint8(i), Body: body}, false)
		if err != nil {
			t.Fatal(err)
		}
		cmdLen := int(record[0]) | int(record[1])<<8
		got, err := echo.ReadRecord(cmdLen, record[2:])
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !bytes.Equal(got.Body, body) {
			t.Fatalf("record %d: body mismatch, got %q want %q", i, got.Body, body)
		}
	}
}

// Flipping a bit in the tag causes ErrBadMAC and must not advance the
// decrypt counter.
func TestReadRecordTamperDetection(t *testing.T) {
	client := establishClient(t)
	echo := echoSession(client)

	record1, err := client.WriteCommand(&Command{Type: 0x02, Body: []byte("first")}, false)
	if err != nil {
		t.Fatal(err)
	}
	cmdLen1 := int(record1[0]) | int(record1[1])<<8
	rest1 := append([]byte(nil), record1[2:]...)

	tampered := append([]byte(nil), rest1...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := echo.ReadRecord(cmdLen1, tampered); err != ErrBadMAC {
		t.Fatalf("expected ErrBadMAC, got %v", err)
	}
	if echo.Phase() != PhaseFailed {
		t.Fatalf("expected Failed after tamper, got %v", echo.Phase())
	}
	if *echo.decState != (primitives.CTRState{}) {
		t.Fatalf("decrypt counter advanced after a MAC failure")
	}
}

// Failure stickiness: once Failed, every subsequent call returns
// ErrSessionFailed.
func TestFailureIsSticky(t *testing.T) {
	sk := newServerKeys(t)
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	hello := buildServerHello(t, sk, 0)
	hello[0] = CurrentProtocolVersion + 1
	if _, err := sess.ReplyToServerHello(hello, sk.pubDER); err != ErrProtocolVersion {
		t.Fatalf("expected ErrProtocolVersion, got %v", err)
	}

	if _, err := sess.WriteCommand(&Command{Type: 1}, false); err != ErrSessionFailed {
		t.Fatalf("expected ErrSessionFailed from WriteCommand, got %v", err)
	}
	if _, err := sess.ReadRecord(16, make([]byte, 16+AuthKeyLen)); err != ErrSessionFailed {
		t.Fatalf("expected ErrSessionFailed from ReadRecord, got %v", err)
	}
	if _, err := sess.ReplyToServerHello(hello, sk.pubDER); err != ErrSessionFailed {
		t.Fatalf("expected ErrSessionFailed from re-entrant handshake, got %v", err)
	}
}

func TestExportKeyingMaterialRequiresEstablished(t *testing.T) {
	sess, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.ExportKeyingMaterial("push-token", 32); err != ErrSessionFailed {
		t.Fatalf("expected ErrSessionFailed, got %v", err)
	}
}

func TestExportKeyingMaterialDeterministicAndLabelled(t *testing.T) {
	client := establishClient(t)

	a, err := client.ExportKeyingMaterial("push-token", 32)
	if err != nil {
		t.Fatal(err)
	}
	b, err := client.ExportKeyingMaterial("push-token", 32)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("ExportKeyingMaterial not deterministic")
	}

	c, err := client.ExportKeyingMaterial("other-label", 32)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, c) {
		t.Fatalf("different labels produced the same output")
	}
}
