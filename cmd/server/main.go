// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

// Command server is a minimal reference peer for the session protocol. It
// plays the server side of the handshake and record layer directly on top
// of the internal crypto packages, since package session only implements
// the client side, since it's framed as a client protocol engine. It can be
// used together with cmd/client.
package main

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"flag"
	"fmt"
	"math/big"
	"net"
	"os"

	session "github.com/uniqush/uniqush-session"
	"github.com/uniqush/uniqush-session/internal/pkg/dh"
	"github.com/uniqush/uniqush-session/internal/pkg/kdf"
	"github.com/uniqush/uniqush-session/internal/pkg/primitives"
	"github.com/uniqush/uniqush-session/internal/pkg/transport"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s is a reference server for the uniqush-session protocol. It can be used together with cmd/client.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
	}
	addr := flag.String("l", ":9999", "Address to listen on.")
	pubKeyOut := flag.String("pubkeyout", "server.pub", "Where to write the server's DER-encoded RSA public key, for cmd/client's -pubkey flag.")
	flag.Parse()

	privS, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&privS.PublicKey)
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(*pubKeyOut, pubDER, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote public key to %s\n", *pubKeyOut)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Listening on %s\n", *addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		go handleConn(conn, privS)
	}
}

func handleConn(conn net.Conn, privS *rsa.PrivateKey) {
	defer conn.Close()
	fmt.Printf("Got connection from %s\n", conn.RemoteAddr())
	if err := doHandleConn(conn, privS); err != nil {
		fmt.Printf("doHandleConn: %s\n", err)
	}
}

func doHandleConn(conn net.Conn, privS *rsa.PrivateKey) error {
	dhPriv, err := dh.GeneratePrivateKey(dh.Group2048)
	if err != nil {
		return err
	}
	dhPub := dh.PublicKey(dh.Group2048, dhPriv)
	nonce := make([]byte, session.NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	dhPubPadded := dh.BytesPadded(dhPub, session.DHPubKeyLen)
	signed := append([]byte{session.CurrentProtocolVersion}, dhPubPadded...)
	digest := sha256.Sum256(signed)
	sig, err := rsa.SignPSS(rand.Reader, privS, crypto.SHA256, digest[:], &rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256})
	if err != nil {
		return err
	}
	hello := append(append([]byte{}, signed...), sig...)
	hello = append(hello, nonce...)
	if err := transport.WriteAll(conn, hello); err != nil {
		return err
	}

	clientHelloLen := 1 + session.DHPubKeyLen + session.AuthKeyLen
	clientHello, err := transport.ReadExact(conn, clientHelloLen)
	if err != nil {
		return err
	}
	if clientHello[0] != session.CurrentProtocolVersion {
		return fmt.Errorf("client hello: unexpected version %d", clientHello[0])
	}
	clientDHPub := new(big.Int).SetBytes(clientHello[1 : 1+session.DHPubKeyLen])
	clientHMAC := clientHello[1+session.DHPubKeyLen:]

	secret, err := dh.SharedSecret(dh.Group2048, dhPriv, clientDHPub)
	if err != nil {
		return fmt.Errorf("shared secret: %w", err)
	}
	clientAuthKey, clientEncKey, serverAuthKey, serverEncKey := kdf.Derive(secret, nonce)

	expected := primitives.HMACSHA256(clientAuthKey, clientHello[:1+session.DHPubKeyLen])
	if !hmac.Equal(expected, clientHMAC) {
		return fmt.Errorf("client hello: mac mismatch")
	}
	fmt.Println("Handshake established")

	encState := primitives.NewCTRState()
	decState := primitives.NewCTRState()

	greeting := &session.Command{
		Type: 0x01,
		Message: session.Message{
			Headers: []session.Header{{Key: "from", Value: "server"}},
		},
		Body: []byte("Hi client!"),
	}
	if err := writeRecord(conn, greeting, true, serverAuthKey, serverEncKey, encState); err != nil {
		return err
	}

	cmd, err := readRecord(conn, clientAuthKey, clientEncKey, decState)
	if err != nil {
		return err
	}
	fmt.Printf("Received command type=%d body=%q\n", cmd.Type, cmd.Body)
	return nil
}

func writeRecord(conn net.Conn, cmd *session.Command, compress bool, authKey, encKey []byte, encState *primitives.CTRState) error {
	enc, err := session.EncodeCommand(cmd, compress)
	if err != nil {
		return err
	}
	cipher, err := primitives.AESCTRXor(encKey, encState, enc)
	if err != nil {
		return err
	}
	header := make([]byte, 2+len(cipher))
	binary.LittleEndian.PutUint16(header[:2], uint16(len(enc)))
	copy(header[2:], cipher)
	tag := primitives.HMACSHA256(authKey, header)
	return transport.WriteAll(conn, append(header, tag...))
}

func readRecord(conn net.Conn, authKey, encKey []byte, decState *primitives.CTRState) (*session.Command, error) {
	lenBuf, err := transport.ReadExact(conn, 2)
	if err != nil {
		return nil, err
	}
	cmdLen := int(binary.LittleEndian.Uint16(lenBuf))
	rest, err := transport.ReadExact(conn, cmdLen+session.AuthKeyLen)
	if err != nil {
		return nil, err
	}
	cipher := rest[:cmdLen]
	tag := rest[cmdLen:]

	header := make([]byte, 2+cmdLen)
	copy(header[:2], lenBuf)
	copy(header[2:], cipher)
	expected := primitives.HMACSHA256(authKey, header)
	if !hmac.Equal(expected, tag) {
		return nil, fmt.Errorf("record: mac mismatch")
	}
	plain, err := primitives.AESCTRXor(encKey, decState, cipher)
	if err != nil {
		return nil, err
	}
	return session.DecodeCommand(plain)
}
