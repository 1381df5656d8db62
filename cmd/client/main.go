// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

// Command client is a minimal reference peer for the session protocol. It
// drives a Session through the handshake and exchanges one record with
// cmd/server.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"

	session "github.com/uniqush/uniqush-session"
	"github.com/uniqush/uniqush-session/internal/pkg/transport"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s is a simple example client of the uniqush-session package. It can be used together with cmd/server.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
	}
	addr := flag.String("conn", "localhost:9999", "Host to connect to.")
	pubKeyPath := flag.String("pubkey", "server.pub", "Path to the server's DER-encoded RSA public key, as written by cmd/server's -pubkeyout.")
	flag.Parse()

	serverPubKeyDER, err := os.ReadFile(*pubKeyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		panic(err)
	}
	defer conn.Close()

	if err := run(conn, serverPubKeyDER); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(conn net.Conn, serverPubKeyDER []byte) error {
	sess, err := session.New()
	if err != nil {
		return err
	}

	helloLen, err := sess.BytesToReadForServerHello(serverPubKeyDER)
	if err != nil {
		return err
	}
	serverHello, err := transport.ReadExact(conn, helloLen)
	if err != nil {
		return err
	}

	clientHello, err := sess.ReplyToServerHello(serverHello, serverPubKeyDER)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	if err := transport.WriteAll(conn, clientHello); err != nil {
		return err
	}
	fmt.Println("Handshake established")

	cmd, err := readRecord(conn, sess)
	if err != nil {
		return err
	}
	fmt.Printf("Received command type=%d body=%q\n", cmd.Type, cmd.Body)

	reply := &session.Command{
		Type: 0x01,
		Message: session.Message{
			Headers: []session.Header{{Key: "from", Value: "client"}},
		},
		Body: []byte("Hi server!"),
	}
	out, err := sess.WriteCommand(reply, true)
	if err != nil {
		return err
	}
	return transport.WriteAll(conn, out)
}

func readRecord(conn net.Conn, sess *session.Session) (*session.Command, error) {
	lenBuf, err := transport.ReadExact(conn, sess.BytesToReadForRecordLength())
	if err != nil {
		return nil, err
	}
	cmdLen := int(binary.LittleEndian.Uint16(lenBuf))
	rest, err := transport.ReadExact(conn, sess.BytesToReadForNextRecord(cmdLen))
	if err != nil {
		return nil, err
	}
	return sess.ReadRecord(cmdLen, rest)
}
