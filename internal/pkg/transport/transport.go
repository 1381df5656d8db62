// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// Package transport contains small helpers that satisfy the transport
// collaborator contract the session package assumes: read_exact(n) and
// write_all(bytes), driven by the BytesToReadFor* hints the session exposes.
// The session package performs no I/O itself; these helpers are what a
// caller plugs in on top of a net.Conn or similar byte stream.
package transport

import "io"

// ReadExact reads exactly n bytes from r, or returns an error (including
// io.ErrUnexpectedEOF if the stream ends early).
func ReadExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteAll writes all of buf to w.
func WriteAll(w io.Writer, buf []byte) error {
	_, err := w.Write(buf)
	return err
}
