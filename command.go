// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.

package session

import (
	"bytes"
	"encoding/binary"

	"github.com/golang/snappy"
)

// MaxParams is the largest number of params a Command may carry; it has to
// fit in the 4-bit field of the codec's meta header.
const MaxParams = 15

// MaxHeaders is the largest number of headers a Command's Message may carry;
// it has to fit in the codec's 16-bit header count.
const MaxHeaders = 65535

// Header is a single key/value pair carried in a Command's Message.
type Header struct {
	Key   string
	Value string
}

// Message is the header bag attached to a Command.
type Message struct {
	Headers []Header
}

// Command is the application-level unit carried over an established
// session. Params and Body are treated as opaque byte sequences; the
// application above this package owns their interpretation.
type Command struct {
	Type    uint8
	Params  []string
	Message Message
	Body    []byte
}

// EncodeCommand builds the padded, optionally Snappy-compressed plaintext
// buffer for cmd. The returned buffer's length is always a positive
// multiple of BlkLen.
func EncodeCommand(cmd *Command, compress bool) ([]byte, error) {
	if len(cmd.Params) > MaxParams {
		return nil, ErrTooManyParams
	}
	if len(cmd.Message.Headers) > MaxHeaders {
		return nil, ErrTooManyHeaders
	}

	var buf bytes.Buffer
	meta := make([]byte, 4)
	meta[0] = cmd.Type
	meta[1] = byte(len(cmd.Params)&0x0F) << 4
	binary.BigEndian.PutUint16(meta[2:4], uint16(len(cmd.Message.Headers)))
	buf.Write(meta)

	for _, p := range cmd.Params {
		buf.WriteString(p)
		buf.WriteByte(0)
	}
	for _, h := range cmd.Message.Headers {
		buf.WriteString(h.Key)
		buf.WriteByte(0)
		buf.WriteString(h.Value)
		buf.WriteByte(0)
	}
	buf.Write(cmd.Body)

	payload := buf.Bytes()
	var flag byte
	if compress {
		payload = snappy.Encode(nil, payload)
		flag |= cmdFlagCompress
	}

	total := 1 + len(payload)
	numPadding := (BlkLen - total%BlkLen) % BlkLen
	flag |= byte(numPadding) << 3

	out := make([]byte, 1+len(payload)+numPadding)
	out[0] = flag
	copy(out[1:], payload)
	return out, nil
}

// DecodeCommand parses a plaintext buffer produced by EncodeCommand back
// into a Command. It returns ErrMalformedFrame if the padding length,
// string terminators, or string counts are inconsistent, and ErrDecompress
// if a compressed payload fails to decompress.
func DecodeCommand(data []byte) (*Command, error) {
	if len(data) < 1 {
		return nil, ErrMalformedFrame
	}
	flag := data[0]
	numPadding := int(flag >> 3)
	compressed := flag&cmdFlagCompress != 0

	if numPadding > len(data)-1 {
		return nil, ErrMalformedFrame
	}
	payload := data[1 : len(data)-numPadding]

	if compressed {
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, ErrDecompress
		}
		payload = decoded
	}

	if len(payload) < 4 {
		return nil, ErrMalformedFrame
	}
	cmd := &Command{Type: payload[0]}
	numParams := int(payload[1] >> 4)
	numHeaders := int(binary.BigEndian.Uint16(payload[2:4]))

	pos := 4
	for i := 0; i < numParams; i++ {
		s, next, err := readCString(payload, pos)
		if err != nil {
			return nil, err
		}
		cmd.Params = append(cmd.Params, s)
		pos = next
	}
	for i := 0; i < numHeaders; i++ {
		k, next, err := readCString(payload, pos)
		if err != nil {
			return nil, err
		}
		v, next2, err := readCString(payload, next)
		if err != nil {
			return nil, err
		}
		cmd.Message.Headers = append(cmd.Message.Headers, Header{Key: k, Value: v})
		pos = next2
	}
	cmd.Body = append([]byte(nil), payload[pos:]...)
	return cmd, nil
}

// readCString reads a NUL-terminated string starting at buf[start] and
// returns it along with the offset just past the terminator.
func readCString(buf []byte, start int) (string, int, error) {
	if start > len(buf) {
		return "", 0, ErrMalformedFrame
	}
	idx := bytes.IndexByte(buf[start:], 0)
	if idx < 0 {
		return "", 0, ErrMalformedFrame
	}
	return string(buf[start : start+idx]), start + idx + 1, nil
}
