// Copyright (c) 2026 The Uniqush Authors
//
// Use of this source code is governed by the BSD-style license that can be
// found in the LICENSE file.
//
// This file contains an implementation of Diffie-Hellman key exchange over
// the group Z^*_p for a prime p.

package dh

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// ErrDegenerateKey is returned when a peer's public key is the identity
// element or lies in a small subgroup, and so can't be used safely.
var ErrDegenerateKey = errors.New("dh: degenerate public key")

// ErrNotInGroup is returned when a peer's public key isn't a valid element
// of Z^*_p.
var ErrNotInGroup = errors.New("dh: value not in group")

// Group represents the multiplicative group Z^*_p with generator G.
// ByteLen is the fixed wire length of a public key for this group.
type Group struct {
	G       *big.Int
	P       *big.Int
	ByteLen int
}

// Group2048 is the RFC 3526 2048-bit MODP group (IANA group 14).
var Group2048 Group

func init() {
	p, ok := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)
	if !ok {
		panic("dh: big.Int SetString failed")
	}
	g := new(big.Int).SetInt64(2)
	Group2048 = Group{G: g, P: p, ByteLen: 256}
}

// IsInSmallSubgroup returns true if x belongs to the order-1 or order-2
// subgroup of Z^*_p.
//
// Precondition: p is a safe prime (i.e., p is prime and (p-1)/2 is prime).
//
// As p is a safe prime there are only three sizes of subgroups: one, two,
// and (p-1)/2 elements. The subgroups containing one and two elements are
// considered small.
func IsInSmallSubgroup(x, p *big.Int) bool {
	if x.Cmp(big.NewInt(1)) == 0 {
		return true
	}
	sq := new(big.Int).Exp(x, big.NewInt(2), p)
	return sq.Cmp(big.NewInt(1)) == 0
}

// IsInGroup returns true if 0 < x < p.
func IsInGroup(x, p *big.Int) bool {
	return x.Sign() > 0 && x.Cmp(p) < 0
}

// GeneratePrivateKey returns a fresh random private key in [1, p).
func GeneratePrivateKey(g Group) (*big.Int, error) {
	for {
		key, err := rand.Int(rand.Reader, g.P)
		if err != nil {
			return nil, err
		}
		if key.Sign() != 0 {
			return key, nil
		}
	}
}

// PublicKey computes g^priv mod p.
func PublicKey(g Group, priv *big.Int) *big.Int {
	return new(big.Int).Exp(g.G, priv, g.P)
}

// SharedSecret computes peerPub^priv mod p and returns it as an unsigned,
// big-endian, unpadded byte string, as required by the CryptoPrimitives
// dh_compute_secret contract. It rejects a peer public key that is not a
// valid group element or that lies in a small subgroup.
func SharedSecret(g Group, priv, peerPub *big.Int) ([]byte, error) {
	if !IsInGroup(peerPub, g.P) {
		return nil, ErrNotInGroup
	}
	if IsInSmallSubgroup(peerPub, g.P) {
		return nil, ErrDegenerateKey
	}
	s := new(big.Int).Exp(peerPub, priv, g.P)
	return s.Bytes(), nil
}

// BytesPadded encodes x as an unsigned big-endian integer left-zero-padded
// to exactly length bytes. It panics if x's encoding is longer than length,
// which should never happen for a value already reduced mod p with
// length == g.ByteLen.
func BytesPadded(x *big.Int, length int) []byte {
	b := x.Bytes()
	if len(b) > length {
		panic("dh: value too large for requested length")
	}
	out := make([]byte, length)
	copy(out[length-len(b):], b)
	return out
}
