// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package hash provides streaming and one-shot hashing helpers over a
// table of named algorithms, for example to verify downloaded content
// against a published digest.
package hash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// algorithms maps algorithm names to constructors. To support a new
// algorithm, add a line here.
var algorithms = map[string]func() hash.Hash{
	"md5":         md5.New,
	"sha1":        sha1.New,
	"sha224":      sha256.New224,
	"sha256":      sha256.New,
	"sha384":      sha512.New384,
	"sha512":      sha512.New,
	"sha512-224":  sha512.New512_224,
	"sha512-256":  sha512.New512_256,
	"sha3-224":    sha3.New224,
	"sha3-256":    sha3.New256,
	"sha3-384":    sha3.New384,
	"sha3-512":    sha3.New512,
	"blake2b-512": func() hash.Hash { h, _ := blake2b.New512(nil); return h },
	"blake2s-256": func() hash.Hash { h, _ := blake2s.New256(nil); return h },
	"ripemd160":   ripemd160.New,
}

// Algorithms returns the names of the supported algorithms.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	return names
}

// A Hash incrementally digests data fed to it via Write or ReadFrom
// and renders the digest as lowercase hex with Sum.
//
// A Hash is NOT safe for concurrent use by multiple goroutines.
type Hash struct {
	name string
	h    hash.Hash
}

// New returns a streaming Hash for the named algorithm, or an error
// if the algorithm is unknown. Algorithm names are lowercase, for
// example "sha256", "sha3-512", or "blake2b-512".
func New(algorithm string) (*Hash, error) {
	ctor, ok := algorithms[algorithm]
	if !ok {
		return nil, fmt.Errorf("hash: unknown algorithm %q", algorithm)
	}
	return &Hash{name: algorithm, h: ctor()}, nil
}

// Name returns the algorithm name the Hash was created with.
func (h *Hash) Name() string {
	return h.name
}

// Write feeds data into the digest. It never returns an error.
func (h *Hash) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// ReadFrom feeds the whole contents of r into the digest.
func (h *Hash) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(h.h, r)
}

// Sum returns the current digest as a lowercase hex string. It does
// not change the digest state, so more data may be written afterward.
func (h *Hash) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Reset returns the Hash to its initial state.
func (h *Hash) Reset() {
	h.h.Reset()
}

// Sum digests data with the named algorithm in one shot and returns
// the digest as a lowercase hex string.
func Sum(algorithm string, data []byte) (string, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	_, _ = h.Write(data)
	return h.Sum(), nil
}
