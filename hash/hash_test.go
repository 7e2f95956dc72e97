// Copyright 2022 The httpq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum(t *testing.T) {
	// Digests of "abc" per the algorithm reference vectors.
	testCases := map[string]string{
		"md5":    "900150983cd24fb0d6963f7d28e17f72",
		"sha1":   "a9993e364706816aba3e25717850c26c9cd0d89d",
		"sha256": "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		"sha512": "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
			"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f",
		"sha3-256":  "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532",
		"ripemd160": "8eb208f7e05d987a9b044a8e98c6b087f15a0bfc",
	}
	for algorithm, expected := range testCases {
		t.Run(algorithm, func(t *testing.T) {
			actual, err := Sum(algorithm, []byte("abc"))
			require.NoError(t, err)
			assert.Equal(t, expected, actual)
		})
	}
}

func TestSumUnknownAlgorithm(t *testing.T) {
	_, err := Sum("crc32", []byte("abc"))
	assert.EqualError(t, err, `hash: unknown algorithm "crc32"`)
}

func TestAllAlgorithmsConstructible(t *testing.T) {
	for _, name := range Algorithms() {
		h, err := New(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, h.Name())
		_, err = h.Write([]byte("x"))
		assert.NoError(t, err)
		assert.NotEmpty(t, h.Sum())
	}
}

func TestStreaming(t *testing.T) {
	h, err := New("sha256")
	require.NoError(t, err)
	_, _ = h.Write([]byte("a"))
	_, _ = h.Write([]byte("bc"))
	oneShot, _ := Sum("sha256", []byte("abc"))
	assert.Equal(t, oneShot, h.Sum())

	h.Reset()
	_, err = h.ReadFrom(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, oneShot, h.Sum())
}

func TestSumIsNonDestructive(t *testing.T) {
	h, err := New("sha1")
	require.NoError(t, err)
	_, _ = h.Write([]byte("ab"))
	first := h.Sum()
	assert.Equal(t, first, h.Sum())
	_, _ = h.Write([]byte("c"))
	full, _ := Sum("sha1", []byte("abc"))
	assert.Equal(t, full, h.Sum())
}
