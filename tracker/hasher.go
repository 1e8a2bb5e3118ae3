// Copyright (c) 2025 pk910
// SPDX-License-Identifier: Apache-2.0
// This file is part of the dynamic-vtable library.

package tracker

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"math/bits"
	"sync"

	"github.com/prysmaticlabs/gohashtree"
)

// HashFn hashes consecutive 64 byte chunks of input into 32 byte digests
// written to dst. dst may alias input.
type HashFn func(dst []byte, input []byte) error

// DefaultHashFn is the vectorized gohashtree implementation.
var DefaultHashFn HashFn = gohashtree.HashByteSlice

var hasherInitialized bool
var hasherInitMutex sync.Mutex
var zeroHashes [65][32]byte

func initHasher() {
	hasherInitMutex.Lock()
	defer hasherInitMutex.Unlock()

	if hasherInitialized {
		return
	}

	tmp := [64]byte{}
	for i := 0; i < 64; i++ {
		copy(tmp[:32], zeroHashes[i][:])
		copy(tmp[32:], zeroHashes[i][:])
		zeroHashes[i+1] = sha256.Sum256(tmp[:])
	}
	hasherInitialized = true
}

// NativeHashWrapper wraps a hash.Hash function into a HashFn
func NativeHashWrapper(hashFn hash.Hash) HashFn {
	return func(dst []byte, input []byte) error {
		hash := func(dst []byte, src []byte) {
			hashFn.Write(src[:32])
			hashFn.Write(src[32:64])
			hashFn.Sum(dst)
			hashFn.Reset()
		}

		layerLen := len(input) / 32
		if layerLen%2 == 1 {
			layerLen++
		}
		for i := 0; i < layerLen; i += 2 {
			hash(dst[(i/2)*32:][:0], input[i*32:])
		}
		return nil
	}
}

func getDepth(d uint64) uint8 {
	if d <= 1 {
		return 0
	}
	return uint8(bits.Len64(d - 1))
}

// merkleRoot builds the binary merkle root over 32 byte leaves and mixes in
// the leaf count, so appending a zero digest changes the root.
func merkleRoot(hashFn HashFn, leaves [][32]byte) ([32]byte, error) {
	initHasher()

	var root [32]byte
	count := uint64(len(leaves))
	depth := getDepth(count)

	input := make([]byte, 0, (len(leaves)+1)*32)
	for i := range leaves {
		input = append(input, leaves[i][:]...)
	}

	if count == 0 {
		input = append(input, zeroHashes[0][:]...)
	}

	for i := uint8(0); i < depth; i++ {
		layerLen := len(input) / 32
		if layerLen%2 == 1 {
			input = append(input, zeroHashes[i][:]...)
			layerLen++
		}

		if err := hashFn(input, input); err != nil {
			return root, err
		}
		input = input[:(layerLen/2)*32]
	}

	// mixin the leaf count
	mixin := make([]byte, 64)
	copy(mixin, input[:32])
	binary.LittleEndian.PutUint64(mixin[32:], count)
	if err := hashFn(mixin, mixin); err != nil {
		return root, err
	}

	copy(root[:], mixin[:32])
	return root, nil
}
