// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// DefaultKeyPrefix prefixes every generated key.
const DefaultKeyPrefix = "cg"

// KeyGenerator generates cache keys.
type KeyGenerator struct {
	prefix string
}

// NewKeyGenerator creates a new key generator.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{
		prefix: DefaultKeyPrefix,
	}
}

// Fingerprint returns a SHA-256 digest of inputs. Every input is length
// prefixed so ("ab", "c") and ("a", "bc") produce different digests.
func Fingerprint(inputs ...string) string {
	h := sha256.New()
	var size [8]byte
	for _, input := range inputs {
		binary.BigEndian.PutUint64(size[:], uint64(len(input)))
		h.Write(size[:])
		h.Write([]byte(input))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Generate generates a cache key from inputs.
func (kg *KeyGenerator) Generate(inputs ...string) string {
	return kg.prefix + ":" + Fingerprint(inputs...)
}

// ResultKey generates the key for an analyzer result over a context fingerprint.
func (kg *KeyGenerator) ResultKey(analyzerID, fingerprint string) string {
	return kg.prefix + ":" + analyzerID + ":" + Fingerprint(analyzerID, fingerprint)
}

// FileKey generates the key for file content at a given ref.
func (kg *KeyGenerator) FileKey(repository, path, ref string) string {
	return kg.prefix + ":file:" + Fingerprint(repository, path, ref)
}
