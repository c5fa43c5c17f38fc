// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package ids generates local record identifiers and human-typed share codes.
//
// Share codes are not globally unique by construction. Callers check a fresh
// code against the remote store and regenerate on collision.
package ids

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/powerhour/internal/models"
)

const (
	// ShareCodeLength is the number of symbols in a share code.
	ShareCodeLength = 8

	// ShareCodeAlphabet is the 36-symbol alphabet codes are drawn from.
	ShareCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// LocalIDPrefix marks identifiers minted on this device.
	LocalIDPrefix = "local_"

	// 252 is the largest multiple of 36 below 256; bytes at or above it are
	// rejected so every symbol is equally likely.
	rejectionThreshold = 252
)

// Generator mints identifiers. The default implementation is random; tests
// substitute a fixed sequence.
type Generator interface {
	LocalID() string
	ShareCode() string
}

// Random is the production Generator.
type Random struct{}

// LocalID implements Generator.
func (Random) LocalID() string { return NewLocalID() }

// ShareCode implements Generator.
func (Random) ShareCode() string { return NewShareCode() }

// NewLocalID returns an opaque, time-ordered identifier with a random tail.
func NewLocalID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does
		id = uuid.New()
	}
	return LocalIDPrefix + id.String()
}

// IsLocalID reports whether id was minted by NewLocalID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// NewShareCode returns ShareCodeLength symbols drawn uniformly from
// ShareCodeAlphabet.
func NewShareCode() string {
	var out [ShareCodeLength]byte
	buf := make([]byte, ShareCodeLength*2)
	n := 0
	for n < ShareCodeLength {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("ids: crypto/rand failed: %v", err))
		}
		for _, b := range buf {
			if b >= rejectionThreshold {
				continue
			}
			out[n] = ShareCodeAlphabet[int(b)%len(ShareCodeAlphabet)]
			n++
			if n == ShareCodeLength {
				break
			}
		}
	}
	return string(out[:])
}

// NormalizeShareCode trims and uppercases user input, rejecting anything that
// is not exactly ShareCodeLength alphabet symbols. Lookups must go through
// this before consulting any store.
func NormalizeShareCode(s string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if len(code) != ShareCodeLength {
		return "", &models.ValidationError{
			Field:  "share_code",
			Reason: fmt.Sprintf("must be %d characters, got %d", ShareCodeLength, len(code)),
		}
	}
	if !IsShareCode(code) {
		return "", &models.ValidationError{Field: "share_code", Reason: "must contain only A-Z and 0-9"}
	}
	return code, nil
}

// IsShareCode reports whether s is already a well-formed, normalized code.
func IsShareCode(s string) bool {
	if len(s) != ShareCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Sequence is a Generator that replays fixed values, falling back to Random
// once exhausted.
type Sequence struct {
	mu         sync.Mutex
	LocalIDs   []string
	ShareCodes []string
}

// LocalID implements Generator.
func (s *Sequence) LocalID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.LocalIDs) == 0 {
		return NewLocalID()
	}
	id := s.LocalIDs[0]
	s.LocalIDs = s.LocalIDs[1:]
	return id
}

// ShareCode implements Generator.
func (s *Sequence) ShareCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ShareCodes) == 0 {
		return NewShareCode()
	}
	c := s.ShareCodes[0]
	s.ShareCodes = s.ShareCodes[1:]
	return c
}
