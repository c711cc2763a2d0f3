// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package identity derives viewer identity signals from the request:
// an opaque anonymous fingerprint, the device class from the User-Agent,
// and the country from the client IP.
package identity

import (
	"encoding/hex"
	"strconv"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter produces opaque anonymous fingerprints from IP + User-Agent
// plus a rotating salt. The salt rotates every Rotation period, so a
// fingerprint identifies a viewer only within that horizon. Rotation must be
// at least as long as the dedup window for the unique-view rule to hold.
type Fingerprinter struct {
	secret   []byte
	rotation time.Duration
	now      func() time.Time
}

// NewFingerprinter creates a fingerprinter with the given secret and salt
// rotation period. A zero rotation defaults to 48h (double the dedup window).
func NewFingerprinter(secret string, rotation time.Duration) *Fingerprinter {
	if rotation <= 0 {
		rotation = 48 * time.Hour
	}
	return &Fingerprinter{
		secret:   []byte(secret),
		rotation: rotation,
		now:      time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (f *Fingerprinter) WithClock(now func() time.Time) *Fingerprinter {
	f.now = now
	return f
}

// Fingerprint returns the opaque fingerprint for an IP / User-Agent pair.
// The result is stable within one salt rotation period.
func (f *Fingerprinter) Fingerprint(ip, userAgent string) string {
	bucket := f.now().UTC().UnixNano() / int64(f.rotation)

	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for oversized keys; nil key cannot fail.
		panic(err)
	}
	h.Write(f.secret)
	h.Write([]byte(strconv.FormatInt(bucket, 10)))
	h.Write([]byte{0})
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))

	sum := h.Sum(nil)
	return "anon-" + hex.EncodeToString(sum[:16])
}
