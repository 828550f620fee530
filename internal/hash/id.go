// Package hash computes the 64-bit fingerprints used to detect signal index cache generations.
package hash

import (
	"github.com/cespare/xxhash/v2"
)

// Bytes returns the xxHash64 of data.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// String returns the xxHash64 of s.
func String(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Digest accumulates a fingerprint over several writes.
type Digest struct {
	d *xxhash.Digest
}

// NewDigest starts an empty fingerprint.
func NewDigest() Digest {
	return Digest{d: xxhash.New()}
}

// Write adds data to the fingerprint.
func (d Digest) Write(data []byte) {
	_, _ = d.d.Write(data)
}

// WriteString adds s to the fingerprint.
func (d Digest) WriteString(s string) {
	_, _ = d.d.WriteString(s)
}

// Sum returns the fingerprint of everything written so far.
func (d Digest) Sum() uint64 {
	return d.d.Sum64()
}
