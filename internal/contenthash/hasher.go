// Package contenthash computes the digests that identify raw files,
// corpus versions, records and chunks.
//
// Byte and corpus digests are SHA-256 so they match the sha256 hex
// digests connectors already publish in their own manifests. Derived
// identities (record and chunk ids) use BLAKE3 keyed hashing with a
// separate domain key per identity kind.
package contenthash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"slices"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Digest is a 256-bit content digest.
type Digest [Size]byte

// HashBytes streams r through SHA-256. I/O errors from r are returned as is.
func HashBytes(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Sum hashes an in-memory byte slice.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// HashSet combines digests into one. Inputs are sorted first, so the
// result never depends on filesystem traversal order.
func HashSet(digests []Digest) Digest {
	sorted := slices.Clone(digests)
	slices.SortFunc(sorted, func(a, b Digest) int {
		return bytes.Compare(a[:], b[:])
	})

	h := sha256.New()
	for _, d := range sorted {
		h.Write(d[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Hex returns the lowercase hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// Short returns the first n hex characters.
func (d Digest) Short(n int) string {
	s := d.Hex()
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest decodes a 64-character hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(raw) != Size {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", Size, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}
