package contenthash

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/zeebo/blake3"
)

// domainKey is a 32-byte key for BLAKE3 keyed hashing. The same fields
// hashed under different keys never collide across identity kinds.
type domainKey [32]byte

// Domain keys are the ASCII domain name zero-padded to 32 bytes.
// Changing them changes every record and chunk id.
var (
	recordDomainKey = domainKey{
		'l', 'e', 'x', 'c', 'o', 'r', 'p', 'u', 's', '.', 'r', 'e', 'c', 'o', 'r', 'd',
	}

	chunkDomainKey = domainKey{
		'l', 'e', 'x', 'c', 'o', 'r', 'p', 'u', 's', '.', 'c', 'h', 'u', 'n', 'k',
	}
)

// RecordID derives a record identity from its provenance. partKey is empty
// for files that yield a single record, and names the row or archive member
// otherwise.
func RecordID(source, relativePath, byteHash, partKey string) string {
	return keyedHex(recordDomainKey, source, relativePath, byteHash, partKey)
}

// ChunkID derives a chunk identity from its record and offsets.
func ChunkID(recordID string, charStart, charEnd int) string {
	return keyedHex(chunkDomainKey, recordID, strconv.Itoa(charStart), strconv.Itoa(charEnd))
}

// keyedHex hashes length-prefixed fields so that ("ab","c") and ("a","bc")
// produce different ids.
func keyedHex(key domainKey, fields ...string) string {
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("contenthash: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var length [8]byte
	for _, field := range fields {
		binary.BigEndian.PutUint64(length[:], uint64(len(field)))
		h.Write(length[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil))
}
