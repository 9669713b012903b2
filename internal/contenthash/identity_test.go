package contenthash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordID_Stable(t *testing.T) {
	a := RecordID("bofip", "2024/doc.html", "abc", "")
	b := RecordID("bofip", "2024/doc.html", "abc", "")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestRecordID_ChangesWithEveryField(t *testing.T) {
	base := RecordID("bofip", "doc.html", "abc", "")
	assert.NotEqual(t, base, RecordID("legi", "doc.html", "abc", ""))
	assert.NotEqual(t, base, RecordID("bofip", "other.html", "abc", ""))
	assert.NotEqual(t, base, RecordID("bofip", "doc.html", "abd", ""))
	assert.NotEqual(t, base, RecordID("bofip", "doc.html", "abc", "row-1"))
}

func TestRecordID_LengthPrefixed(t *testing.T) {
	assert.NotEqual(t, RecordID("ab", "c", "h", ""), RecordID("a", "bc", "h", ""))
}

func TestChunkID(t *testing.T) {
	rec := RecordID("s", "p", "h", "")
	assert.Equal(t, ChunkID(rec, 0, 1500), ChunkID(rec, 0, 1500))
	assert.NotEqual(t, ChunkID(rec, 0, 1500), ChunkID(rec, 0, 1501))
	assert.NotEqual(t, ChunkID(rec, 1, 15), ChunkID(rec, 11, 5))
}

func TestDomainSeparation(t *testing.T) {
	// Same field values hashed as record and as chunk identities differ.
	assert.NotEqual(t, keyedHex(recordDomainKey, "x"), keyedHex(chunkDomainKey, "x"))
}
