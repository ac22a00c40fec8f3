package document

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashSource returns the hex BLAKE3-256 digest of a document source.
func HashSource(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifySource reports whether data matches the hash recorded at load.
func (s *State) VerifySource(data []byte) bool {
	return s.Metadata.SourceHash != "" && s.Metadata.SourceHash == HashSource(data)
}
