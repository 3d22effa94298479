package parser

import (
	"encoding/hex"

	"github.com/minio/highwayhash"
)

var hashKey = []byte("trigconv-content-hash-key-000001")

// ContentHash returns a hex digest of content used to key cached analyses
// and recorded runs.
func ContentHash(content []byte) string {
	sum := highwayhash.Sum128(content, hashKey)
	return hex.EncodeToString(sum[:])
}
