// Package fingerprint computes content digests used to decide whether a file
// changed since the last deployment. The digest is the dedup gate: it must be
// consulted before any upload is issued for a path.
package fingerprint

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
)

// Sum returns the hex-encoded BLAKE3-256 digest of data.
func Sum(data []byte) string {
	digest := blake3.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// Changed reports whether the file at path must be uploaded: true when the
// manifest has no record for the path, when the stored digest differs, or
// when the record has no usable remote URL to reuse.
func Changed(manifest domain.AssetManifest, path, digest string) bool {
	record, ok := manifest[path]
	if !ok {
		return true
	}
	if record.Digest != digest {
		return true
	}
	return record.SecureURL == ""
}
