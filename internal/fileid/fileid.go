// Package fileid derives stable knowledge document IDs for ingested files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const prefix = "file-"

// DocumentID returns the ID of the document ingested from path for a tenant.
// The path is taken relative to root, so re-ingesting the same tree from
// another checkout updates the existing documents instead of duplicating
// them. Paths outside root are used as given.
func DocumentID(tenantID, root, path string) string {
	key := filepath.Clean(path)
	if root != "" {
		if rel, err := filepath.Rel(filepath.Clean(root), key); err == nil && !strings.HasPrefix(rel, "..") {
			key = rel
		}
	}
	key = filepath.ToSlash(key)
	sum := sha256.Sum256([]byte(tenantID + "\x00" + key))
	return prefix + hex.EncodeToString(sum[:16])
}
