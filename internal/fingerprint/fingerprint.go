// Package fingerprint computes content digests used to detect file changes
// between ingestion runs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
)

// Fingerprint is a stable snapshot of a file's content and metadata.
// Two files with equal Hash have identical bytes; Size and ModTime are
// informational and not part of the change decision.
type Fingerprint struct {
	Hash    string
	Size    int64
	ModTime time.Time
}

// Compute streams the file and returns its SHA-256 digest plus size and
// modification time. The hash is a change detector, not a security boundary.
func Compute(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, eris.Wrapf(err, "fingerprint: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, eris.Wrapf(err, "fingerprint: read %s", path)
	}

	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, eris.Wrapf(err, "fingerprint: stat %s", path)
	}

	return Fingerprint{
		Hash:    hex.EncodeToString(h.Sum(nil)),
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}
