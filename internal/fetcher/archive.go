package fetcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// IsArchive reports whether the path looks like a supported archive.
func IsArchive(path string) bool {
	lower := strings.ToLower(path)
	for _, suffix := range []string{".zip", ".tar", ".tar.gz", ".tgz", ".tar.bz2"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// ExtractArchive unpacks the archive at path into destDir, dispatching on
// the file suffix. Returns the extracted file paths.
func ExtractArchive(path, destDir string) ([]string, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return ExtractZIP(path, destDir)
	case strings.HasSuffix(lower, ".tar"),
		strings.HasSuffix(lower, ".tar.gz"),
		strings.HasSuffix(lower, ".tgz"),
		strings.HasSuffix(lower, ".tar.bz2"):
		return ExtractTar(path, destDir)
	default:
		return nil, eris.Errorf("archive: unsupported format %s", filepath.Base(path))
	}
}

// Cleanup removes a scratch directory. A failure to delete is logged as a
// warning rather than propagated; the downloaded data has already been
// consumed by the time cleanup runs.
func Cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		zap.L().Warn("fetcher: scratch dir cleanup failed",
			zap.String("dir", dir),
			zap.Error(err))
	}
}

// CollapseSingleDir returns dir's sole subdirectory when the directory
// contains exactly one entry and that entry is a directory. Archives are
// often built around a single top-level folder; ingestion wants the folder
// with the data files as its root.
func CollapseSingleDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}
