package fetcher

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractTar extracts a tar archive (optionally gzip or bzip2 compressed,
// chosen by file suffix) to the destination directory. Returns the list of
// extracted file paths.
func ExtractTar(tarPath, destDir string) ([]string, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, eris.Wrap(err, "tar: open archive")
	}
	defer f.Close() //nolint:errcheck

	var src io.Reader = f
	lower := strings.ToLower(tarPath)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, eris.Wrap(err, "tar: gzip reader")
		}
		defer gz.Close() //nolint:errcheck
		src = gz
	case strings.HasSuffix(lower, ".tar.bz2"):
		src = bzip2.NewReader(f)
	}

	tr := tar.NewReader(src)
	var extracted []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return extracted, nil
		}
		if err != nil {
			return extracted, eris.Wrap(err, "tar: read header")
		}

		destPath, err := sanitizeEntryPath(destDir, hdr.Name)
		if err != nil {
			return extracted, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return extracted, eris.Wrap(err, "tar: create directory")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
				return extracted, eris.Wrap(err, "tar: create parent directory")
			}
			out, err := os.Create(destPath)
			if err != nil {
				return extracted, eris.Wrap(err, "tar: create file")
			}
			if _, err := io.Copy(out, tr); err != nil { //nolint:gosec
				_ = out.Close()
				return extracted, eris.Wrap(err, "tar: write file")
			}
			if err := out.Close(); err != nil {
				return extracted, eris.Wrap(err, "tar: close file")
			}
			extracted = append(extracted, destPath)
		default:
			// symlinks and special files are skipped
		}
	}
}
