package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks every entry of the archive into destDir and returns
// the file paths written. TIGER block archives ship a shapefile with its
// sidecars (.shp, .shx, .dbf, .prj) and the reader needs the whole set.
// Entry names must stay inside destDir.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	archive, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer archive.Close() //nolint:errcheck

	root := filepath.Clean(destDir)
	var written []string
	for _, entry := range archive.File {
		target := filepath.Join(root, entry.Name)
		rel, err := filepath.Rel(root, target)
		if err != nil || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(os.PathSeparator) {
			return written, eris.Errorf("zip: entry %q escapes the extract dir", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, eris.Wrapf(err, "zip: mkdir %s", target)
			}
			continue
		}
		if err := writeEntry(entry, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}
	return written, nil
}

func writeEntry(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return eris.Wrapf(err, "zip: mkdir for %s", target)
	}
	src, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", entry.Name)
	}
	defer src.Close() //nolint:errcheck

	dst, err := os.Create(target)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", target)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return eris.Wrapf(err, "zip: write %s", target)
	}
	return eris.Wrapf(dst.Close(), "zip: close %s", target)
}
