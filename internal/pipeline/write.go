package pipeline

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/hui-cli/internal/model"
)

// WriteTable persists the finalized table to every path, atomically per
// path (temp file + rename) and all-or-nothing across paths: if any write
// fails, paths already written in this call are removed so no location is
// left holding output the others lack.
func WriteTable(table *model.Table, paths ...string) error {
	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		return eris.Wrap(err, "pipeline: encode table")
	}

	var written []string
	for _, path := range paths {
		if err := writeAtomic(path, buf.Bytes()); err != nil {
			for _, w := range written {
				_ = os.Remove(w)
			}
			return eris.Wrapf(err, "pipeline: write %s", path)
		}
		written = append(written, path)
	}
	return nil
}

// writeAtomic writes via a temp file in the target directory so the rename
// never crosses filesystems and a crash leaves no partial file at path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "rename into place")
	}
	return nil
}
