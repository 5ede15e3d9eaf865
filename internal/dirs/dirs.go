// Package dirs resolves the on-disk layout for run outputs. Each community
// gets its own directory under the output root, and every published file is
// mirrored into a shared directory so downstream tooling finds all
// communities in one place.
package dirs

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Layout resolves output paths under a single root.
type Layout struct {
	Root      string
	CommonDir string
}

// CommunityDir returns the directory for one community's outputs.
func (l Layout) CommunityDir(community string) string {
	return filepath.Join(l.Root, community)
}

// CommunityPath returns the run path for a community file.
func (l Layout) CommunityPath(community, filename string) string {
	return filepath.Join(l.Root, community, filename)
}

// CommonPath returns the shared mirror path for a file.
func (l Layout) CommonPath(filename string) string {
	return filepath.Join(l.Root, l.CommonDir, filename)
}

// Ensure creates the community and shared directories.
func (l Layout) Ensure(community string) error {
	for _, dir := range []string{l.CommunityDir(community), filepath.Join(l.Root, l.CommonDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "dirs: create %s", dir)
		}
	}
	return nil
}
