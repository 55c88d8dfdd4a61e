package pipeline

import (
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// writeAtomic writes text verbatim to a temp file next to path and renames it
// into place, so readers see either the old file or the complete new one.
func writeAtomic(fs afero.Fs, path, text string) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}

	tmp, err := afero.TempFile(fs, dir, ".pagedigest-*.tmp")
	if err != nil {
		return eris.Wrap(err, "pipeline: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return eris.Wrap(err, "pipeline: write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return eris.Wrap(err, "pipeline: close temp file")
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil {
		_ = fs.Remove(tmpName)
		return eris.Wrap(err, "pipeline: chmod temp file")
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return eris.Wrapf(err, "pipeline: rename to %s", path)
	}
	return nil
}

