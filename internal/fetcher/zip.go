package fetcher

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// maxEntryBytes bounds a single decompressed archive member.
var maxEntryBytes int64 = 8 << 30

// ExtractZIP unpacks every regular member of a dataset archive into destDir
// and returns the written paths in archive order. macOS resource forks are
// skipped.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var written []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || isResourceFork(f.Name) {
			continue
		}
		dest, err := entryPath(destDir, f.Name)
		if err != nil {
			return written, err
		}
		if err := writeEntry(f, dest); err != nil {
			return written, err
		}
		written = append(written, dest)
	}
	return written, nil
}

func isResourceFork(name string) bool {
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._")
}

// entryPath maps a member name under destDir, rejecting names that escape it.
func entryPath(destDir, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", eris.Errorf("zip: unsafe member path %q (zip slip)", name)
	}
	return filepath.Join(destDir, rel), nil
}

func writeEntry(f *zip.File, dest string) error {
	if f.UncompressedSize64 > uint64(maxEntryBytes) {
		return eris.Errorf("zip: member %q is larger than %d bytes", f.Name, maxEntryBytes)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open member %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "zip: create file")
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxEntryBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return eris.Wrapf(err, "zip: write %s", dest)
	}
	if n > maxEntryBytes {
		return eris.Errorf("zip: member %q is larger than %d bytes", f.Name, maxEntryBytes)
	}
	return nil
}

// FindByExt returns the first regular file under dir whose name ends in ext,
// searching subdirectories too. Shapefile archives often nest their members.
func FindByExt(dir, ext string) (string, error) {
	var found string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ext) {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrap(err, "zip: walk extracted files")
	}
	if found == "" {
		return "", eris.Errorf("zip: no %s file found in %s", ext, dir)
	}
	return found, nil
}
