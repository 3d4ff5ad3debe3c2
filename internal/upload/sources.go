package upload

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source is one file of an upload batch.
type Source struct {
	// Name is the file name the entry gets in the backend.
	Name string
	// RelativePath is the slash-separated path below the drop point,
	// including Name. Empty for flat uploads.
	RelativePath string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// Dir returns the slash-separated folder part of RelativePath, or "" when
// the file goes straight into the target folder.
func (s Source) Dir() string {
	if s.RelativePath == "" {
		return ""
	}
	dir := path.Dir(s.RelativePath)
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.Trim(dir, "/")
}

// FileSource builds a source for a local file with a flat name.
func FileSource(p string) (Source, error) {
	info, err := os.Stat(p)
	if err != nil {
		return Source{}, err
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", p)
	}
	return localSource(p, info.Name(), "", info.Size()), nil
}

func localSource(p, name, rel string, size int64) Source {
	return Source{
		Name:         name,
		RelativePath: rel,
		Size:         size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(p)
		},
	}
}

// WalkOptions configures SourcesFromPaths.
type WalkOptions struct {
	// IncludeHidden includes dot files and dot directories.
	IncludeHidden bool
}

// SourcesFromPaths builds sources from local paths. Plain files keep a flat
// name; a directory contributes every regular file below it with a relative
// path that starts with the directory's own name.
func SourcesFromPaths(paths []string, opts WalkOptions) ([]Source, error) {
	var sources []Source
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			sources = append(sources, localSource(p, info.Name(), "", info.Size()))
			continue
		}

		root := filepath.Clean(p)
		base := filepath.Base(root)
		err = filepath.WalkDir(root, func(fp string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable entry, skip it
				return nil
			}
			if fp != root && !opts.IncludeHidden && isHiddenName(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return nil
			}
			rel, err := filepath.Rel(root, fp)
			if err != nil {
				return err
			}
			relPath := path.Join(base, filepath.ToSlash(rel))
			sources = append(sources, localSource(fp, d.Name(), relPath, fi.Size()))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	return sources, nil
}

// isHiddenName reports dot files. "." and ".." are not hidden.
func isHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
