// Package archive gives access to documents packed into zip based
// containers (EPUB, zipped FB2, plain zip). Entries are addressed as
// "container!/path/inside".
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Separator splits container path from entry name.
const Separator = "!/"

// ErrNotFound is returned when requested entry is absent from the container.
var ErrNotFound = errors.New("entry not found")

// WalkFunc is called for each file in container visited by Walk. If an error
// is returned, processing stops.
type WalkFunc func(container string, file *zip.File) error

// Walk calls walkFn for every regular file in container whose name satisfies
// match, nil match selects everything. Entries with absolute names or ".."
// components fail the walk.
func Walk(container string, match func(name string) bool, walkFn WalkFunc) error {
	r, err := zip.OpenReader(container)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if f.FileInfo().IsDir() || (match != nil && !match(name)) {
			continue
		}
		if err := walkFn(container, f); err != nil {
			return err
		}
	}
	return nil
}

// Split separates "container!/entry" into its parts. Entry is cleaned and
// always uses forward slashes.
func Split(name string) (container, entry string, ok bool) {
	i := strings.Index(name, Separator)
	if i <= 0 {
		return "", "", false
	}
	entry = path.Clean(strings.ReplaceAll(name[i+len(Separator):], `\`, "/"))
	if entry == "." || !isSafePath(entry) {
		return "", "", false
	}
	return name[:i], entry, true
}

// Join builds name addressing entry inside container.
func Join(container, entry string) string {
	return container + Separator + strings.TrimPrefix(entry, "/")
}

// Resolve returns name of href relative to document name, staying inside
// container for container entries.
func Resolve(name, href string) string {
	if container, entry, ok := Split(name); ok {
		return Join(container, path.Join(path.Dir(entry), href))
	}
	return filepath.Join(filepath.Dir(name), filepath.FromSlash(href))
}

// ReadEntry returns content of a single entry.
func ReadEntry(container, entry string) ([]byte, error) {
	var data []byte
	found := false
	err := Walk(container, func(name string) bool { return name == entry }, func(_ string, f *zip.File) error {
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		if data, err = io.ReadAll(rc); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%s in %s: %w", entry, container, ErrNotFound)
	}
	return data, nil
}

// ReadFile reads either regular file or container entry when name has
// "container!/entry" form.
func ReadFile(name string) ([]byte, error) {
	if container, entry, ok := Split(name); ok {
		return ReadEntry(container, entry)
	}
	return os.ReadFile(name)
}

// isSafePath returns false for absolute paths and those containing ".."
// components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
