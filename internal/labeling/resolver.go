package labeling

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultImageExtension is appended to references that carry no extension.
const DefaultImageExtension = ".png"

// ImageIndex maps lower-cased file names to the first file carrying that
// name in a directory tree. It is built once per job; lookups are
// behaviorally identical to walking the tree for every record.
type ImageIndex struct {
	root   string
	byName map[string]string
	files  int
}

// BuildImageIndex walks root in lexical order. When several files share a
// name (ignoring case) the first one encountered wins. An empty root yields
// an empty index.
func BuildImageIndex(root string) (*ImageIndex, error) {
	ix := &ImageIndex{root: root, byName: make(map[string]string)}
	if strings.TrimSpace(root) == "" {
		return ix, nil
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat image directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("image directory %s is not a directory", root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		ix.files++
		key := strings.ToLower(d.Name())
		if _, seen := ix.byName[key]; !seen {
			ix.byName[key] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk image directory: %w", err)
	}
	return ix, nil
}

// Files is the number of regular files seen while indexing.
func (ix *ImageIndex) Files() int {
	return ix.files
}

// Resolve finds the file for a spreadsheet image reference.
func (ix *ImageIndex) Resolve(reference string) (string, bool) {
	name := NormalizeImageReference(reference)
	if name == "" {
		return "", false
	}
	path, ok := ix.byName[strings.ToLower(name)]
	return path, ok
}

// NormalizeImageReference reduces a reference to the file name to look for:
// surrounding blanks are trimmed, any directory part is dropped and
// DefaultImageExtension is appended when the name has no extension.
func NormalizeImageReference(reference string) string {
	ref := strings.TrimSpace(reference)
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		ref = strings.TrimSpace(ref[i+1:])
	}
	if ref == "" {
		return ""
	}
	if !strings.Contains(ref, ".") {
		ref += DefaultImageExtension
	}
	return ref
}
