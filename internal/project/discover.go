// Package project analyzes every model file of a dbt project: it discovers
// the files, orders them by their ref() dependencies and resolves lineage
// in dependency order against the catalog.
package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is a model file. Name is the file stem, which is what ref() calls
// use to refer to the model.
type File struct {
	Path string
	Name string
}

// skipDirs are never searched for models.
var skipDirs = map[string]bool{
	"target":       true,
	"dbt_packages": true,
}

// Discover returns the model files under root with one of exts, sorted by
// path. Hidden directories, target/ and dbt_packages/ are skipped.
func Discover(root string, exts []string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
				return filepath.SkipDir
			}
			return nil
		}
		if HasExt(path, exts) {
			files = append(files, NewFile(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering models in %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Collect resolves command line paths to model files. Directories are
// discovered recursively; files are taken as given regardless of extension.
func Collect(paths []string, exts []string) ([]File, error) {
	seen := make(map[string]bool)
	var files []File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		var found []File
		if info.IsDir() {
			if found, err = Discover(p, exts); err != nil {
				return nil, err
			}
		} else {
			found = []File{NewFile(p)}
		}
		for _, f := range found {
			if abs, err := filepath.Abs(f.Path); err == nil {
				f.Path = abs
			}
			if !seen[f.Path] {
				seen[f.Path] = true
				files = append(files, f)
			}
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// NewFile names a model file after its stem.
func NewFile(path string) File {
	base := filepath.Base(path)
	return File{Path: path, Name: strings.TrimSuffix(base, filepath.Ext(base))}
}

// HasExt reports whether path ends in one of exts, ignoring case.
func HasExt(path string, exts []string) bool {
	ext := filepath.Ext(path)
	for _, want := range exts {
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}
