// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all
// files ending with the specified extension. Results come back sorted so
// callers get a stable declaration order across directories.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}
	return find(rootPath, func(d fs.DirEntry) bool {
		return strings.HasSuffix(d.Name(), extension)
	})
}

// FindNamedFiles recursively searches the given root path for files whose
// base name matches name exactly, sorted by path. It is how conventional
// module directories are discovered.
func FindNamedFiles(rootPath string, name string) ([]string, error) {
	if name == "" {
		panic("name must not be empty")
	}
	return find(rootPath, func(d fs.DirEntry) bool {
		return d.Name() == name
	})
}

func find(rootPath string, match func(fs.DirEntry) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && match(d) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
