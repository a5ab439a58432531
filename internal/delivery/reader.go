package delivery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File is one entry returned by a DirectoryReader.
type File struct {
	Path string // full path usable with Read
	Name string // base name
}

// DirectoryReader lists and reads the files below a delivery storage
// directory. It is the only way the exporter touches compiled test content.
type DirectoryReader interface {
	// ListFiles returns the files at most depth levels below dir.
	ListFiles(dir string, depth int) ([]File, error)
	Read(f File) ([]byte, error)
}

// FSReader reads delivery storage from the local filesystem.
type FSReader struct{}

func (FSReader) ListFiles(dir string, depth int) ([]File, error) {
	root := filepath.Clean(dir)
	var files []File

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		level := len(strings.Split(filepath.ToSlash(rel), "/"))
		if d.IsDir() {
			if rel != "." && level > depth {
				return fs.SkipDir
			}
			return nil
		}
		if level <= depth {
			files = append(files, File{Path: path, Name: d.Name()})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	return files, nil
}

func (FSReader) Read(f File) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Path, err)
	}
	return data, nil
}
