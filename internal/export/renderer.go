package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Renderer accumulates CSV rows and persists them as one artifact.
type Renderer interface {
	AddRow(row []string) error
	// Render finalizes the artifact and returns its path.
	Render() (string, error)
}

// ArtifactStore persists finished export artifacts.
type ArtifactStore interface {
	OpenForWrite(path string) (io.WriteCloser, error)
	Exists(path string) (bool, error)
	Delete(path string) error
}

// FSArtifactStore stores artifacts below a base directory on the local
// filesystem.
type FSArtifactStore struct {
	Base string
}

func (s FSArtifactStore) OpenForWrite(path string) (io.WriteCloser, error) {
	full := filepath.Join(s.Base, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("creating artifact %s: %w", path, err)
	}
	return f, nil
}

func (s FSArtifactStore) Exists(path string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.Base, filepath.FromSlash(path)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s FSArtifactStore) Delete(path string) error {
	return os.Remove(filepath.Join(s.Base, filepath.FromSlash(path)))
}

// CSVRenderer buffers rows in a temporary file and copies the finished
// stream into the artifact store on Render.
type CSVRenderer struct {
	store     ArtifactStore
	path      string
	overwrite bool

	tmp *os.File
	w   *csv.Writer
}

// NewCSVRenderer prepares a renderer targeting path within store. With
// overwrite set, a pre-existing artifact is deleted before writing, which is
// what timestampless filenames rely on.
func NewCSVRenderer(store ArtifactStore, path string, overwrite bool) (*CSVRenderer, error) {
	tmp, err := os.CreateTemp("", "resultexport")
	if err != nil {
		return nil, fmt.Errorf("creating export temp file: %w", err)
	}
	return &CSVRenderer{
		store:     store,
		path:      path,
		overwrite: overwrite,
		tmp:       tmp,
		w:         csv.NewWriter(tmp),
	}, nil
}

func (r *CSVRenderer) AddRow(row []string) error {
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	return nil
}

func (r *CSVRenderer) Render() (string, error) {
	defer func() {
		name := r.tmp.Name()
		r.tmp.Close()
		os.Remove(name)
	}()

	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}

	if r.overwrite {
		exists, err := r.store.Exists(r.path)
		if err != nil {
			return "", err
		}
		if exists {
			if err := r.store.Delete(r.path); err != nil {
				return "", fmt.Errorf("deleting stale artifact %s: %w", r.path, err)
			}
		}
	}

	out, err := r.store.OpenForWrite(r.path)
	if err != nil {
		return "", err
	}
	if _, err := r.tmp.Seek(0, io.SeekStart); err != nil {
		out.Close()
		return "", fmt.Errorf("rewinding export temp file: %w", err)
	}
	if _, err := io.Copy(out, r.tmp); err != nil {
		out.Close()
		return "", fmt.Errorf("writing artifact %s: %w", r.path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing artifact %s: %w", r.path, err)
	}
	return r.path, nil
}

// StdoutRenderer streams CSV rows to a writer instead of the artifact
// store. Useful for piping an export without touching the filesystem.
type StdoutRenderer struct {
	w *csv.Writer
}

func NewStdoutRenderer(w io.Writer) *StdoutRenderer {
	return &StdoutRenderer{w: csv.NewWriter(w)}
}

func (r *StdoutRenderer) AddRow(row []string) error {
	if err := r.w.Write(row); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	return nil
}

func (r *StdoutRenderer) Render() (string, error) {
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return "", err
	}
	return "stdout", nil
}
