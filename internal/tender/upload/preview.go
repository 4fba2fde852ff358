package upload

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Preview is a revocable local copy of a selected file.
type Preview interface {
	Path() string
	Release() error
}

// Previewer creates previews for selected files.
type Previewer interface {
	Open(key Key, file File) (Preview, error)
}

// TempPreviewer spools previews into a directory and deletes them on release.
type TempPreviewer struct {
	Dir string
}

func (p TempPreviewer) Open(key Key, file File) (Preview, error) {
	pattern := strings.ToLower(string(key.Stage)+"-"+key.FieldName) + "-*" + filepath.Ext(file.Name)
	f, err := os.CreateTemp(p.Dir, pattern)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(file.Content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return nil, err
	}
	return &tempPreview{path: f.Name()}, nil
}

type tempPreview struct {
	path string
	once sync.Once
	err  error
}

func (t *tempPreview) Path() string { return t.path }

// Release is idempotent.
func (t *tempPreview) Release() error {
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			t.err = err
		}
	})
	return t.err
}
