package bionic

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileDocument is a Document backed by a user stylesheet file. The file
// exists exactly while a style is injected.
type FileDocument struct {
	url  *url.URL
	path string

	mu      sync.Mutex
	applyID string
}

var _ Document = (*FileDocument)(nil)

// NewFileDocument returns a document for the page at rawURL whose style is
// written to path.
func NewFileDocument(rawURL string, path string) (*FileDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing document url %s : %w", rawURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("document url %s is not absolute", rawURL)
	}
	return &FileDocument{url: u, path: path}, nil
}

// URL implements Document.
func (d *FileDocument) URL() *url.URL {
	return d.url
}

// Path returns the stylesheet file path.
func (d *FileDocument) Path() string {
	return d.path
}

// InjectStyle implements Document. The file is replaced atomically.
func (d *FileDocument) InjectStyle(css string) (Style, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	applyID := NewApplyID()
	content := fmt.Sprintf("/* %s %s=%s */\n%s\n", StyleElementID, ApplyAttribute, applyID, css)

	tmp, err := os.CreateTemp(filepath.Dir(d.path), "."+filepath.Base(d.path)+".*")
	if err != nil {
		return nil, fmt.Errorf("creating temp stylesheet : %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing stylesheet : %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing stylesheet : %w", err)
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return nil, fmt.Errorf("replacing stylesheet %s : %w", d.path, err)
	}

	d.applyID = applyID
	return &fileStyle{doc: d, applyID: applyID}, nil
}

type fileStyle struct {
	doc     *FileDocument
	applyID string
}

// Remove deletes the file unless a later style replaced it.
func (s *fileStyle) Remove() error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()

	if s.doc.applyID != s.applyID {
		return nil
	}
	s.doc.applyID = ""
	if err := os.Remove(s.doc.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stylesheet %s : %w", s.doc.path, err)
	}
	return nil
}
