package transfer

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DiskStore spools files on the local filesystem. Metadata lives in a
// sidecar file next to each spool file, so claims survive a restart.
type DiskStore struct {
	dir     string
	maxSize int64

	mu    sync.Mutex
	files map[string]*spoolMeta
}

type spoolMeta struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewDiskStore creates a DiskStore rooted at dir, creating it if
// needed. maxSize of 0 means no limit.
func NewDiskStore(dir string, maxSize int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{
		dir:     dir,
		maxSize: maxSize,
		files:   make(map[string]*spoolMeta),
	}, nil
}

// Save spools the file and returns its spool ID.
func (s *DiskStore) Save(filename, contentType string, size int64, r io.Reader) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}

	id := newSpoolID()
	path := filepath.Join(s.dir, id)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := r
	if s.maxSize > 0 {
		// One extra byte so an at-limit overflow is detectable.
		reader = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(f, reader)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if s.maxSize > 0 && written > s.maxSize {
		os.Remove(path)
		return "", ErrTooLarge
	}

	meta := &spoolMeta{
		Filename:    filename,
		ContentType: contentType,
		Size:        written,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.files[id] = meta
	s.mu.Unlock()
	s.writeMeta(id, meta)

	return id, nil
}

// Claim retrieves and consumes a spool file. The file is removed from
// disk when the returned reader is closed.
func (s *DiskStore) Claim(spoolID string) (*File, error) {
	// Spool IDs are hex; anything else cannot name a path under dir.
	if strings.ContainsAny(spoolID, `/\.`) || spoolID == "" {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	meta, ok := s.files[spoolID]
	delete(s.files, spoolID)
	s.mu.Unlock()

	if !ok {
		// The spool may predate this process.
		var err error
		meta, err = s.readMeta(spoolID)
		if err != nil {
			return nil, ErrNotFound
		}
	}

	path := filepath.Join(s.dir, spoolID)
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrNotFound
	}

	// A claim consumes the spool, so drop the sidecar now.
	os.Remove(s.metaPath(spoolID))

	return &File{
		ID:          spoolID,
		Filename:    meta.Filename,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		Path:        path,
		Reader:      &removeOnClose{File: f, path: path},
	}, nil
}

// Cleanup removes spool files older than maxAge, including orphans
// left by earlier processes.
func (s *DiskStore) Cleanup(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	for id, meta := range s.files {
		if meta.CreatedAt.Before(cutoff) {
			delete(s.files, id)
			os.Remove(filepath.Join(s.dir, id))
			os.Remove(s.metaPath(id))
		}
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
	return nil
}

func (s *DiskStore) metaPath(spoolID string) string {
	return filepath.Join(s.dir, spoolID+".meta")
}

func (s *DiskStore) writeMeta(spoolID string, meta *spoolMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(spoolID), data, 0o644)
}

func (s *DiskStore) readMeta(spoolID string) (*spoolMeta, error) {
	data, err := os.ReadFile(s.metaPath(spoolID))
	if err != nil {
		return nil, err
	}
	var meta spoolMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// newSpoolID generates a cryptographically random spool ID.
func newSpoolID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// removeOnClose deletes the spool file once the claimed reader is
// closed.
type removeOnClose struct {
	*os.File
	path string
}

func (r *removeOnClose) Close() error {
	err := r.File.Close()
	os.Remove(r.path)
	return err
}
