package transfer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/parley-dev/parley/pkg/protocol"
)

// ErrNotFound is returned when a spool file does not exist or was
// already claimed.
var ErrNotFound = errors.New("transfer: file not found")

// ErrTooLarge is returned when a file exceeds the size limit.
var ErrTooLarge = errors.New("transfer: file too large")

// Store is a spool backend. Implementations hold files between the
// HTTP upload and the claiming session task.
type Store interface {
	// Save spools the file and returns its spool ID.
	Save(filename string, contentType string, size int64, r io.Reader) (spoolID string, err error)

	// Claim retrieves and consumes a spool file. A second claim of the
	// same ID returns ErrNotFound.
	Claim(spoolID string) (*File, error)

	// Cleanup removes spool files older than maxAge.
	Cleanup(maxAge time.Duration) error
}

// File is a claimed spool file.
type File struct {
	// ID is the spool identifier.
	ID string

	// Filename is the original filename from the client.
	Filename string

	// ContentType is the MIME type of the file.
	ContentType string

	// Size is the file size in bytes.
	Size int64

	// Path is the local filesystem path when the backend is disk.
	Path string

	// URL is a direct-access URL for remote backends, when available.
	URL string

	// Reader streams the file contents. Closing it releases the spool
	// file.
	Reader io.ReadCloser
}

// Close closes the file reader if open.
func (f *File) Close() error {
	if f.Reader != nil {
		return f.Reader.Close()
	}
	return nil
}

// Config holds configuration for the transfer handler.
type Config struct {
	// MaxFileSize is the maximum allowed file size in bytes.
	// Default: 10MB.
	MaxFileSize int64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize: 10 * 1024 * 1024,
	}
}

// Handler returns the HTTP endpoint clients POST files to. It expects
// a multipart form with a "file" field and responds with JSON:
//
//	{"spool_id": "abc123"}
func Handler(store Store) http.Handler {
	return HandlerWithConfig(store, DefaultConfig())
}

// HandlerWithConfig returns a transfer handler with custom
// configuration.
func HandlerWithConfig(store Store, config *Config) http.Handler {
	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultConfig().MaxFileSize
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Bound the body before parsing so an oversized upload cannot
		// spool unbounded form data.
		r.Body = http.MaxBytesReader(w, r.Body, maxSize)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "malformed form", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "no file provided", http.StatusBadRequest)
			return
		}
		defer file.Close()

		spoolID, err := store.Save(
			header.Filename,
			header.Header.Get("Content-Type"),
			header.Size,
			file,
		)
		if err != nil {
			if errors.Is(err, ErrTooLarge) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "spool failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"spool_id": spoolID})
	})
}

// FromEvent claims the spool file referenced by an upload event. The
// client sends {"event":"upload","data":{"spool_id":"..."}} after a
// successful POST.
func FromEvent(store Store, ev protocol.Event) (*File, error) {
	data, ok := ev.Data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("transfer: event %q carries no spool data", ev.Kind)
	}
	id, _ := data["spool_id"].(string)
	if id == "" {
		return nil, fmt.Errorf("transfer: event %q carries no spool_id", ev.Kind)
	}
	return store.Claim(id)
}

// StartCleanup removes expired spool files every interval until the
// returned stop function is called.
func StartCleanup(store Store, interval, maxAge time.Duration, logger *slog.Logger) (stop func()) {
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := store.Cleanup(maxAge); err != nil {
					logger.Warn("spool cleanup failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
