package gnss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
)

// ReplayReceiver plays back a recorded NMEA file, one RMC+GGA pair per
// Read, starting over at the end of the file.
type ReplayReceiver struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	data   []byte
	reader *sentenceReader
}

// NewReplay creates a receiver replaying the NMEA file at path.
func NewReplay(path string, logger *slog.Logger) *ReplayReceiver {
	return &ReplayReceiver{path: path, logger: logger}
}

func (r *ReplayReceiver) Name() string { return "replay:" + r.path }

// Connect loads the file into memory.
func (r *ReplayReceiver) Connect(_ context.Context) error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return domain.Tag(domain.ErrPermissionDenied, err)
		}
		return fmt.Errorf("read replay file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("replay file %s is empty", r.path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data
	r.reader = newSentenceReader(bytes.NewReader(data))
	r.logger.Info("gnss replay loaded", "path", r.path, "bytes", len(data))
	return nil
}

func (r *ReplayReceiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = nil
	r.reader = nil
	return nil
}

func (r *ReplayReceiver) Read(_ context.Context) (*domain.Fix, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader == nil {
		return nil, errors.New("gnss: replay not loaded")
	}

	fix, err := r.reader.next()
	if errors.Is(err, io.EOF) {
		r.logger.Debug("gnss replay looped", "path", r.path)
		r.reader.rewind(bytes.NewReader(r.data))
		fix, err = r.reader.next()
	}
	return fix, err
}
