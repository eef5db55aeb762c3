// Package local persists materialized audio to the local filesystem.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AltairaLabs/geminilive/audio"
	"github.com/AltairaLabs/geminilive/logger"
)

// Organization determines how files are laid out under BaseDir.
type Organization string

const (
	// OrganizationFlat writes every file directly into BaseDir.
	OrganizationFlat Organization = "flat"

	// OrganizationBySession writes files into BaseDir/<session id>.
	OrganizationBySession Organization = "by-session"
)

const (
	// DefaultPrefix names model responses: gemini_live_response_<yyyyMMdd_HHmmss>.wav.
	DefaultPrefix = "gemini_live_response"

	timestampLayout = "20060102_150405"
	wavExt          = ".wav"
	metaExt         = ".meta"
)

// FileStoreConfig configures the local filesystem storage backend.
type FileStoreConfig struct {
	// BaseDir is the root directory for audio files.
	BaseDir string

	// Organization determines directory layout. Defaults to OrganizationFlat.
	Organization Organization

	// Prefix is the file name prefix. Defaults to DefaultPrefix.
	Prefix string

	// WriteMetadata stores a JSON sidecar next to each file.
	WriteMetadata bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Metadata describes a stored WAV file.
type Metadata struct {
	SessionID  string        `json:"session_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	SampleRate int           `json:"sample_rate"`
	DataBytes  int           `json:"data_bytes"`
	Duration   time.Duration `json:"duration_ns"`
}

// FileStore writes timestamped WAV files.
type FileStore struct {
	config FileStoreConfig

	// mu serializes name selection so two saves in the same second never collide.
	mu sync.Mutex
}

// NewFileStore creates a new local filesystem storage backend.
func NewFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	if config.Organization == "" {
		config.Organization = OrganizationFlat
	}
	if config.Prefix == "" {
		config.Prefix = DefaultPrefix
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &FileStore{config: config}, nil
}

// SaveWAV writes a complete WAV file and returns its path. The name carries the
// current local time; a numeric suffix is added when that name is taken.
func (fs *FileStore) SaveWAV(ctx context.Context, sessionID string, wav []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	header, err := audio.ParseWAVHeader(wav)
	if err != nil {
		return "", fmt.Errorf("refusing to store invalid audio: %w", err)
	}

	dir, err := fs.dirFor(sessionID)
	if err != nil {
		return "", err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	now := fs.config.Now()
	path := fs.uniquePath(dir, now)
	if err := fs.validatePath(path); err != nil {
		return "", err
	}

	if err := writeFileAtomic(path, wav); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	if fs.config.WriteMetadata {
		meta := Metadata{
			SessionID:  sessionID,
			CreatedAt:  now,
			SampleRate: header.SampleRate,
			DataBytes:  int(header.DataSize),
		}
		if header.ByteRate > 0 {
			meta.Duration = time.Duration(float64(header.DataSize) / float64(header.ByteRate) * float64(time.Second))
		}
		if err := storeMetadata(path, &meta); err != nil {
			logger.Warn("Failed to write audio metadata", "path", path, "error", err)
		}
	}

	logger.DebugContext(ctx, "Stored audio", "path", path, "bytes", len(wav))
	return path, nil
}

// List returns the stored WAV files for sessionID, oldest name first.
// With flat organization every file in BaseDir is returned.
func (fs *FileStore) List(sessionID string) ([]string, error) {
	dir, err := fs.dirPath(sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), wavExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadMetadata reads the sidecar written for path.
func (fs *FileStore) LoadMetadata(path string) (*Metadata, error) {
	if err := fs.validatePath(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path + metaExt) //nolint:gosec // validated above
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (fs *FileStore) dirPath(sessionID string) (string, error) {
	if fs.config.Organization != OrganizationBySession || sessionID == "" {
		return fs.config.BaseDir, nil
	}
	dir := filepath.Join(fs.config.BaseDir, sessionID)
	if err := fs.validatePath(dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (fs *FileStore) dirFor(sessionID string) (string, error) {
	dir, err := fs.dirPath(sessionID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	return dir, nil
}

// uniquePath picks the first free name for now. Caller holds fs.mu.
func (fs *FileStore) uniquePath(dir string, now time.Time) string {
	base := fmt.Sprintf("%s_%s", fs.config.Prefix, now.Format(timestampLayout))
	path := filepath.Join(dir, base+wavExt)
	for i := 1; fileExists(path); i++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, wavExt))
	}
	return path
}

// validatePath checks that the given path is within the base directory.
func (fs *FileStore) validatePath(path string) error {
	absBase, err := filepath.Abs(fs.config.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase = filepath.Clean(absBase)
	absPath = filepath.Clean(absPath)

	if !strings.HasPrefix(absPath+string(filepath.Separator), absBase+string(filepath.Separator)) {
		return fmt.Errorf("path %q is outside base directory %q", path, fs.config.BaseDir)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// writeFileAtomic writes to a temporary file, then renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

func storeMetadata(path string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path+metaExt, data, 0o600)
}
