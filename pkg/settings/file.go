package settings

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSource reads settings from a YAML file. The file is re-read whenever
// its modification time changes, so edits take effect on the next
// supervisor cycle. Keys other than radio and rotator are ignored, which
// lets the daemon config file double as the settings file.
type FileSource struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	snap    Snapshot
	loaded  bool
}

// NewFileSource creates a source for path. The file is not read until the
// first call to Current.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, snap: Defaults()}
}

// Path returns the settings file path.
func (f *FileSource) Path() string {
	return f.path
}

// Current returns the settings in the file. When the file cannot be read
// or parsed, the last good snapshot (initially Defaults) is returned
// together with the error.
func (f *FileSource) Current() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return f.snap, fmt.Errorf("settings: %w", err)
	}
	if f.loaded && info.ModTime().Equal(f.modTime) && info.Size() == f.size {
		return f.snap, nil
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return f.snap, fmt.Errorf("settings: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return f.snap, fmt.Errorf("settings: %s: %w", f.path, err)
	}

	f.snap = snap
	f.modTime = info.ModTime()
	f.size = info.Size()
	f.loaded = true
	return snap, nil
}

// Parse decodes YAML settings over Defaults and validates the result.
func Parse(data []byte) (Snapshot, error) {
	snap := Defaults()
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("YAML parse error: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Write stores snap at path as YAML.
func Write(path string, snap Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var _ Source = (*FileSource)(nil)
