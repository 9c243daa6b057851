// Package sink persists rendered source text under a logical file name.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	// ErrInvalidName indicates a name that is empty, absolute or escapes the
	// sink's root.
	ErrInvalidName = errors.New("sink: invalid file name")
)

// TimestampLayout names the per-run sub-directory created by WithTimestamp.
const TimestampLayout = "20060102-150405"

// Sink accepts rendered files. Implementations must be safe for concurrent
// use; distinct names are written independently.
type Sink interface {
	Write(ctx context.Context, name, text string) error
}

// Dir writes files below a root directory, creating parent directories as
// needed.
type Dir struct {
	root string
}

// DirOption configures a Dir.
type DirOption func(*Dir)

// WithTimestamp places every file in a sub-directory of the root named after
// t, so repeated runs do not overwrite each other.
func WithTimestamp(t time.Time) DirOption {
	return func(d *Dir) { d.root = filepath.Join(d.root, t.Format(TimestampLayout)) }
}

// NewDir creates a Dir rooted at root.
func NewDir(root string, opts ...DirOption) (*Dir, error) {
	if root == "" {
		return nil, fmt.Errorf("sink: output directory is required")
	}
	d := &Dir{root: root}
	for _, f := range opts {
		f(d)
	}
	return d, nil
}

// Root returns the directory files are written to.
func (d *Dir) Root() string { return d.root }

// Path returns the file path name is written to.
func (d *Dir) Path(name string) (string, error) {
	local := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, local), nil
}

func (d *Dir) Write(ctx context.Context, name, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fp, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return err
	}
	return os.WriteFile(fp, []byte(text), 0644)
}

// Memory keeps written files in memory.
type Memory struct {
	mu    sync.RWMutex
	files map[string]string
}

func NewMemory() *Memory { return &Memory{files: make(map[string]string)} }

func (m *Memory) Write(ctx context.Context, name, text string) error {
	if name == "" {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = text
	return nil
}

// Get returns the text written under name.
func (m *Memory) Get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.files[name]
	return text, ok
}

// Names returns the written names in sorted order.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for name := range m.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Stream writes every file to a single io.Writer, each preceded by a
// "// <name>" line. Files are written whole; concurrent writes never
// interleave.
type Stream struct {
	mu sync.Mutex
	w  io.Writer
	n  int
}

func NewStream(w io.Writer) *Stream { return &Stream{w: w} }

func (s *Stream) Write(ctx context.Context, name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sep := ""
	if s.n > 0 {
		sep = "\n"
	}
	if _, err := fmt.Fprintf(s.w, "%s// %s\n%s", sep, name, text); err != nil {
		return err
	}
	s.n++
	return nil
}
