// Package rom loads program images from disk. Raw images are used as is and
// assembly sources are assembled on the fly.
package rom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
)

// validFilename is the regex for file names accepted into a catalog.
var validFilename = regexp.MustCompile(`^[a-zA-Z0-9_\-]{1,32}(\.[a-zA-Z0-9]{1,5})?$`)

var (
	ErrNotFound    = errors.New("rom not found")
	ErrInvalidName = errors.New("invalid rom name")
	ErrTooLarge    = errors.New("rom too large")
	ErrEmpty       = errors.New("rom is empty")
)

// file extensions and how they are decoded
var (
	rawExtensions = map[string]struct{}{
		"":     {},
		".ch8": {},
		".c8":  {},
		".bin": {},
	}
	sourceExtensions = map[string]struct{}{
		".asm":   {},
		".c8asm": {},
	}
)

// Entry describes one ROM of a catalog.
type Entry struct {
	Name     string
	Size     int
	Modified time.Time
}

type file struct {
	data     []byte
	modified time.Time
}

// Library is an in-memory set of ROM files keyed by name.
type Library struct {
	mu    sync.RWMutex
	files map[string]*file
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{
		files: make(map[string]*file),
	}
}

// Load reads the file at path and returns its program image.
func Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading rom: %w", err)
	}
	return Decode(filepath.Base(path), data)
}

// Decode turns file contents into a program image based on the extension of
// name. The image is checked against the program capacity.
func Decode(name string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(name))

	var image []byte
	switch {
	case isSource(ext):
		program, _, err := asm.Assemble(string(data))
		if err != nil {
			return nil, fmt.Errorf("assembling %s: %w", name, err)
		}
		image = program
	case isRaw(ext):
		image = data
	default:
		return nil, fmt.Errorf("%w: unsupported extension '%s'", ErrInvalidName, ext)
	}

	if len(image) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	if len(image) > cpu.MaxProgramSize {
		capErr := &cpu.CapacityError{Size: len(image), Limit: cpu.MaxProgramSize}
		return nil, fmt.Errorf("%w: %s: %w", ErrTooLarge, name, capErr)
	}
	return image, nil
}

// Catalog returns the ROMs found in dir sorted by name.
func Catalog(dir string) ([]Entry, error) {
	lib := NewLibrary()
	if err := lib.LoadFrom(dir); err != nil {
		return nil, err
	}
	return lib.List(), nil
}

// LoadFrom adds every ROM file of the given host directory. Files with
// invalid names or unknown extensions are skipped silently.
func (l *Library) LoadFrom(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !validName(name) {
			continue
		}

		fullPath := filepath.Join(dir, name)
		raw, err := os.ReadFile(fullPath)
		if err != nil {
			continue
		}

		f := &file{
			data:     raw,
			modified: time.Now(),
		}
		if info, err := entry.Info(); err == nil {
			f.modified = info.ModTime()
		}
		l.files[name] = f
	}

	return nil
}

// Add stores data under name, replacing any existing file.
func (l *Library) Add(name string, data []byte) error {
	if !validName(name) {
		return fmt.Errorf("%w: %s", ErrInvalidName, name)
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[name] = &file{
		data:     buf,
		modified: time.Now(),
	}
	return nil
}

// Image returns the decoded program image of the named ROM.
func (l *Library) Image(name string) ([]byte, error) {
	if !validFilename.MatchString(name) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}

	l.mu.RLock()
	f, ok := l.files[name]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return Decode(name, f.data)
}

// List returns all entries sorted by name.
func (l *Library) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]Entry, 0, len(l.files))
	for name, f := range l.files {
		entries = append(entries, Entry{
			Name:     name,
			Size:     len(f.data),
			Modified: f.modified,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries
}

func validName(name string) bool {
	if !validFilename.MatchString(name) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return isRaw(ext) || isSource(ext)
}

func isRaw(ext string) bool {
	_, ok := rawExtensions[ext]
	return ok
}

func isSource(ext string) bool {
	_, ok := sourceExtensions[ext]
	return ok
}
