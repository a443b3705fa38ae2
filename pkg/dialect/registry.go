package dialect

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed descriptions/*.yaml
var descriptions embed.FS

// Dialect registry
var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
)

// ErrDialectRequired is returned when a dialect is required but not provided.
var ErrDialectRequired = errors.New("dialect is required")

// UnknownDialectError is returned by MustGet-style lookups for unregistered names.
type UnknownDialectError struct {
	Name      string
	Available []string
}

func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("unknown dialect %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func init() {
	entries, err := descriptions.ReadDir("descriptions")
	if err != nil {
		panic(err)
	}
	for _, e := range entries {
		f, err := descriptions.Open(path.Join("descriptions", e.Name()))
		if err != nil {
			panic(err)
		}
		d, err := Load(f)
		_ = f.Close()
		if err != nil {
			panic(fmt.Sprintf("builtin dialect %s: %v", e.Name(), err))
		}
		Register(d)
	}
}

// Get returns a dialect by name.
func Get(name string) (*Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(name)]
	return d, ok
}

// Lookup is like Get but returns a typed error for unknown names.
func Lookup(name string) (*Dialect, error) {
	if name == "" {
		return nil, ErrDialectRequired
	}
	if d, ok := Get(name); ok {
		return d, nil
	}
	return nil, &UnknownDialectError{Name: name, Available: List()}
}

// Default returns the ANSI dialect.
func Default() *Dialect {
	d, _ := Get("ansi")
	return d
}

// Register registers a dialect in the global registry, replacing any
// dialect with the same name.
func Register(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(d.Name)] = d
}

// List returns all registered dialect names (sorted).
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
