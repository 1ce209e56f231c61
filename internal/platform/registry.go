package platform

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// Opener connects to a backend.
type Opener func() (*Platform, error)

var (
	mu       sync.RWMutex
	backends = map[string]Opener{}
)

// Register makes a backend available by name. Backends call it from init.
func Register(name string, open Opener) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[name]; exists {
		panic(fmt.Sprintf("platform: backend %q registered twice", name))
	}
	backends[name] = open
}

// Names returns the registered backend names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the backend name for the running OS.
func Default() string {
	switch runtime.GOOS {
	case "windows":
		return "win32"
	default:
		return "x11"
	}
}

// Open connects to the named backend. An empty name selects Default().
func Open(name string) (*Platform, error) {
	if name == "" || name == "auto" {
		name = Default()
	}
	mu.RLock()
	open, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (available: %v)", name, Names())
	}
	p, err := open()
	if err != nil {
		return nil, fmt.Errorf("failed to open platform %q: %w", name, err)
	}
	return p, nil
}
