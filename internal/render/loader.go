package render

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Loader resolves a template name to its text.
type Loader interface {
	Load(ctx context.Context, name string) (string, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, name string) (string, error)

func (f LoaderFunc) Load(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// Store is an in-memory, concurrency-safe template registry.
type Store struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewStore creates a store seeded with templates.
func NewStore(templates map[string]string) *Store {
	s := &Store{templates: make(map[string]string, len(templates))}
	for name, text := range templates {
		s.templates[name] = text
	}
	return s
}

// Load implements Loader.
func (s *Store) Load(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return text, nil
}

// Put registers or replaces a template.
func (s *Store) Put(name, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[name] = text
}

// Delete removes a template and reports whether it existed.
func (s *Store) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[name]; !ok {
		return false
	}
	delete(s.templates, name)
	return true
}

// Names returns the registered names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
