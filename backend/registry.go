package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Options carries the settings a store constructor may need.
type Options struct {
	SQLitePath string // database file for the sqlite store
}

// Constructor opens a Store.
type Constructor func(opts Options) (Store, error)

// registration holds a constructor with its priority
type registration struct {
	constructor Constructor
	priority    int
}

// Global registry of store constructors
var (
	registryMu    sync.RWMutex
	registrations = make(map[string]registration)
)

// Register registers a store constructor.
// Stores should call this in their init() function.
func Register(name string, constructor Constructor) {
	RegisterWithPriority(name, constructor, 100) // Default priority
}

// RegisterWithPriority registers a store constructor with a priority.
// Lower priority numbers are preferred (sqlite=10, mock=100).
func RegisterWithPriority(name string, constructor Constructor, priority int) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registrations[name] = registration{
		constructor: constructor,
		priority:    priority,
	}
}

// Registered returns the names of all registered stores ordered by priority.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registrations))
	for name := range registrations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := registrations[names[i]].priority, registrations[names[j]].priority
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j]
	})
	return names
}

// ClearRegistrations removes all registered constructors.
// This is primarily used for testing.
func ClearRegistrations() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registrations = make(map[string]registration)
}

// OpenResult reports which store was opened and why a fallback happened.
type OpenResult struct {
	Store       Store
	Name        string
	FallbackErr error // error of the preferred store when a fallback was used
}

// Open opens the named store. When it fails and fallback names another
// registered store, that store is opened instead and the first error is
// kept in FallbackErr.
func Open(name, fallback string, opts Options) (*OpenResult, error) {
	registryMu.RLock()
	reg, ok := registrations[name]
	fb, fbOK := registrations[fallback]
	registryMu.RUnlock()

	var primaryErr error
	if ok {
		store, err := reg.constructor(opts)
		if err == nil {
			return &OpenResult{Store: store, Name: name}, nil
		}
		primaryErr = fmt.Errorf("open %s store: %w", name, err)
	} else {
		primaryErr = fmt.Errorf("unknown store: %s", name)
	}

	if fallback == "" || fallback == name || !fbOK {
		return nil, primaryErr
	}

	store, err := fb.constructor(opts)
	if err != nil {
		return nil, fmt.Errorf("%v; fallback %s: %w", primaryErr, fallback, err)
	}
	return &OpenResult{Store: store, Name: fallback, FallbackErr: primaryErr}, nil
}
