// Package session tracks the signed-in user and persists it between runs.
//
// A Session is the identity provider of the query layer: it reports the
// current username, whether the stored identity is still being restored, and
// pushes an Event to subscribers whenever either changes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"myday/backend"
	"myday/internal/utils"
)

// Event describes the identity after a change.
type Event struct {
	Username  string
	Resolving bool
}

// Provider exposes the current identity and pushes changes to subscribers.
type Provider interface {
	// Identity returns the signed-in username, or false when nobody is signed in.
	Identity() (string, bool)
	// Resolving reports whether the stored identity has not been restored yet.
	Resolving() bool
	// Subscribe registers fn for every identity change and returns a cancel func.
	// Implementations may call fn before Subscribe returns.
	Subscribe(fn func(Event)) (cancel func())
}

// Users is the part of backend.Store a Session needs.
type Users interface {
	GetUser(ctx context.Context, username string) (*backend.User, error)
	CreateUser(ctx context.Context, user backend.User) (*backend.User, error)
}

// fileData is the on-disk session record
type fileData struct {
	Username   string    `json:"username"`
	SignedInAt time.Time `json:"signedInAt"`
}

// Session is a file-backed Provider.
type Session struct {
	path   string
	users  Users
	logger *utils.Logger

	mu        sync.RWMutex
	username  string
	resolving bool

	listenersMu sync.Mutex
	listeners   map[int]func(Event)
	nextID      int

	// notifyMu keeps events in the order the changes happened
	notifyMu sync.Mutex
}

// New creates a Session backed by the file at path. It starts out resolving
// until Restore is called.
func New(path string, users Users, logger *utils.Logger) *Session {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &Session{
		path:      path,
		users:     users,
		logger:    logger,
		resolving: true,
		listeners: make(map[int]func(Event)),
	}
}

// DefaultPath returns the session file location inside the config directory.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, "session.json")
}

// Path returns the session file path.
func (s *Session) Path() string {
	return s.path
}

// Identity implements Provider.
func (s *Session) Identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username, s.username != ""
}

// Resolving implements Provider.
func (s *Session) Resolving() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolving
}

// Subscribe implements Provider.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// set changes the identity and notifies subscribers when something changed.
func (s *Session) set(username string, resolving bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed := s.username != username || s.resolving != resolving
	s.username = username
	s.resolving = resolving
	s.mu.Unlock()

	if !changed {
		return
	}

	s.listenersMu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.listenersMu.Unlock()

	ev := Event{Username: username, Resolving: resolving}
	for _, fn := range fns {
		fn(ev)
	}
}

// Restore loads the stored identity and ends the resolving phase.
// A missing file means nobody is signed in.
func (s *Session) Restore() error {
	username, err := s.read()
	if err != nil {
		s.set("", false)
		return err
	}
	if username != "" {
		s.logger.Debug("session: restored %s", username)
	}
	s.set(username, false)
	return nil
}

// Reload re-reads the session file after another process changed it.
func (s *Session) Reload() {
	username, err := s.read()
	if err != nil {
		s.logger.Warn("session: reload %s: %v", s.path, err)
		return
	}
	s.set(username, s.Resolving())
}

func (s *Session) read() (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return "", fmt.Errorf("parse session %s: %w", s.path, err)
	}
	return fd.Username, nil
}

// write stores the session atomically so watchers never see a partial file.
func (s *Session) write(username string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(fileData{Username: username, SignedInAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// SignIn signs in an existing user.
func (s *Session) SignIn(ctx context.Context, username string) (*backend.User, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, username)
	if errors.Is(err, backend.ErrNotFound) {
		return nil, utils.ErrUserNotFound(username)
	}
	if err != nil {
		return nil, err
	}
	if err := s.write(user.Username); err != nil {
		return nil, err
	}
	s.set(user.Username, false)
	return user, nil
}

// SignUp creates a user and signs it in.
func (s *Session) SignUp(ctx context.Context, user backend.User) (*backend.User, error) {
	if _, err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.SignIn(ctx, user.Username)
}

// SignOut forgets the signed-in user.
func (s *Session) SignOut() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	s.set("", false)
	return nil
}

// User returns the signed-in user.
func (s *Session) User(ctx context.Context) (*backend.User, error) {
	username, ok := s.Identity()
	if !ok {
		return nil, utils.ErrNotSignedIn()
	}
	return s.users.GetUser(ctx, username)
}

// Verify interface compliance at compile time
var _ Provider = (*Session)(nil)
