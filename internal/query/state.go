// Package query holds the reactive filter, paging and sort parameters of a
// list view.
//
// A State keeps the live query and the query it was created with. With
// identity binding on, one string field follows the signed-in user: it is
// overwritten whenever the identity provider reports a known user, and
// applied again on Reset.
package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"myday/internal/session"
)

// DefaultIdentityField is the field bound to the signed-in user.
const DefaultIdentityField = "username"

// ErrNoIdentityField is returned by New when identity binding is requested
// but the query type has no matching string field.
var ErrNoIdentityField = errors.New("query type has no identity field")

// Patch is a partial query keyed by the json names of the query fields.
// Keys that match no field are ignored.
type Patch map[string]any

type options struct {
	provider session.Provider
	field    string
}

// Option configures a State.
type Option func(*options)

// WithIdentity turns on identity binding against provider.
func WithIdentity(provider session.Provider) Option {
	return func(o *options) { o.provider = provider }
}

// WithIdentityField names the bound field (json name or Go field name).
func WithIdentityField(name string) Option {
	return func(o *options) { o.field = name }
}

// State is the live query of one view. It is safe for concurrent use.
type State[Q comparable] struct {
	mu       sync.Mutex
	current  Q
	initial  Q
	closed   bool
	provider session.Provider
	field    []int // index path of the identity field; nil without binding
	cancel   func()

	listeners map[int]func(Q)
	nextID    int
}

// New creates a State whose current and initial query are initial.
// When the provider already knows the user, the identity field of current
// is set right away; initial keeps the value it was given.
func New[Q comparable](initial Q, opts ...Option) (*State[Q], error) {
	o := options{field: DefaultIdentityField}
	for _, opt := range opts {
		opt(&o)
	}

	s := &State[Q]{
		current:   initial,
		initial:   initial,
		listeners: make(map[int]func(Q)),
	}
	if o.provider == nil {
		return s, nil
	}

	idx, err := identityIndex(reflect.TypeOf(initial), o.field)
	if err != nil {
		return nil, err
	}
	s.field = idx
	s.provider = o.provider

	// The provider may report the current user from inside Subscribe.
	cancel := o.provider.Subscribe(s.onIdentity)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
	if !o.provider.Resolving() {
		if name, ok := o.provider.Identity(); ok {
			s.current = s.withIdentity(s.current, name)
		}
	}
	return s, nil
}

// identityIndex finds the string field named by its json tag or Go name.
func identityIndex(t reflect.Type, name string) ([]int, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v is not a struct", ErrNoIdentityField, t)
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag != name && !(tag == "" && strings.EqualFold(f.Name, name)) {
			continue
		}
		if f.Type.Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s.%s is %s, want a string", ErrNoIdentityField, t.Name(), f.Name, f.Type)
		}
		return f.Index, nil
	}
	return nil, fmt.Errorf("%w: %s has no field %q", ErrNoIdentityField, t.Name(), name)
}

func (s *State[Q]) withIdentity(q Q, name string) Q {
	v := reflect.ValueOf(&q).Elem().FieldByIndex(s.field)
	v.SetString(name)
	return q
}

// Current returns the live query.
func (s *State[Q]) Current() Q {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Initial returns the query the State was created with.
func (s *State[Q]) Initial() Q {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial
}

// Update merges p into the live query. Fields absent from p keep their
// value. When a value cannot be decoded into its field the query is left
// unchanged and the error is returned.
func (s *State[Q]) Update(p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &next,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(p)); err != nil {
		return fmt.Errorf("update query: %w", err)
	}
	s.replace(next)
	return nil
}

// Modify applies fn to a copy of the live query and stores the result.
func (s *State[Q]) Modify(fn func(q *Q)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	fn(&next)
	s.replace(next)
}

// Reset restores the initial query. With binding on and a known user the
// identity field is taken from the provider at reset time.
func (s *State[Q]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.initial
	if s.provider != nil {
		if name, ok := s.provider.Identity(); ok {
			next = s.withIdentity(next, name)
		}
	}
	s.replace(next)
}

// onIdentity overwrites the identity field once a user is known.
// Sign out and resolving events leave the query alone.
func (s *State[Q]) onIdentity(ev session.Event) {
	if ev.Resolving || ev.Username == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.replace(s.withIdentity(s.current, ev.Username))
}

// replace stores next and notifies listeners when it differs from current.
// Callers hold s.mu.
func (s *State[Q]) replace(next Q) {
	if next == s.current {
		return
	}
	s.current = next
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.listeners[id]; ok {
			fn(next)
		}
	}
}

// Subscribe registers fn for every new live query. fn runs with the State
// locked, in update order, and must not call back into the State.
func (s *State[Q]) Subscribe(fn func(q Q)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close detaches the State from its identity provider.
func (s *State[Q]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
