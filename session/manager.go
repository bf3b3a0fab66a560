package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tuniway/tuniway-web/backend"
	"github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/metrics"
	"github.com/tuniway/tuniway-web/store"
	"github.com/tuniway/tuniway-web/users"
)

// Authenticator is the part of the backend the manager needs.
type Authenticator interface {
	SignIn(ctx context.Context, creds users.Credentials) (backend.AuthResponse, error)
	SignUp(ctx context.Context, reg users.Registration) (backend.AuthResponse, error)
}

// Listener receives the current record on every publish. ok is false once the
// user has logged out.
type Listener func(record users.Record, ok bool)

// Manager is the single source of truth for who is logged in. It is created
// once at startup and handed to every consumer.
//
// Mutations are serialized and each one persists to the store before it
// publishes, so a listener reacting to a publish can read the store safely.
// Listeners run synchronously on the mutating goroutine and must not call
// mutating Manager methods.
type Manager struct {
	store   store.Store
	auth    Authenticator
	metrics *metrics.Metrics

	mu sync.Mutex // serializes mutations

	valueMu sync.RWMutex
	current *users.Record

	listenersMu sync.Mutex
	listeners   []subscription
	nextID      uint64
}

type subscription struct {
	id uint64
	l  Listener
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records login and registration outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// New builds a manager seeded from the store. A record counts as live only
// when both the record and a non-empty token are present and the record
// decodes.
func New(s store.Store, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		store: s,
		auth:  auth,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.current = m.readStore()
	return m
}

func (m *Manager) readStore() *users.Record {
	raw, ok, err := m.store.Get(store.KeyCurrentUser)
	if err != nil {
		log.Warn().Err(err).Msg("session: failed to read stored record")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	token, ok, err := m.store.Get(store.KeyToken)
	if err != nil {
		log.Warn().Err(err).Msg("session: failed to read stored token")
		return nil
	}
	if !ok || token == "" {
		return nil
	}

	var record users.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		log.Warn().Err(err).Msg("session: stored record does not decode")
		return nil
	}
	return &record
}

// Current returns the last-known record.
func (m *Manager) Current() (users.Record, bool) {
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()

	if m.current == nil {
		return users.Record{}, false
	}
	return *m.current, true
}

func (m *Manager) IsLoggedIn() bool {
	_, ok := m.Current()
	return ok
}

func (m *Manager) IsGuide() bool {
	r, ok := m.Current()
	return ok && r.IsGuide()
}

func (m *Manager) IsAdmin() bool {
	r, ok := m.Current()
	return ok && r.IsAdmin()
}

func (m *Manager) IsClient() bool {
	r, ok := m.Current()
	return ok && r.IsClient()
}

// Token returns the persisted access token.
func (m *Manager) Token() (string, bool) {
	token, ok, err := m.store.Get(store.KeyToken)
	if err != nil {
		log.Warn().Err(err).Msg("session: failed to read token")
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// Login signs in against the backend. On failure the state is untouched and
// an *AuthenticationError is returned.
func (m *Manager) Login(ctx context.Context, creds users.Credentials) (users.Record, error) {
	resp, err := m.auth.SignIn(ctx, creds)
	if err != nil {
		m.metrics.AuthAttempt(metrics.OpLogin, metrics.OutcomeRejected)
		log.Info().Str("username", creds.Username).Err(err).Msg("login rejected")
		return users.Record{}, newAuthenticationError(err)
	}
	return m.establish(metrics.OpLogin, resp)
}

// Register creates an account and logs it in. The role defaults to CLIENT.
func (m *Manager) Register(ctx context.Context, reg users.Registration) (users.Record, error) {
	resp, err := m.auth.SignUp(ctx, reg.WithDefaults())
	if err != nil {
		m.metrics.AuthAttempt(metrics.OpRegister, metrics.OutcomeRejected)
		log.Info().Str("username", reg.Username).Err(err).Msg("registration rejected")
		return users.Record{}, newAuthenticationError(err)
	}
	return m.establish(metrics.OpRegister, resp)
}

func (m *Manager) establish(op string, resp backend.AuthResponse) (users.Record, error) {
	record, err := resp.Record()
	if err == nil && resp.BearerToken() == "" {
		err = backend.ErrMissingToken
	}
	if err != nil {
		m.metrics.AuthAttempt(op, metrics.OutcomeMalformed)
		return users.Record{}, newAuthenticationError(err)
	}

	token := resp.BearerToken()
	if err := m.commit(&record, &token); err != nil {
		m.metrics.AuthAttempt(op, metrics.OutcomeStoreFailed)
		return users.Record{}, err
	}

	m.metrics.AuthAttempt(op, metrics.OutcomeSuccess)
	log.Info().Int64("user_id", record.ID).Str("role", string(record.Role)).Str("op", op).Msg("session established")
	return record, nil
}

// SetCurrent replaces the record without a backend call. Used when the record
// was obtained out of band, such as the identity provider handoff.
func (m *Manager) SetCurrent(record users.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return m.commit(&record, nil)
}

// SetToken persists the access token alone.
func (m *Manager) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(store.KeyToken, token); err != nil {
		return errors.Wrapf(errors.Join(errors.ErrStorage, err), "[session SetToken]")
	}
	return nil
}

// UpdateCurrent merges patch into the current record. It reports false and
// does nothing when no session exists.
func (m *Manager) UpdateCurrent(patch users.Patch) (users.Record, bool, error) {
	return m.update(patch, func(users.Record) bool { return true })
}

// UpdateCurrentFor is UpdateCurrent restricted to user id. It reports false
// and does nothing when another user has logged in since.
func (m *Manager) UpdateCurrentFor(id int64, patch users.Patch) (users.Record, bool, error) {
	return m.update(patch, func(current users.Record) bool { return current.ID == id })
}

func (m *Manager) update(patch users.Patch, match func(users.Record) bool) (users.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.Current()
	if !ok || !match(current) {
		return users.Record{}, false, nil
	}

	merged := current.Merge(patch)
	if err := m.persistLocked(&merged, nil); err != nil {
		return current, true, err
	}
	m.publishLocked(&merged)
	return merged, true, nil
}

// Logout clears the store and publishes the logged-out state. The in-memory
// state is cleared even if the store fails.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := store.Clear(m.store)
	m.publishLocked(nil)
	if err != nil {
		log.Warn().Err(err).Msg("session: failed to clear store on logout")
		return errors.Wrapf(errors.Join(errors.ErrStorage, err), "[session Logout]")
	}
	log.Info().Msg("session cleared")
	return nil
}

// Subscribe registers l and immediately delivers the current value to it.
// The returned function removes the listener.
func (m *Manager) Subscribe(l Listener) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, subscription{id: id, l: l})
	m.listenersMu.Unlock()

	record, ok := m.Current()
	l(record, ok)

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		for i, sub := range m.listeners {
			if sub.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager) commit(record *users.Record, token *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.persistLocked(record, token); err != nil {
		return err
	}
	m.publishLocked(record)
	return nil
}

// persistLocked writes the record, and the token when given. The pair is
// written record first; if the token write fails the record is put back, and
// when that fails too the session is cleared.
func (m *Manager) persistLocked(record *users.Record, token *string) error {
	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrapf(err, "[session persist] encode record")
	}
	if token == nil {
		if err := m.store.Set(store.KeyCurrentUser, string(data)); err != nil {
			return errors.Wrapf(errors.Join(errors.ErrStorage, err), "[session persist] record")
		}
		return nil
	}

	prior, snapErr := m.snapshotLocked()
	if err := m.store.Set(store.KeyCurrentUser, string(data)); err != nil {
		return errors.Wrapf(errors.Join(errors.ErrStorage, err), "[session persist] record")
	}
	err = m.store.Set(store.KeyToken, *token)
	if err == nil {
		return nil
	}

	if snapErr != nil || !m.restoreLocked(store.KeyCurrentUser, prior) {
		log.Warn().Err(err).Msg("session: partial write could not be undone, clearing session")
		if clearErr := store.Clear(m.store); clearErr != nil {
			log.Err(clearErr).Msg("session: failed to clear store after partial write")
		}
		m.publishLocked(nil)
	}
	return errors.Wrapf(errors.Join(errors.ErrStorage, err), "[session persist] token")
}

type entry struct {
	value   string
	present bool
}

func (m *Manager) snapshotLocked() (entry, error) {
	v, ok, err := m.store.Get(store.KeyCurrentUser)
	if err != nil {
		return entry{}, err
	}
	return entry{value: v, present: ok}, nil
}

func (m *Manager) restoreLocked(key string, prior entry) bool {
	var err error
	if prior.present {
		err = m.store.Set(key, prior.value)
	} else {
		err = m.store.Remove(key)
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("session: failed to restore entry")
		return false
	}
	return true
}

func (m *Manager) publishLocked(record *users.Record) {
	var value users.Record
	if record != nil {
		value = *record
	}

	m.valueMu.Lock()
	if record == nil {
		m.current = nil
	} else {
		cp := value
		m.current = &cp
	}
	m.valueMu.Unlock()

	m.listenersMu.Lock()
	listeners := make([]subscription, len(m.listeners))
	copy(listeners, m.listeners)
	m.listenersMu.Unlock()

	for _, sub := range listeners {
		sub.l(value, record != nil)
	}
}
