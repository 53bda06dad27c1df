package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bridgetalk/internal/store"
)

// snapshotVersion is the current persisted document format.
const snapshotVersion = 2

// MigratedSubjectID is the synthetic id given to the single subject
// reconstructed from a legacy profile document. Fixed so migration is
// deterministic.
const MigratedSubjectID = "subject-legacy"

type snapshot struct {
	Version int     `json:"version"`
	Session Session `json:"session"`
}

// legacyProfile is the single-subject document from the prior format,
// consumed only for one-time migration.
type legacyProfile struct {
	TeacherName    string `json:"teacherName"`
	PreferredVoice string `json:"preferredVoice"`
	ChildName      string `json:"childName"`
	ChildLanguage  string `json:"childLanguage"`
	ChildAge       int    `json:"childAge"`
	Sensitivities  string `json:"sensitivities"`
}

// Store owns the in-memory Session and writes every mutation through to
// the key-value store. It is the only shared mutable resource; all
// mutations read the latest snapshot and write a new one under the lock.
type Store struct {
	kv *store.Store

	mu       sync.Mutex
	current  Session
	firstRun bool
}

// NewStore creates a Store over the given key-value backend. Call Load
// before anything else.
func NewStore(kv *store.Store) *Store {
	return &Store{kv: kv}
}

// Load reconstructs state at startup: current-format snapshot first, then
// the legacy single-subject document (migrated and re-persisted), then an
// empty Session with the first-run flag set.
func (st *Store) Load(ctx context.Context) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	raw, ok, err := st.kv.Get(ctx, store.SessionKey)
	if err != nil {
		return fmt.Errorf("read session document: %w", err)
	}
	if ok {
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err == nil && snap.Session.Messages != nil {
			st.current = snap.Session
			return nil
		}
		// Unparseable current document: fall through to the legacy path
		// rather than surfacing a corrupt-state error.
	}

	if sess, ok, err := st.loadLegacy(ctx); err != nil {
		return err
	} else if ok {
		st.current = sess
		return st.persistLocked(ctx)
	}

	st.current = New()
	st.firstRun = true
	return nil
}

func (st *Store) loadLegacy(ctx context.Context) (Session, bool, error) {
	raw, ok, err := st.kv.Get(ctx, store.LegacyProfileKey)
	if err != nil {
		return Session{}, false, fmt.Errorf("read legacy document: %w", err)
	}
	if !ok {
		return Session{}, false, nil
	}

	var legacy legacyProfile
	if err := json.Unmarshal(raw, &legacy); err != nil || legacy.ChildName == "" {
		return Session{}, false, nil
	}

	sub := Subject{
		ID:            MigratedSubjectID,
		Name:          legacy.ChildName,
		Language:      legacy.ChildLanguage,
		Age:           legacy.ChildAge,
		Sensitivities: legacy.Sensitivities,
	}

	sess := New()
	sess.TeacherName = legacy.TeacherName
	if legacy.PreferredVoice != "" {
		sess.PreferredVoice = VoiceMode(legacy.PreferredVoice)
	}
	sess.Subjects = []Subject{sub}
	sess.Messages[sub.ID] = []Message{}
	sess.SelectedID = sub.ID
	return sess, true, nil
}

// FirstRun reports whether Load found no usable state and setup is required.
func (st *Store) FirstRun() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.firstRun
}

// Current returns a deep copy of the in-memory Session.
func (st *Store) Current() Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current.Clone()
}

// Mutate applies a pure transformation to the latest Session and persists
// the result. The transformation runs under the store lock, so it is
// atomic relative to every other mutation.
func (st *Store) Mutate(ctx context.Context, fn func(Session) Session) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.current = fn(st.current.Clone())
	st.firstRun = false
	if err := st.persistLocked(ctx); err != nil {
		return Session{}, err
	}
	return st.current.Clone(), nil
}

// Replace swaps the whole Session, used by import.
func (st *Store) Replace(ctx context.Context, sess Session) error {
	_, err := st.Mutate(ctx, func(Session) Session { return sess.Clone() })
	return err
}

func (st *Store) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(snapshot{Version: snapshotVersion, Session: st.current})
	if err != nil {
		return fmt.Errorf("marshal session document: %w", err)
	}
	if err := st.kv.Put(ctx, store.SessionKey, raw); err != nil {
		return fmt.Errorf("persist session document: %w", err)
	}
	return nil
}
