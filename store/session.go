package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
)

const sessionsFile = "dialog_sessions.json"

// ErrSessionNotFound reports that no session carries the requested id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionDecode reports that the session file holds invalid content on a
// plain read. Mutating operations self-heal instead of raising this.
var ErrSessionDecode = errors.New("session file decode error")

// SessionMessage is one turn of a dialog session.
type SessionMessage struct {
	ID             string           `json:"id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	ReasoningSteps []map[string]any `json:"reasoningSteps,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	Timestamp      string           `json:"timestamp"`
}

// Session is one conversation with the agent pipeline.
type Session struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	State        map[string]any   `json:"state"`
	AgentContext map[string]any   `json:"agentContext"`
	Messages     []SessionMessage `json:"messages"`
	CreatedAt    string           `json:"createdAt"`
	UpdatedAt    string           `json:"updatedAt"`
}

// SessionStore persists all sessions as a single JSON array file guarded by
// advisory file locks. Correctness under concurrent requests rests entirely
// on the exclusive-lock discipline of Atomic.
type SessionStore struct {
	path    string
	timeout time.Duration
}

// NewSessionStore creates a session store under dataDir.
func NewSessionStore(dataDir string) *SessionStore {
	return &SessionStore{
		path:    filepath.Join(dataDir, sessionsFile),
		timeout: defaultLockTimeout,
	}
}

// Load returns all sessions under a shared lock.
// A corrupt file is a hard error here: silently returning stale or empty
// data on a pure read is worse than failing loudly.
func (ss *SessionStore) Load() ([]Session, error) {
	if _, err := os.Stat(ss.path); os.IsNotExist(err) {
		return []Session{}, nil
	}

	fl, err := acquireLock(ss.path, false, ss.timeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("failed to release session read lock", "error", err)
		}
	}()

	raw, err := os.ReadFile(ss.path)
	if err != nil {
		return nil, errors.Wrap(err, "read session file")
	}
	sessions, err := decodeSessions(raw)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// Atomic runs mutate under an exclusive lock held for the full
// read-decode-mutate-encode-write-fsync span. The write only happens after
// mutate returns without error, so a failed mutation never persists partial
// state. A corrupt file is treated as an empty session list so a mutation
// can repair the store.
func (ss *SessionStore) Atomic(mutate func(sessions []Session) ([]Session, error)) error {
	file, err := os.OpenFile(ss.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return errors.Wrap(err, "open session file")
	}
	defer file.Close()

	fl, err := acquireLock(ss.path, true, ss.timeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := fl.Unlock(); err != nil {
			slog.Warn("failed to release session write lock", "error", err)
		}
	}()

	raw, err := os.ReadFile(ss.path)
	if err != nil {
		return errors.Wrap(err, "read session file")
	}
	sessions, err := decodeSessions(raw)
	if err != nil {
		slog.Warn("session file is corrupt, starting from an empty list", "error", err)
		sessions = []Session{}
	}

	mutated, err := mutate(sessions)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(mutated, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode sessions")
	}
	if err := file.Truncate(0); err != nil {
		return errors.Wrap(err, "truncate session file")
	}
	if _, err := file.WriteAt(encoded, 0); err != nil {
		return errors.Wrap(err, "write session file")
	}
	if err := file.Sync(); err != nil {
		return errors.Wrap(err, "fsync session file")
	}
	return nil
}

func decodeSessions(raw []byte) ([]Session, error) {
	if len(raw) == 0 {
		return []Session{}, nil
	}

	// The file must hold a JSON array; any other top-level shape counts as
	// corruption.
	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, errors.Wrapf(ErrSessionDecode, "%v", err)
	}
	if _, ok := probe.([]any); !ok {
		return nil, errors.Wrap(ErrSessionDecode, "session file does not hold a list")
	}

	var sessions []Session
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, errors.Wrapf(ErrSessionDecode, "%v", err)
	}
	return sessions, nil
}

// Create appends a new session and returns it. Identity is an opaque
// generated id, unique across the whole array.
func (ss *SessionStore) Create(title string, state, agentContext map[string]any) (*Session, error) {
	now := time.Now().Format(time.RFC3339)
	if state == nil {
		state = map[string]any{}
	}
	if agentContext == nil {
		agentContext = map[string]any{}
	}
	session := Session{
		Title:        title,
		State:        state,
		AgentContext: agentContext,
		Messages:     []SessionMessage{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := ss.Atomic(func(sessions []Session) ([]Session, error) {
		session.ID = shortuuid.New()
		for hasSessionID(sessions, session.ID) {
			session.ID = shortuuid.New()
		}
		return append(sessions, session), nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Get returns the session with the given id.
func (ss *SessionStore) Get(id string) (*Session, error) {
	sessions, err := ss.Load()
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return &sessions[i], nil
		}
	}
	return nil, ErrSessionNotFound
}

// NewMessage builds a message with a generated id and current timestamp.
func NewMessage(role, content string) SessionMessage {
	return SessionMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// AppendMessages appends messages to a session in one atomic operation.
func (ss *SessionStore) AppendMessages(sessionID string, messages ...SessionMessage) error {
	return ss.Atomic(func(sessions []Session) ([]Session, error) {
		for i := range sessions {
			if sessions[i].ID != sessionID {
				continue
			}
			sessions[i].Messages = append(sessions[i].Messages, messages...)
			sessions[i].UpdatedAt = time.Now().Format(time.RFC3339)
			return sessions, nil
		}
		return nil, ErrSessionNotFound
	})
}

func hasSessionID(sessions []Session, id string) bool {
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}
