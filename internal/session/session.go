// ABOUTME: Process-wide session registry with monotonically increasing ids
// ABOUTME: Tracks mode, status, title, and target buffer for every model interaction

package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mauromedda/gpt-go/internal/eventbus"
	"github.com/mauromedda/gpt-go/internal/types"
)

var (
	// ErrNotFound means no session has the requested id.
	ErrNotFound = errors.New("session not found")
	// ErrTerminal means the session already reached a terminal status.
	ErrTerminal = errors.New("session already finished")
)

// Session is one user-initiated model interaction bound to a text target.
type Session struct {
	ID          int          `json:"id"`
	Target      string       `json:"target"`
	Title       string       `json:"title"`
	Mode        types.Mode   `json:"mode"`
	Status      types.Status `json:"status"`
	Instruction string       `json:"instruction"`
	// Detail holds the raw failure status for failed sessions.
	Detail  string    `json:"detail,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Store is the session registry. Ids start at 1 and are never reused,
// even after sessions are forgotten.
type Store struct {
	mu       sync.Mutex
	next     int
	byID     map[int]*Session
	titleMax int
	changes  *eventbus.Bus[Session]
	now      func() time.Time
}

// NewStore creates a store that truncates titles to titleMax grapheme
// clusters (0 disables truncation).
func NewStore(titleMax int) *Store {
	return &Store{
		byID:     make(map[int]*Session),
		titleMax: titleMax,
		changes:  eventbus.New[Session](),
		now:      time.Now,
	}
}

// TitleMax returns the title truncation limit.
func (s *Store) TitleMax() int { return s.titleMax }

// OnChange subscribes to session snapshots published after every mutation.
func (s *Store) OnChange(h eventbus.Handler[Session]) func() {
	return s.changes.Subscribe(h)
}

// Create registers a pending session titled after its instruction.
func (s *Store) Create(mode types.Mode, target, instruction string) Session {
	s.mu.Lock()
	s.next++
	now := s.now()
	sess := &Session{
		ID:          s.next,
		Target:      target,
		Title:       Truncate(CleanTitle(instruction), s.titleMax),
		Mode:        mode,
		Status:      types.StatusPending,
		Instruction: instruction,
		Created:     now,
		Updated:     now,
	}
	s.byID[sess.ID] = sess
	snap := *sess
	s.mu.Unlock()

	s.changes.Publish(snap)
	return snap
}

// Get returns a snapshot of session id.
func (s *Store) Get(id int) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// List returns all sessions ordered by id.
func (s *Store) List() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.byID))
	for _, sess := range s.byID {
		out = append(out, *sess)
	}
	slices.SortFunc(out, func(a, b Session) int { return a.ID - b.ID })
	return out
}

// ForTarget returns the sessions bound to target, oldest first.
func (s *Store) ForTarget(target string) []Session {
	var out []Session
	for _, sess := range s.List() {
		if sess.Target == target {
			out = append(out, sess)
		}
	}
	return out
}

// Latest returns the newest session bound to target.
func (s *Store) Latest(target string) (Session, bool) {
	all := s.ForTarget(target)
	if len(all) == 0 {
		return Session{}, false
	}
	return all[len(all)-1], true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// Counter returns the last id handed out.
func (s *Store) Counter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// SetStatus moves session id to status. Terminal statuses are final:
// further transitions return ErrTerminal and leave the session unchanged.
func (s *Store) SetStatus(id int, status types.Status, detail string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		if sess.Status.Terminal() {
			return fmt.Errorf("session %d is %s: %w", id, sess.Status, ErrTerminal)
		}
		sess.Status = status
		sess.Detail = detail
		return nil
	})
}

// SetTitle replaces the display title, applying the truncation rule.
func (s *Store) SetTitle(id int, title string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.Title = Truncate(CleanTitle(title), s.titleMax)
		return nil
	})
}

// SetTarget rebinds a session to a renamed buffer.
func (s *Store) SetTarget(id int, target string) (Session, error) {
	return s.update(id, func(sess *Session) error {
		sess.Target = target
		return nil
	})
}

// Retarget rebinds every session of one buffer to its new name.
func (s *Store) Retarget(from, to string) {
	for _, sess := range s.ForTarget(from) {
		_, _ = s.SetTarget(sess.ID, to)
	}
}

// Forget drops every session bound to target. Ids are not recycled.
func (s *Store) Forget(target string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.byID {
		if sess.Target == target {
			delete(s.byID, id)
			n++
		}
	}
	return n
}

func (s *Store) update(id int, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	sess, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Session{}, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err := fn(sess); err != nil {
		snap := *sess
		s.mu.Unlock()
		return snap, err
	}
	sess.Updated = s.now()
	snap := *sess
	s.mu.Unlock()

	s.changes.Publish(snap)
	return snap, nil
}
