package panel

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/locationup/locationup-go/internal/notifications"
	pkgerrors "github.com/locationup/locationup-go/pkg/errors"
	"github.com/locationup/locationup-go/pkg/logger"
)

// MaxNotifications caps the panel list; insertion evicts the oldest entries.
const MaxNotifications = 50

const persistTimeout = 10 * time.Second

// API is the slice of the backend client the panel persists through.
type API interface {
	List(ctx context.Context, userID string, params notifications.ListParams) ([]notifications.Record, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, notificationID string) error
}

// Store maintains the badge/panel state: an ordered, capped list of recent
// notifications and the unread counter. All persistence calls are optimistic
// fire-and-forget; local state always reflects the locally intended outcome.
type Store struct {
	api   API
	logg  *logger.Logger
	dedup bool

	wg sync.WaitGroup

	mu     sync.Mutex
	userID string
	items  []notifications.Record
	open   bool
}

// Option configures optional store behavior.
type Option func(*Store)

// WithLogger attaches a structured logger.
func WithLogger(logg *logger.Logger) Option {
	return func(s *Store) {
		if logg != nil {
			s.logg = logg
		}
	}
}

// WithDedup drops stream records whose id is already present in the list.
// Off by default: duplicate delivery across reconnect boundaries is part of
// the upstream contract and tolerated as-is.
func WithDedup() Option {
	return func(s *Store) {
		s.dedup = true
	}
}

// NewStore wires the panel state to a backend API client.
func NewStore(api API, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification api client required")
	}
	store := &Store{
		api:  api,
		logg: logger.New(logger.Options{ServiceName: "panel", Output: io.Discard}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Activate replaces the list with a point-in-time fetch for the user.
func (s *Store) Activate(ctx context.Context, userID string) error {
	records, err := s.api.List(ctx, userID, notifications.ListParams{Limit: MaxNotifications})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notifications")
	}
	if len(records) > MaxNotifications {
		records = records[:MaxNotifications]
	}

	s.mu.Lock()
	s.userID = userID
	s.items = append([]notifications.Record(nil), records...)
	s.mu.Unlock()
	return nil
}

// Apply prepends a stream record, enforcing the cap. Records that are
// already expired on arrival are dropped.
func (s *Store) Apply(record notifications.Record) {
	if record.IsExpired(time.Now()) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dedup && record.ID != "" {
		for _, existing := range s.items {
			if existing.ID == record.ID {
				return
			}
		}
	}

	s.items = append([]notifications.Record{record}, s.items...)
	if len(s.items) > MaxNotifications {
		s.items = s.items[:MaxNotifications]
	}
}

// Notifications returns a copy of the current list, newest first.
func (s *Store) Notifications() []notifications.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Record(nil), s.items...)
}

// UnreadCount counts entries that are still unread.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.items {
		if !item.Read {
			count++
		}
	}
	return count
}

// MarkRead flips the entry to read locally and persists in the background.
// Already-read entries are a no-op.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	flipped := false
	for i := range s.items {
		if s.items[i].ID == id {
			if s.items[i].Read {
				s.mu.Unlock()
				return
			}
			s.items[i].Read = true
			flipped = true
			break
		}
	}
	s.mu.Unlock()

	if !flipped {
		return
	}
	s.persist("mark-read", func(ctx context.Context) error {
		return s.api.MarkRead(ctx, id)
	})
}

// MarkAllRead flips every entry to read and persists one bulk call.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	userID := s.userID
	changed := false
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed = true
		}
	}
	s.mu.Unlock()

	if !changed || userID == "" {
		return
	}
	s.persist("mark-all-read", func(ctx context.Context) error {
		return s.api.MarkAllRead(ctx, userID)
	})
}

// Remove drops the entry locally regardless of the delete call's outcome.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	filtered := s.items[:0]
	found := false
	for _, item := range s.items {
		if item.ID == id {
			found = true
			continue
		}
		filtered = append(filtered, item)
	}
	s.items = filtered
	s.mu.Unlock()

	if !found {
		return
	}
	s.persist("delete", func(ctx context.Context) error {
		return s.api.Delete(ctx, id)
	})
}

// SetOpen records the panel open/closed toggle. Opening the panel marks
// everything read; this is the documented UX decision, not a side effect of
// rendering.
func (s *Store) SetOpen(open bool) {
	s.mu.Lock()
	wasOpen := s.open
	s.open = open
	s.mu.Unlock()

	if open && !wasOpen {
		s.MarkAllRead()
	}
}

// IsOpen reports the panel toggle state.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Wait blocks until all in-flight persistence calls have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

func (s *Store) persist(op string, fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logg.Error(ctx, op+" persistence failed", err)
		}
	}()
}
