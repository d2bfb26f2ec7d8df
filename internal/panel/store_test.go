package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/locationup/locationup-go/internal/notifications"
	"github.com/locationup/locationup-go/pkg/enums"
)

type fakeAPI struct {
	mu           sync.Mutex
	listFn       func(ctx context.Context, userID string, params notifications.ListParams) ([]notifications.Record, error)
	markReadIDs  []string
	markAllUsers []string
	deleteIDs    []string
	deleteErr    error
}

func (f *fakeAPI) List(ctx context.Context, userID string, params notifications.ListParams) ([]notifications.Record, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID, params)
	}
	return nil, nil
}

func (f *fakeAPI) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReadIDs = append(f.markReadIDs, id)
	return nil
}

func (f *fakeAPI) MarkAllRead(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllUsers = append(f.markAllUsers, userID)
	return nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteIDs = append(f.deleteIDs, id)
	return f.deleteErr
}

func (f *fakeAPI) snapshot() (markRead, markAll, deleted []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.markReadIDs...),
		append([]string(nil), f.markAllUsers...),
		append([]string(nil), f.deleteIDs...)
}

func record(id string, read bool) notifications.Record {
	return notifications.Record{
		ID:        id,
		Severity:  enums.SeverityInfo,
		Category:  notifications.DefaultCategory,
		Content:   "content " + id,
		Timestamp: time.Now(),
		Recipient: "42",
		Read:      read,
	}
}

func newStore(t *testing.T, api API, opts ...Option) *Store {
	t.Helper()
	store, err := NewStore(api, opts...)
	require.NoError(t, err)
	return store
}

func TestCapInvariantNewestFirst(t *testing.T) {
	store := newStore(t, &fakeAPI{})

	for i := 0; i < 120; i++ {
		store.Apply(record(fmt.Sprintf("n-%d", i), false))
		items := store.Notifications()
		require.LessOrEqual(t, len(items), MaxNotifications, "cap must hold after every insert")
	}

	items := store.Notifications()
	require.Len(t, items, MaxNotifications)
	// newest first: last applied id leads
	require.Equal(t, "n-119", items[0].ID)
	require.Equal(t, "n-70", items[MaxNotifications-1].ID)
}

func TestUnreadCountConsistency(t *testing.T) {
	api := &fakeAPI{}
	store := newStore(t, api)

	expectConsistent := func() {
		t.Helper()
		unread := 0
		for _, item := range store.Notifications() {
			if !item.Read {
				unread++
			}
		}
		require.Equal(t, unread, store.UnreadCount())
	}

	for i := 0; i < 10; i++ {
		store.Apply(record(fmt.Sprintf("n-%d", i), i%3 == 0))
		expectConsistent()
	}

	store.MarkRead("n-1")
	expectConsistent()
	store.MarkRead("n-1") // already read: no-op
	expectConsistent()
	store.Remove("n-2")
	expectConsistent()
	store.MarkAllRead()
	expectConsistent()
	require.Zero(t, store.UnreadCount())

	store.Apply(record("n-fresh", false))
	expectConsistent()
	require.Equal(t, 1, store.UnreadCount())
}

func TestActivateReplacesList(t *testing.T) {
	api := &fakeAPI{
		listFn: func(ctx context.Context, userID string, params notifications.ListParams) ([]notifications.Record, error) {
			require.Equal(t, "42", userID)
			require.Equal(t, MaxNotifications, params.Limit)
			return []notifications.Record{record("srv-1", true), record("srv-2", false)}, nil
		},
	}
	store := newStore(t, api)
	store.Apply(record("stale", false))

	require.NoError(t, store.Activate(context.Background(), "42"))

	items := store.Notifications()
	require.Len(t, items, 2)
	require.Equal(t, "srv-1", items[0].ID)
	require.Equal(t, 1, store.UnreadCount())
}

func TestActivateSurfacesFetchError(t *testing.T) {
	api := &fakeAPI{
		listFn: func(ctx context.Context, userID string, params notifications.ListParams) ([]notifications.Record, error) {
			return nil, errors.New("backend down")
		},
	}
	store := newStore(t, api)
	require.Error(t, store.Activate(context.Background(), "42"))
}

func TestMarkReadPersistsOnce(t *testing.T) {
	api := &fakeAPI{}
	store := newStore(t, api)
	store.Apply(record("n-1", false))

	store.MarkRead("n-1")
	store.MarkRead("n-1")
	store.MarkRead("unknown")
	store.Wait()

	markRead, _, _ := api.snapshot()
	require.Equal(t, []string{"n-1"}, markRead)
}

func TestMarkAllReadIssuesSingleBulkCall(t *testing.T) {
	api := &fakeAPI{}
	store := newStore(t, api)
	require.NoError(t, store.Activate(context.Background(), "42"))
	store.Apply(record("n-1", false))
	store.Apply(record("n-2", false))

	store.MarkAllRead()
	store.Wait()

	require.Zero(t, store.UnreadCount())
	_, markAll, _ := api.snapshot()
	require.Equal(t, []string{"42"}, markAll)

	// nothing unread: no second call
	store.MarkAllRead()
	store.Wait()
	_, markAll, _ = api.snapshot()
	require.Len(t, markAll, 1)
}

func TestRemoveIsOptimistic(t *testing.T) {
	api := &fakeAPI{deleteErr: errors.New("backend rejected delete")}
	store := newStore(t, api)
	store.Apply(record("n-1", false))
	store.Apply(record("n-2", false))

	store.Remove("n-1")
	store.Wait()

	for _, item := range store.Notifications() {
		require.NotEqual(t, "n-1", item.ID, "entry must vanish locally even when the delete call fails")
	}
	_, _, deleted := api.snapshot()
	require.Equal(t, []string{"n-1"}, deleted)

	// unknown id: local no-op, no call
	store.Remove("ghost")
	store.Wait()
	_, _, deleted = api.snapshot()
	require.Len(t, deleted, 1)
}

func TestOpeningPanelMarksAllRead(t *testing.T) {
	api := &fakeAPI{}
	store := newStore(t, api)
	require.NoError(t, store.Activate(context.Background(), "42"))
	store.Apply(record("n-1", false))

	store.SetOpen(true)
	store.Wait()

	require.True(t, store.IsOpen())
	require.Zero(t, store.UnreadCount())
	_, markAll, _ := api.snapshot()
	require.Equal(t, []string{"42"}, markAll)

	// staying open does not re-trigger
	store.SetOpen(true)
	store.SetOpen(false)
	store.Wait()
	_, markAll, _ = api.snapshot()
	require.Len(t, markAll, 1)
}

func TestDedupOption(t *testing.T) {
	store := newStore(t, &fakeAPI{}, WithDedup())

	store.Apply(record("n-1", false))
	store.Apply(record("n-1", false))
	store.Apply(notifications.Record{Content: "no id"})
	store.Apply(notifications.Record{Content: "no id either"})

	require.Len(t, store.Notifications(), 3, "id-less records are never deduped")

	plain := newStore(t, &fakeAPI{})
	plain.Apply(record("n-1", false))
	plain.Apply(record("n-1", false))
	require.Len(t, plain.Notifications(), 2, "dedup is off by default")
}

func TestApplyDropsExpiredRecords(t *testing.T) {
	store := newStore(t, &fakeAPI{})

	past := time.Now().Add(-time.Minute)
	expired := record("n-old", false)
	expired.ExpiresAt = &past
	store.Apply(expired)
	require.Empty(t, store.Notifications())

	future := time.Now().Add(time.Hour)
	live := record("n-live", false)
	live.ExpiresAt = &future
	store.Apply(live)
	require.Len(t, store.Notifications(), 1)
}

func TestNewStoreRequiresAPI(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
}
