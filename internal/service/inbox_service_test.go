package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/models"
)

// newInboxFixture seeds three negotiations around "alice":
//
//	#1 alice -> bob   (book-1 "Zebra Tales", pending,  newest proposal)
//	#2 carol -> alice (book-2 "apple picking", accepted)
//	#3 dave  -> alice (book-3 "Middle Ground", pending, oldest proposal)
//
// and message traffic so #3 has the freshest message, #2 an older one with an
// unread reply for alice, and #1 none at all.
func newInboxFixture(t *testing.T) (InboxService, *stubNegotiationRepo) {
	t.Helper()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	negotiations := newStubNegotiationRepo()
	seed := []models.SwapNegotiation{
		{SenderID: "alice", ReceiverID: "bob", TargetBookID: "book-1", Status: models.StatusPending},
		{SenderID: "carol", ReceiverID: "alice", TargetBookID: "book-2", Status: models.StatusAccepted},
		{SenderID: "dave", ReceiverID: "alice", TargetBookID: "book-3", Status: models.StatusPending},
	}
	offsets := []time.Duration{2 * time.Hour, time.Hour, 0}
	for i := range seed {
		require.NoError(t, negotiations.Create(context.Background(), &seed[i]))
		stored := negotiations.negotiations[seed[i].ID]
		stored.CreatedAt = base.Add(offsets[i])
		negotiations.negotiations[seed[i].ID] = stored
	}

	messages := &stubMessageRepo{
		messages: []models.ChatMessage{
			{ID: 1, NegotiationID: 2, SenderID: "carol", Text: "ping", CreatedAt: base.Add(30 * time.Minute)},
			{ID: 2, NegotiationID: 3, SenderID: "dave", Text: "fresh", ReadByReceiver: true, CreatedAt: base.Add(3 * time.Hour)},
		},
		nextID: 2,
	}

	users := &stubDirectory{users: map[string]models.UserSummary{
		"alice": {ID: "alice", DisplayName: "Alice"},
		"carol": {ID: "carol", DisplayName: "carol z"},
		"dave":  {ID: "dave", DisplayName: "Dave A"},
	}}
	books := &stubCatalog{books: map[string]models.BookSummary{
		"book-1": {ID: "book-1", Title: "Zebra Tales"},
		"book-2": {ID: "book-2", Title: "apple picking"},
		"book-3": {ID: "book-3", Title: "Middle Ground"},
	}}

	return NewInboxService(negotiations, messages, users, books, zerolog.Nop()), negotiations
}

func inboxBookOrder(items []dto.InboxItemResponse) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Negotiation.TargetBookID)
	}
	return out
}

func TestInboxServiceMergesDirectionsAndProjects(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "alice", "", "")
	require.NoError(t, err)
	require.Len(t, items, 3)

	byBook := make(map[string]dto.InboxItemResponse, len(items))
	for _, item := range items {
		byBook[item.Negotiation.TargetBookID] = item
	}

	require.Equal(t, dto.DirectionSent, byBook["book-1"].Direction)
	require.Equal(t, dto.DirectionReceived, byBook["book-2"].Direction)

	require.Equal(t, int64(1), byBook["book-2"].UnreadMessageCount)
	require.True(t, byBook["book-2"].HasNewMessages)
	require.False(t, byBook["book-3"].HasNewMessages)
	require.Nil(t, byBook["book-1"].LastMessageAt)
	require.NotNil(t, byBook["book-3"].LastMessageAt)

	// No negotiation-level mark-read happened, so everything is unread.
	for _, item := range items {
		require.True(t, item.IsUnread)
	}
}

func TestInboxServiceDefaultSortLatestMessageFirst(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "alice", "", "")
	require.NoError(t, err)

	// Threads with messages first by message recency, silent threads after.
	require.Equal(t, []string{"book-3", "book-2", "book-1"}, inboxBookOrder(items))
}

func TestInboxServiceSortByDate(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "alice", "", "date")
	require.NoError(t, err)
	require.Equal(t, []string{"book-1", "book-2", "book-3"}, inboxBookOrder(items))
}

func TestInboxServiceSortByBookTitleIsCaseInsensitive(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "alice", "", "book_title")
	require.NoError(t, err)
	require.Equal(t, []string{"book-2", "book-3", "book-1"}, inboxBookOrder(items))
}

func TestInboxServiceSortBySenderName(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "alice", "", "sender_name")
	require.NoError(t, err)

	// alice < carol z < dave a, lowercased.
	senders := make([]string, 0, len(items))
	for _, item := range items {
		senders = append(senders, item.Negotiation.SenderID)
	}
	require.Equal(t, []string{"alice", "carol", "dave"}, senders)
}

func TestInboxServiceSortByStatus(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "alice", "", "status")
	require.NoError(t, err)
	require.Equal(t, "accepted", items[0].Negotiation.Status)
}

func TestInboxServiceStatusFilter(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "alice", "accepted", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "book-2", items[0].Negotiation.TargetBookID)
}

func TestInboxServiceRejectsUnknownFilterAndSort(t *testing.T) {
	svc, _ := newInboxFixture(t)

	_, err := svc.List(context.Background(), "alice", "bogus", "")
	require.ErrorIs(t, err, ErrInvalidFilter)

	_, err = svc.List(context.Background(), "alice", "", "shoe_size")
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestInboxServiceDeduplicatesOverlap(t *testing.T) {
	svc, negotiations := newInboxFixture(t)

	// A legacy row where one account ended up on both sides must not appear
	// twice in the merged listing.
	weird := models.SwapNegotiation{SenderID: "alice", ReceiverID: "alice", TargetBookID: "book-9", Status: models.StatusPending}
	require.NoError(t, negotiations.Create(context.Background(), &weird))

	items, err := svc.List(context.Background(), "alice", "", "")
	require.NoError(t, err)
	require.Len(t, items, 4)
}

func TestInboxServiceSnapshotCarriesUserAndTimestamp(t *testing.T) {
	svc, _ := newInboxFixture(t)

	snapshot, err := svc.Snapshot(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", snapshot.UserID)
	require.Len(t, snapshot.Items, 3)
	require.False(t, snapshot.GeneratedAt.IsZero())
}

func TestInboxServiceEmptyInbox(t *testing.T) {
	svc, _ := newInboxFixture(t)

	items, err := svc.List(context.Background(), "nobody", "", "")
	require.NoError(t, err)
	require.Empty(t, items)
}
