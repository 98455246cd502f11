package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/models"
	"github.com/noah-isme/bookswap-go-api/internal/repository"
)

type stubNegotiationRepo struct {
	negotiations map[uint]models.SwapNegotiation
	nextID       uint
	failCreate   error
}

func newStubNegotiationRepo() *stubNegotiationRepo {
	return &stubNegotiationRepo{negotiations: make(map[uint]models.SwapNegotiation)}
}

func (s *stubNegotiationRepo) Create(ctx context.Context, negotiation *models.SwapNegotiation) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	for _, existing := range s.negotiations {
		if existing.ActiveKey != nil && negotiation.ActiveKey != nil && *existing.ActiveKey == *negotiation.ActiveKey {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	negotiation.ID = s.nextID
	negotiation.CreatedAt = time.Now()
	negotiation.UpdatedAt = negotiation.CreatedAt
	s.negotiations[negotiation.ID] = *negotiation
	return nil
}

func (s *stubNegotiationRepo) FindByID(ctx context.Context, id uint) (models.SwapNegotiation, error) {
	negotiation, ok := s.negotiations[id]
	if !ok {
		return models.SwapNegotiation{}, repository.ErrNotFound
	}
	return negotiation, nil
}

func (s *stubNegotiationRepo) Save(ctx context.Context, negotiation *models.SwapNegotiation) error {
	s.negotiations[negotiation.ID] = *negotiation
	return nil
}

func (s *stubNegotiationRepo) ListBySender(ctx context.Context, senderID string, status *models.NegotiationStatus) ([]models.SwapNegotiation, error) {
	return s.listBy(func(n models.SwapNegotiation) bool { return n.SenderID == senderID }, status), nil
}

func (s *stubNegotiationRepo) ListByReceiver(ctx context.Context, receiverID string, status *models.NegotiationStatus) ([]models.SwapNegotiation, error) {
	return s.listBy(func(n models.SwapNegotiation) bool { return n.ReceiverID == receiverID }, status), nil
}

func (s *stubNegotiationRepo) listBy(match func(models.SwapNegotiation) bool, status *models.NegotiationStatus) []models.SwapNegotiation {
	var out []models.SwapNegotiation
	for id := uint(1); id <= s.nextID; id++ {
		negotiation, ok := s.negotiations[id]
		if !ok || !match(negotiation) {
			continue
		}
		if status != nil && negotiation.Status != *status {
			continue
		}
		out = append(out, negotiation)
	}
	return out
}

func (s *stubNegotiationRepo) ActiveExists(ctx context.Context, senderID, receiverID, bookID string) (bool, error) {
	key := models.ActiveTripleKey(senderID, receiverID, bookID)
	for _, negotiation := range s.negotiations {
		if negotiation.ActiveKey != nil && *negotiation.ActiveKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubNegotiationRepo) SetReadAt(ctx context.Context, id uint, forSender bool, at time.Time) error {
	negotiation, ok := s.negotiations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if forSender {
		negotiation.ReadBySenderAt = &at
	} else {
		negotiation.ReadByReceiverAt = &at
	}
	s.negotiations[id] = negotiation
	return nil
}

type stubDirectory struct {
	users map[string]models.UserSummary
}

func (s *stubDirectory) Get(ctx context.Context, id string) (models.UserSummary, error) {
	user, ok := s.users[id]
	if !ok {
		return models.UserSummary{}, repository.ErrNotFound
	}
	return user, nil
}

type stubCatalog struct {
	books map[string]models.BookSummary
}

func (s *stubCatalog) Get(ctx context.Context, id string) (models.BookSummary, error) {
	book, ok := s.books[id]
	if !ok {
		return models.BookSummary{}, repository.ErrNotFound
	}
	return book, nil
}

type notifierCall struct {
	kind   string
	userID string
	id     uint
	text   string
}

// recordingNotifier satisfies NotifierService without any delivery machinery.
type recordingNotifier struct {
	calls   []notifierCall
	refresh [][]string
}

func (s *recordingNotifier) NegotiationCreated(receiverID string, negotiationID uint, summary string) {
	s.calls = append(s.calls, notifierCall{kind: NoticeNegotiationCreated, userID: receiverID, id: negotiationID, text: summary})
}

func (s *recordingNotifier) NegotiationStatusChanged(senderID string, negotiationID uint, status models.NegotiationStatus, summary string) {
	s.calls = append(s.calls, notifierCall{kind: NoticeNegotiationStatus, userID: senderID, id: negotiationID, text: summary})
}

func (s *recordingNotifier) ChatMessagePosted(recipientID string, negotiationID uint, summary string) {
	s.calls = append(s.calls, notifierCall{kind: NoticeChatMessage, userID: recipientID, id: negotiationID, text: summary})
}

func (s *recordingNotifier) InboxChanged(userIDs ...string) {
	s.refresh = append(s.refresh, userIDs)
}

func (s *recordingNotifier) SubscribeInbox(userID string) (<-chan InboxEvent, func()) {
	return make(chan InboxEvent), func() {}
}

func (s *recordingNotifier) SubscribeNotices(userID string) (<-chan dto.NotificationResponse, func()) {
	return make(chan dto.NotificationResponse), func() {}
}

func (s *recordingNotifier) List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error) {
	return nil, nil
}

func (s *recordingNotifier) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	return dto.NotificationResponse{}, nil
}

func (s *recordingNotifier) Start(ctx context.Context) {}

func newNegotiationFixture() (*stubNegotiationRepo, *recordingNotifier, NegotiationService) {
	repo := newStubNegotiationRepo()
	notifier := &recordingNotifier{}
	users := &stubDirectory{users: map[string]models.UserSummary{
		"alice": {ID: "alice", DisplayName: "Alice"},
		"bob":   {ID: "bob", DisplayName: "Bob"},
	}}
	books := &stubCatalog{books: map[string]models.BookSummary{
		"book-1": {
			ID:                "book-1",
			Title:             "Dune",
			OwnerID:           "bob",
			SwappableBookIDs:  []string{"book-9"},
			SwappableGenreIDs: []string{"genre-scifi"},
		},
	}}
	svc := NewNegotiationService(repo, users, books, notifier, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
	return repo, notifier, svc
}

func strPtr(v string) *string { return &v }

func TestNegotiationServiceProposeByBooks(t *testing.T) {
	_, notifier, svc := newNegotiationFixture()

	response, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID:    "bob",
		TargetBookID:  "book-1",
		ProposalKind:  "by_books",
		OfferedBookID: strPtr("book-9"),
		Note:          "<b>deal?</b>",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", response.Status)
	require.Equal(t, "alice", response.SenderID)
	require.Equal(t, "deal?", response.Note, "note is sanitized to plain text")

	require.Len(t, notifier.calls, 1)
	require.Equal(t, NoticeNegotiationCreated, notifier.calls[0].kind)
	require.Equal(t, "bob", notifier.calls[0].userID)
	require.Contains(t, notifier.calls[0].text, "Dune")
}

func TestNegotiationServiceProposeRejectsSelf(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	_, err := svc.Propose(context.Background(), "bob", dto.NegotiationCreateRequest{
		ReceiverID:   "bob",
		TargetBookID: "book-1",
		ProposalKind: "open_for_offers",
	})
	require.ErrorIs(t, err, ErrSelfNegotiation)
}

func TestNegotiationServiceProposeUnknownReceiver(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	_, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID:   "nobody",
		TargetBookID: "book-1",
		ProposalKind: "open_for_offers",
	})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestNegotiationServiceProposeRejectsDuplicateActive(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	payload := dto.NegotiationCreateRequest{
		ReceiverID:   "bob",
		TargetBookID: "book-1",
		ProposalKind: "open_for_offers",
	}

	_, err := svc.Propose(context.Background(), "alice", payload)
	require.NoError(t, err)

	_, err = svc.Propose(context.Background(), "alice", payload)
	require.ErrorIs(t, err, ErrNegotiationExists)
}

func TestNegotiationServiceProposeSurvivesCreateRace(t *testing.T) {
	repo, _, svc := newNegotiationFixture()
	repo.failCreate = repository.ErrDuplicate

	_, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID:   "bob",
		TargetBookID: "book-1",
		ProposalKind: "open_for_offers",
	})
	require.ErrorIs(t, err, ErrNegotiationExists)
}

func TestNegotiationServiceProposeRejectsForeignBook(t *testing.T) {
	repo, notifier, _ := newNegotiationFixture()
	users := &stubDirectory{users: map[string]models.UserSummary{
		"alice": {ID: "alice"}, "bob": {ID: "bob"},
	}}
	books := &stubCatalog{books: map[string]models.BookSummary{
		"book-1": {ID: "book-1", Title: "Dune", OwnerID: "carol"},
	}}
	svc := NewNegotiationService(repo, users, books, notifier, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	_, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID:   "bob",
		TargetBookID: "book-1",
		ProposalKind: "open_for_offers",
	})
	require.ErrorIs(t, err, ErrBookNotOwned)
}

func TestNegotiationServiceProposeOfferShape(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	cases := []struct {
		name    string
		payload dto.NegotiationCreateRequest
		want    error
	}{
		{
			name: "by_books without reference",
			payload: dto.NegotiationCreateRequest{
				ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "by_books",
			},
			want: ErrOfferShape,
		},
		{
			name: "by_books with both references",
			payload: dto.NegotiationCreateRequest{
				ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "by_books",
				OfferedBookID: strPtr("book-9"), OfferedGenreID: strPtr("genre-scifi"),
			},
			want: ErrOfferShape,
		},
		{
			name: "give_away with reference",
			payload: dto.NegotiationCreateRequest{
				ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "give_away",
				OfferedBookID: strPtr("book-9"),
			},
			want: ErrOfferShape,
		},
		{
			name: "by_books outside swappable set",
			payload: dto.NegotiationCreateRequest{
				ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "by_books",
				OfferedBookID: strPtr("book-404"),
			},
			want: ErrOfferNotEligible,
		},
		{
			name: "by_genres outside swappable set",
			payload: dto.NegotiationCreateRequest{
				ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "by_genres",
				OfferedGenreID: strPtr("genre-romance"),
			},
			want: ErrOfferNotEligible,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Propose(context.Background(), "alice", tc.payload)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNegotiationServiceTransitionByReceiver(t *testing.T) {
	repo, notifier, svc := newNegotiationFixture()

	created, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "open_for_offers",
	})
	require.NoError(t, err)

	updated, err := svc.Transition(context.Background(), created.ID, "bob", dto.NegotiationStatusUpdateRequest{Status: "accepted"})
	require.NoError(t, err)
	require.Equal(t, "accepted", updated.Status)

	last := notifier.calls[len(notifier.calls)-1]
	require.Equal(t, NoticeNegotiationStatus, last.kind)
	require.Equal(t, "alice", last.userID)
	require.Contains(t, last.text, "accepted")

	// Accepted has no successors.
	_, err = svc.Transition(context.Background(), created.ID, "bob", dto.NegotiationStatusUpdateRequest{Status: "rejected"})
	require.ErrorIs(t, err, ErrInvalidTransition)

	stored := repo.negotiations[created.ID]
	require.NotNil(t, stored.ActiveKey, "non-terminal statuses keep the active key")
}

func TestNegotiationServiceTransitionRejectsNonReceiver(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	created, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "open_for_offers",
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), created.ID, "alice", dto.NegotiationStatusUpdateRequest{Status: "accepted"})
	require.ErrorIs(t, err, ErrNotReceiver)
}

func TestNegotiationServiceRejectionReleasesActiveKey(t *testing.T) {
	repo, _, svc := newNegotiationFixture()

	created, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "open_for_offers",
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), created.ID, "bob", dto.NegotiationStatusUpdateRequest{Status: "rejected"})
	require.NoError(t, err)

	stored := repo.negotiations[created.ID]
	require.Nil(t, stored.ActiveKey)

	// The same triple can be proposed again once the old one is terminal.
	_, err = svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "open_for_offers",
	})
	require.NoError(t, err)
}

func TestNegotiationServiceTransitionUnknownNegotiation(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	_, err := svc.Transition(context.Background(), 99, "bob", dto.NegotiationStatusUpdateRequest{Status: "accepted"})
	require.ErrorIs(t, err, ErrNegotiationNotFound)
}

func TestNegotiationServiceMarkRead(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	created, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "open_for_offers",
	})
	require.NoError(t, err)

	marked, err := svc.MarkRead(context.Background(), created.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, marked.ReadBySenderAt)
	require.Nil(t, marked.ReadByReceiverAt)

	_, err = svc.MarkRead(context.Background(), created.ID, "carol")
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestNegotiationServiceGetRequiresParty(t *testing.T) {
	_, _, svc := newNegotiationFixture()

	created, err := svc.Propose(context.Background(), "alice", dto.NegotiationCreateRequest{
		ReceiverID: "bob", TargetBookID: "book-1", ProposalKind: "open_for_offers",
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), created.ID, "bob")
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), created.ID, "mallory")
	require.ErrorIs(t, err, ErrNotParticipant)
}
