package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookswap-go-api/internal/dto"
	"github.com/noah-isme/bookswap-go-api/internal/handler"
	"github.com/noah-isme/bookswap-go-api/internal/service"
)

type mockNegotiationService struct {
	lastActor   string
	lastPayload interface{}
	response    dto.NegotiationResponse
	err         error
}

func (m *mockNegotiationService) Propose(_ context.Context, senderID string, payload dto.NegotiationCreateRequest) (dto.NegotiationResponse, error) {
	m.lastActor = senderID
	m.lastPayload = payload
	if m.err != nil {
		return dto.NegotiationResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockNegotiationService) Transition(_ context.Context, id uint, actorID string, payload dto.NegotiationStatusUpdateRequest) (dto.NegotiationResponse, error) {
	m.lastActor = actorID
	m.lastPayload = payload
	if m.err != nil {
		return dto.NegotiationResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockNegotiationService) Get(_ context.Context, id uint, viewerID string) (dto.NegotiationResponse, error) {
	m.lastActor = viewerID
	if m.err != nil {
		return dto.NegotiationResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockNegotiationService) MarkRead(_ context.Context, id uint, viewerID string) (dto.NegotiationResponse, error) {
	m.lastActor = viewerID
	if m.err != nil {
		return dto.NegotiationResponse{}, m.err
	}
	return m.response, nil
}

func newNegotiationTestApp(svc service.NegotiationService, userID string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/negotiations", func(c *fiber.Ctx) error {
		if userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	})
	handler.NewNegotiationHandler(svc, zerolog.New(io.Discard)).Register(group)
	return app
}

func TestNegotiationHandler_ProposeCreated(t *testing.T) {
	svc := &mockNegotiationService{response: dto.NegotiationResponse{ID: 1, SenderID: "alice", Status: "pending"}}
	app := newNegotiationTestApp(svc, "alice")

	body, err := json.Marshal(dto.NegotiationCreateRequest{
		ReceiverID:   "bob",
		TargetBookID: "book-1",
		ProposalKind: "open_for_offers",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/negotiations/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "alice", svc.lastActor)

	var response struct {
		Success bool                    `json:"success"`
		Data    dto.NegotiationResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	require.True(t, response.Success)
	require.Equal(t, "pending", response.Data.Status)
}

func TestNegotiationHandler_RequiresAuthentication(t *testing.T) {
	app := newNegotiationTestApp(&mockNegotiationService{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/negotiations/1", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestNegotiationHandler_TransitionErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid transition is a bad request", &service.InvalidTransitionError{Current: "accepted", Requested: "rejected"}, fiber.StatusBadRequest},
		{"non-receiver is a bad request", service.ErrNotReceiver, fiber.StatusBadRequest},
		{"unknown negotiation is not found", service.ErrNegotiationNotFound, fiber.StatusNotFound},
		{"outsider is forbidden", service.ErrNotParticipant, fiber.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newNegotiationTestApp(&mockNegotiationService{err: tc.err}, "alice")

			body, err := json.Marshal(dto.NegotiationStatusUpdateRequest{Status: "accepted"})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPatch, "/api/v1/negotiations/1/status", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestNegotiationHandler_RejectsMalformedID(t *testing.T) {
	app := newNegotiationTestApp(&mockNegotiationService{}, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/negotiations/zero", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
