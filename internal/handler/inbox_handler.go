package handler

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bookswap-go-api/internal/middleware"
	"github.com/noah-isme/bookswap-go-api/internal/service"
	"github.com/noah-isme/bookswap-go-api/internal/utils"
)

// InboxHandler exposes the unified inbox, both as a plain listing and as a
// websocket that pushes a fresh snapshot whenever the inbox changes.
type InboxHandler struct {
	inbox    service.InboxService
	notifier service.NotifierService
	logger   zerolog.Logger
}

// NewInboxHandler constructs a handler instance.
func NewInboxHandler(inbox service.InboxService, notifier service.NotifierService, logger zerolog.Logger) *InboxHandler {
	return &InboxHandler{
		inbox:    inbox,
		notifier: notifier,
		logger:   logger.With().Str("component", "inbox_handler").Logger(),
	}
}

// Register binds the inbox routes under the provided router group.
func (h *InboxHandler) Register(router fiber.Router) {
	router.Get("/", h.list)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *InboxHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))

	items, err := h.inbox.List(ctx, userID, c.Query("status"), c.Query("sort_by"))
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "inbox", items)
}

// handleConnection pushes a full snapshot on connect, again whenever the
// dispatcher signals a change for this user, and on demand when the client
// sends a "refresh" text frame.
func (h *InboxHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	events, unsubscribe := h.notifier.SubscribeInbox(userID)
	defer unsubscribe()

	h.logger.Info().Str("user_id", userID).Msg("inbox websocket connected")
	defer h.logger.Info().Str("user_id", userID).Msg("inbox websocket disconnected")

	if !h.pushSnapshot(ctx, conn, userID) {
		return
	}

	// The reader goroutine owns the connection lifetime: a read error means
	// the client went away and the writer loop must stop.
	refresh := make(chan struct{}, 1)
	go func() {
		defer cancel()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.EqualFold(strings.TrimSpace(string(payload)), "refresh") {
				select {
				case refresh <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if !h.pushSnapshot(ctx, conn, userID) {
				return
			}
		case <-refresh:
			if !h.pushSnapshot(ctx, conn, userID) {
				return
			}
		}
	}
}

func (h *InboxHandler) pushSnapshot(ctx context.Context, conn *websocket.Conn, userID string) bool {
	snapshot, err := h.inbox.Snapshot(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to build inbox snapshot")
		return false
	}
	if err := conn.WriteJSON(snapshot); err != nil {
		h.logger.Debug().Err(err).Str("user_id", userID).Msg("failed to write inbox snapshot")
		return false
	}
	return true
}

func websocketUserID(conn *websocket.Conn) string {
	if value := conn.Locals("user_id"); value != nil {
		if id, ok := value.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}
