// Package ws drives one websocket connection through its lifecycle:
// Connecting -> Joined -> Active -> Closed.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"livepoll/contract"
	"livepoll/domain"
	"livepoll/domain/event"
	apperrors "livepoll/errors"
	"livepoll/sink"
)

type Handler struct {
	log             *slog.Logger
	registry        contract.IRegistry
	router          contract.IRouter
	votes           contract.IVoteService
	storage         contract.VoteStorage
	bufferSize      int
	deliveryTimeout time.Duration
	storageTimeout  time.Duration
	upgrader        websocket.Upgrader
}

func NewHandler(log *slog.Logger, registry contract.IRegistry, router contract.IRouter,
	votes contract.IVoteService, storage contract.VoteStorage,
	bufferSize int, deliveryTimeout, storageTimeout time.Duration) *Handler {
	return &Handler{
		log:             log,
		registry:        registry,
		router:          router,
		votes:           votes,
		storage:         storage,
		bufferSize:      bufferSize,
		deliveryTimeout: deliveryTimeout,
		storageTimeout:  storageTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP accepts a connection addressed by a path-embedded user id,
// resolves the user, registers the connection and processes inbound
// frames until the peer goes away. Cleanup runs on every exit path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Upgrade failed", "error", err)
		return
	}

	user, err := h.resolveUser(r.Context(), userID)
	if err != nil {
		// Joined is never reached: report and close without registering.
		h.log.Warn("Join refused", "user_id", userID, "error", err)
		h.refuse(conn, "unknown user")
		return
	}

	snk := sink.NewWebsocketSink(h.log, conn, h.bufferSize, h.deliveryTimeout)
	h.registry.Register(user, snk)
	h.log.Info("Voter joined", "user_id", user.ID, "connected", h.registry.Count())

	// The session outlives the upgrade request; connection closure is
	// what ends the read loop.
	ctx := context.Background()

	if _, err := h.router.SendToAll(ctx, event.VoterJoined{DisplayName: user.Name, UserID: user.ID}); err != nil {
		h.log.Error("Join announcement failed", "user_id", user.ID, "error", err)
	}
	h.sendInitialTally(ctx, r, user)

	h.readLoop(ctx, user, conn)

	// A superseded connection must not announce a departure: the user is
	// still online through the connection that replaced this one.
	if !h.registry.Release(user.ID, snk) {
		h.log.Debug("Connection superseded", "user_id", user.ID)
		return
	}
	h.log.Info("Voter left", "user_id", user.ID, "connected", h.registry.Count())

	if _, err := h.router.SendToAll(ctx, event.VoterLeft{DisplayName: user.Name, UserID: user.ID}); err != nil {
		h.log.Debug("Leave announcement failed", "user_id", user.ID, "error", err)
	}
}

func (h *Handler) resolveUser(ctx context.Context, userID string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, h.storageTimeout)
	defer cancel()

	user, err := h.storage.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("resolve user %s: %w", userID, err)
	}
	return user, nil
}

// sendInitialTally lets a late joiner see the current state of the
// poll it asked for via the optional "poll" query parameter.
func (h *Handler) sendInitialTally(ctx context.Context, r *http.Request, user domain.User) {
	pollID := r.URL.Query().Get("poll")
	if pollID == "" {
		return
	}
	tally, err := h.votes.Tally(ctx, pollID)
	if err != nil {
		h.log.Debug("Initial tally unavailable", "poll_id", pollID, "error", err)
		return
	}
	if err := h.router.SendTo(ctx, user.ID, event.FromTally(tally)); err != nil {
		h.log.Debug("Initial tally not delivered", "user_id", user.ID, "error", err)
	}
}

func (h *Handler) readLoop(ctx context.Context, user domain.User, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			h.log.Debug("Read loop ended", "user_id", user.ID, "error", err)
			return
		}

		frame, err := DecodeFrame(raw)
		if err != nil {
			// A malformed message yields a local error response
			// without changing state.
			h.sendError(ctx, user.ID, "malformed message")
			continue
		}

		switch frame.Type {
		case FrameTypeVote:
			h.handleVote(ctx, user, frame)
		}
	}
}

func (h *Handler) handleVote(ctx context.Context, user domain.User, frame Frame) {
	_, err := h.votes.SubmitVote(ctx, user.ID, frame.PollID, frame.OptionID)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrAlreadyVoted):
		// The coordinator has already pushed the rejection frame.
		h.log.Debug("Duplicate vote rejected", "user_id", user.ID, "poll_id", frame.PollID)
	case errors.Is(err, apperrors.ErrInvalidOption):
		h.sendError(ctx, user.ID, "unknown poll or option")
	default:
		h.log.Error("Vote submission failed", "user_id", user.ID, "poll_id", frame.PollID, "error", err)
		h.sendError(ctx, user.ID, "vote could not be recorded")
	}
}

func (h *Handler) sendError(ctx context.Context, userID, reason string) {
	if err := h.router.SendTo(ctx, userID, event.ErrorNotice{Reason: reason}); err != nil {
		h.log.Debug("Error notice not delivered", "user_id", userID, "error", err)
	}
}

func (h *Handler) refuse(conn *websocket.Conn, reason string) {
	if frame, err := event.Marshal(event.ErrorNotice{Reason: reason}); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.Close()
}
