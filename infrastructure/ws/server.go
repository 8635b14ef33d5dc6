// Package ws serves one chat session per websocket connection.
package ws

import (
	"club-chat/access"
	"club-chat/auth"
	"club-chat/contract"
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"club-chat/errors"
	"club-chat/observability"
	"club-chat/readstate"
	"club-chat/session"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	writeWait    = 5 * time.Second
	maxFrameSize = 1 << 16
)

type Server struct {
	log          *slog.Logger
	upgrader     websocket.Upgrader
	tokens       auth.TokenManager
	store        contract.MessageStore
	connectivity contract.Connectivity
	scheduler    contract.Scheduler
	trackers     *readstate.Trackers
	metrics      *observability.SessionMetrics
	session      session.Config

	pingEvery time.Duration
}

func NewServer(
	log *slog.Logger,
	tokens auth.TokenManager,
	store contract.MessageStore,
	connectivity contract.Connectivity,
	scheduler contract.Scheduler,
	trackers *readstate.Trackers,
	metrics *observability.SessionMetrics,
	sessionConfig session.Config,
) *Server {
	return &Server{
		log:          log,
		tokens:       tokens,
		store:        store,
		connectivity: connectivity,
		scheduler:    scheduler,
		trackers:     trackers,
		metrics:      metrics,
		session:      sessionConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// HandleWS serves GET /ws/clubs/{clubID}?token=...&name=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	clubID := chat.ClubID(chi.URLParam(r, "clubID"))
	if clubID == "" {
		http.Error(w, "missing club id", http.StatusBadRequest)
		return
	}
	provider := auth.NewProvider(s.log, s.tokens)
	user, err := provider.SignIn(auth.BearerToken(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "club_id", clubID, "user_id", user.UID, "error", err)
		return
	}
	c := newWsConn(conn, user.UID)
	log := s.log.With("user_id", user.UID, "connection_id", c.id)

	cfg := s.session
	cfg.ClubID = clubID
	cfg.ClubName = r.URL.Query().Get("name")

	tracker, release := s.trackers.Acquire(user.UID)
	defer release()
	tracker.Sync()
	tracker.Name(clubID, cfg.ClubName)
	stopWatching := s.watchOtherClubs(log, tracker, user, clubID)
	defer func() { stopWatching() }()
	// The club left on a switch goes back to the watched ones
	rewatch := func(current chat.ClubID) {
		stopWatching()
		stopWatching = s.watchOtherClubs(log, tracker, user, current)
	}
	sink := newViewSink()
	controller := session.NewController(log, cfg, s.store, provider, s.connectivity, s.scheduler, sink, s.metrics)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		if err := controller.Run(ctx); err != nil {
			log.Warn("Chat session stopped", "error", err)
		}
	}()
	go s.writeLoop(ctx, c, sink, tracker)
	s.readLoop(c, controller, provider, tracker, clubID, rewatch)

	cancel()
	controller.Close()
	if err := c.Close(); err != nil {
		log.Debug("Websocket close failed", "error", err)
	}
	log.Debug("Websocket session ended", "club_id", clubID)
}

// watchOtherClubs keeps the unread total of the remaining clubs of the user current.
func (s *Server) watchOtherClubs(log *slog.Logger, tracker *readstate.Tracker, user *account.User, clubID chat.ClubID) func() {
	others := lo.Filter(lo.Uniq(append([]chat.ClubID{user.ClubID}, user.EnrolledClubs...)), func(id chat.ClubID, _ int) bool {
		return id != "" && id != clubID && access.HasChatAccess(user, id)
	})
	stop, err := tracker.Watch(s.store, others)
	if err != nil {
		log.Warn("Unread tracking of other clubs unavailable", "error", err)
		return func() {}
	}
	return stop
}

func (s *Server) readLoop(c *wsConn, controller *session.Controller, provider *auth.Provider,
	tracker *readstate.Tracker, clubID chat.ClubID, rewatch func(chat.ClubID)) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame inbound
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("", fmt.Errorf("%w: malformed frame", errors.ErrValidation))
			continue
		}

		switch frame.Type {
		case TypeInput:
			var p InputPayload
			if err := decode(frame.Payload, &p); err != nil {
				c.sendError(frame.Type, err)
				continue
			}
			controller.SetInput(p.Text)
		case TypeSubmit:
			if err := controller.Submit(); err != nil {
				c.sendError(frame.Type, err)
			}
		case TypeRetry:
			controller.Retry()
		case TypeDismiss:
			controller.DismissError()
		case TypeRead:
			if err := tracker.MarkAsRead(clubID); err != nil {
				c.sendError(frame.Type, err)
				continue
			}
			_ = c.Send(Message{Type: TypeUnread, Payload: UnreadPayload{
				ClubID: clubID,
				Unread: tracker.UnreadCount(clubID),
				Total:  tracker.TotalUnread(),
			}})
		case TypeSwitch:
			var p SwitchPayload
			if err := decode(frame.Payload, &p); err != nil || p.ClubID == "" {
				c.sendError(frame.Type, fmt.Errorf("%w: club id is required", errors.ErrValidation))
				continue
			}
			clubID = p.ClubID
			tracker.Name(clubID, p.ClubName)
			rewatch(clubID)
			controller.SwitchClub(p.ClubID, p.ClubName)
		case TypeSignIn:
			var p SignInPayload
			if err := decode(frame.Payload, &p); err != nil {
				c.sendError(frame.Type, err)
				continue
			}
			if err := s.refresh(provider, p.Token, c.userID); err != nil {
				c.sendError(frame.Type, err)
			}
		case TypeSignOut:
			provider.SignOut()
		default:
			c.sendError(frame.Type, fmt.Errorf("%w: unknown frame type %q", errors.ErrValidation, frame.Type))
		}
	}
}

// refresh accepts a new token for the user owning the connection only.
func (s *Server) refresh(provider *auth.Provider, token, userID string) error {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return err
	}
	if claims.Subject != userID {
		return fmt.Errorf("%w: token belongs to another user", errors.ErrInvalidToken)
	}
	_, err = provider.SignIn(token)
	return err
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn, sink *viewSink, tracker *readstate.Tracker) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-sink.ready:
			view, ok := sink.take()
			if !ok {
				continue
			}
			if view.Phase == session.Live || view.Phase == session.Reconnecting {
				tracker.Track(view.ClubID, view.Messages)
			}
			err := c.Send(Message{Type: TypeView, Payload: ViewPayload{
				View:   view,
				Unread: tracker.UnreadCount(view.ClubID),
			}})
			if err != nil {
				_ = c.Close()
				return
			}
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

func decode(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload is required", errors.ErrValidation)
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}
