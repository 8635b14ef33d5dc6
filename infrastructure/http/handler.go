package http

import (
	"club-chat/access"
	"club-chat/auth"
	"club-chat/contract"
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"club-chat/errors"
	"club-chat/readstate"
	"club-chat/services"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const defaultSnapshotTimeout = 3 * time.Second

// HistoryReader pages through a club history, newest first.
type HistoryReader interface {
	History(ctx context.Context, clubID chat.ClubID, cursor *string) (chat.Snapshot, *string, error)
}

// UserDirectory lists the registered profiles.
type UserDirectory interface {
	ListUsers() ([]account.User, error)
}

type Handler struct {
	log             *slog.Logger
	authService     services.IAuthService
	store           contract.MessageStore
	history         HistoryReader
	members         contract.MembershipChecker
	directory       UserDirectory
	trackers        *readstate.Trackers
	snapshotTimeout time.Duration
}

func NewHandler(
	log *slog.Logger,
	authService services.IAuthService,
	store contract.MessageStore,
	history HistoryReader,
	members contract.MembershipChecker,
	directory UserDirectory,
	trackers *readstate.Trackers,
) *Handler {
	return &Handler{
		log:             log,
		authService:     authService,
		store:           store,
		history:         history,
		members:         members,
		directory:       directory,
		trackers:        trackers,
		snapshotTimeout: defaultSnapshotTimeout,
	}
}

type MembershipResponse struct {
	ClubID chat.ClubID `json:"clubId"`
	access.MembershipStatus
	Confirmed bool `json:"confirmed"`
}

type NotificationsResponse struct {
	Total         int                      `json:"total"`
	Notifications []readstate.Notification `json:"notifications"`
}

type MembersResponse struct {
	ClubID  chat.ClubID     `json:"clubId"`
	Members []access.Member `json:"members"`
}

type ReadResponse struct {
	ClubID   chat.ClubID `json:"clubId"`
	LastRead time.Time   `json:"lastRead"`
}

type HistoryResponse struct {
	ClubID     chat.ClubID   `json:"clubId"`
	Messages   chat.Snapshot `json:"messages"`
	NextCursor *string       `json:"nextCursor,omitempty"`
}

// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json", errors.ErrValidation))
		return
	}
	sess, err := h.authService.Login(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json", errors.ErrValidation))
		return
	}
	sess, err := h.authService.Register(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// GET /api/clubs/{clubID}/membership
// The directory is only asked when the policy grants access.
func (h *Handler) Membership(w http.ResponseWriter, r *http.Request) {
	user, clubID := h.caller(r)
	status := access.Evaluate(&user, clubID)
	res := MembershipResponse{ClubID: clubID, MembershipStatus: status}
	if status.CanAccess {
		ok, err := h.members.IsMember(r.Context(), clubID, user.UID)
		if err != nil {
			h.log.Warn("Membership check failed", "club_id", clubID, "user_id", user.UID, "error", err)
			writeError(w, fmt.Errorf("%w: %v", errors.ErrMembershipCheckFailed, err))
			return
		}
		res.Confirmed = ok
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/notifications?clubs=a,b
// Without the clubs parameter the clubs of the user profile are used.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	clubIDs := requestedClubs(r, user)

	tracker, release := h.trackers.Acquire(user.UID)
	defer release()
	h.track(r.Context(), tracker, user.UID, clubIDs)

	notifications := lo.Filter(tracker.Notifications(), func(n readstate.Notification, _ int) bool {
		return lo.Contains(clubIDs, n.ClubID)
	})
	writeJSON(w, http.StatusOK, NotificationsResponse{
		Total:         lo.SumBy(notifications, func(n readstate.Notification) int { return n.UnreadCount }),
		Notifications: notifications,
	})
}

// track reloads the persisted marks and feeds the tracker the current snapshot of every club.
func (h *Handler) track(ctx context.Context, tracker *readstate.Tracker, userID string, clubIDs []chat.ClubID) {
	tracker.Sync()
	ctx, cancel := context.WithTimeout(ctx, h.snapshotTimeout)
	defer cancel()
	for _, clubID := range clubIDs {
		snapshot, err := firstSnapshot(ctx, h.store, clubID)
		if err != nil {
			h.log.Warn("Skipping club in notifications", "club_id", clubID, "user_id", userID, "error", err)
			continue
		}
		tracker.Track(clubID, snapshot)
	}
}

// POST /api/clubs/{clubID}/read
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	user, clubID := h.caller(r)
	if !access.HasChatAccess(&user, clubID) {
		writeError(w, fmt.Errorf("%w: %s", errors.ErrAccessDenied, clubID))
		return
	}
	tracker, release := h.trackers.Acquire(user.UID)
	defer release()
	tracker.Sync()
	if err := tracker.MarkAsRead(clubID); err != nil {
		h.log.Error("Mark as read failed", "club_id", clubID, "user_id", user.UID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReadResponse{ClubID: clubID, LastRead: tracker.LastRead(clubID)})
}

// POST /api/notifications/clear?clubs=a,b
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	tracker, release := h.trackers.Acquire(user.UID)
	defer release()
	h.track(r.Context(), tracker, user.UID, requestedClubs(r, user))
	if err := tracker.ClearAllNotifications(); err != nil {
		h.log.Error("Clear notifications failed", "user_id", user.UID, "error", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/clubs/{clubID}/members
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	user, clubID := h.caller(r)
	if !access.HasChatAccess(&user, clubID) {
		writeError(w, fmt.Errorf("%w: %s", errors.ErrAccessDenied, clubID))
		return
	}
	users, err := h.directory.ListUsers()
	if err != nil {
		h.log.Error("Listing club members failed", "club_id", clubID, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MembersResponse{ClubID: clubID, Members: access.MembersOf(users, clubID)})
}

// GET /api/clubs/{clubID}/history?cursor=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, clubID := h.caller(r)
	if !access.HasChatAccess(&user, clubID) {
		writeError(w, fmt.Errorf("%w: %s", errors.ErrAccessDenied, clubID))
		return
	}
	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := h.history.History(r.Context(), clubID, cursor)
	if err != nil {
		h.log.Error("History read failed", "club_id", clubID, "error", err)
		writeError(w, fmt.Errorf("%w: %v", errors.ErrStream, err))
		return
	}
	if messages == nil {
		messages = chat.Snapshot{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{ClubID: clubID, Messages: messages, NextCursor: next})
}

func (h *Handler) caller(r *http.Request) (account.User, chat.ClubID) {
	user, _ := auth.UserFromContext(r.Context())
	return user, chat.ClubID(chi.URLParam(r, "clubID"))
}

func requestedClubs(r *http.Request, user account.User) []chat.ClubID {
	var clubIDs []chat.ClubID
	if raw := r.URL.Query().Get("clubs"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				clubIDs = append(clubIDs, chat.ClubID(id))
			}
		}
	} else {
		if user.ClubID != "" {
			clubIDs = append(clubIDs, user.ClubID)
		}
		clubIDs = append(clubIDs, user.EnrolledClubs...)
	}
	return lo.Filter(lo.Uniq(clubIDs), func(clubID chat.ClubID, _ int) bool {
		return access.HasChatAccess(&user, clubID)
	})
}

// firstSnapshot subscribes just long enough to receive the initial snapshot.
func firstSnapshot(ctx context.Context, store contract.MessageStore, clubID chat.ClubID) (chat.Snapshot, error) {
	snapshots := make(chan chat.Snapshot, 1)
	failures := make(chan error, 1)
	unsubscribe, err := store.Subscribe(clubID,
		func(snapshot chat.Snapshot) {
			select {
			case snapshots <- snapshot:
			default:
			}
		},
		func(err error) {
			select {
			case failures <- err:
			default:
			}
		})
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	select {
	case snapshot := <-snapshots:
		return snapshot, nil
	case err := <-failures:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", errors.ErrStream, ctx.Err())
	}
}
