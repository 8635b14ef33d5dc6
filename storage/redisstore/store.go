// Package redisstore is the multi-instance message store.
//
// Messages live in one redis stream per club, the stream entry ID is the server
// ordering key. Every append publishes on the club events channel and each
// subscriber re-reads the stream when notified.
package redisstore

import (
	"club-chat/contract"
	"club-chat/domain/chat"
	"club-chat/errors"
	"club-chat/runtime"
	"club-chat/storage"
	"context"
	errs "errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

const (
	fieldID          = "id"
	fieldSenderID    = "sender_id"
	fieldSenderName  = "sender_name"
	fieldSenderEmail = "sender_email"
	fieldSenderRole  = "sender_role"
	fieldText        = "text"
	fieldCreatedAt   = "created_at"

	defaultPageSize         = 50
	defaultHandshakeTimeout = 5 * time.Second
)

func messagesKey(clubID chat.ClubID) string {
	return fmt.Sprintf("clubs:%s:messages", clubID)
}

func eventsKey(clubID chat.ClubID) string {
	return fmt.Sprintf("clubs:%s:events", clubID)
}

type Config struct {
	// SnapshotLimit keeps only the newest messages in a snapshot, 0 means the whole stream.
	SnapshotLimit int64
	// MaxLen trims the stream on append, 0 disables trimming.
	MaxLen   int64
	PageSize int64
	// HandshakeTimeout bounds the channel confirmation and the first read of Subscribe.
	HandshakeTimeout time.Duration
}

type Store struct {
	log     *slog.Logger
	rdb     redis.UniversalClient
	members contract.MembershipChecker
	cfg     Config
	now     func() time.Time
}

func New(log *slog.Logger, rdb redis.UniversalClient, members contract.MembershipChecker, cfg Config) *Store {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Store{log: log, rdb: rdb, members: members, cfg: cfg, now: time.Now}
}

func (s *Store) Append(ctx context.Context, clubID chat.ClubID, sender chat.Sender, text string) error {
	command := chat.PostMessageCommand{
		ClubID:    clubID,
		Sender:    sender,
		Text:      strings.TrimSpace(text),
		CreatedAt: s.now().UTC(),
	}
	if err := storage.ValidateCommand(command); err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: messagesKey(clubID),
		Values: map[string]any{
			fieldID:          uuid.NewString(),
			fieldSenderID:    sender.UID,
			fieldSenderName:  sender.Name,
			fieldSenderEmail: sender.Email,
			fieldSenderRole:  sender.Role,
			fieldText:        command.Text,
			fieldCreatedAt:   command.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if s.cfg.MaxLen > 0 {
		args.MaxLen = s.cfg.MaxLen
		args.Approx = true
	}
	streamID, err := s.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSendFailed, err)
	}
	// The message is durable at this point, a lost notification only delays delivery
	if err := s.rdb.Publish(ctx, eventsKey(clubID), streamID).Err(); err != nil {
		s.log.Warn("Unable to notify club subscribers", "club_id", clubID, "error", err)
	}
	return nil
}

func (s *Store) Subscribe(clubID chat.ClubID, onSnapshot func(chat.Snapshot), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	handshakeCtx, cancelHandshake := context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
	defer cancelHandshake()

	pubsub := s.rdb.Subscribe(handshakeCtx, eventsKey(clubID))
	// Wait for the confirmation so no append is missed between the snapshot and the first notification
	if _, err := pubsub.Receive(handshakeCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrStream, err)
	}

	snapshot, err := s.Snapshot(handshakeCtx, clubID)
	if err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrStream, err)
	}
	subscription := runtime.NewSubscription(s.log, onSnapshot, onError)
	subscription.Deliver(snapshot)
	go s.listen(ctx, clubID, pubsub, subscription)

	s.log.Debug("Subscribed to club stream", "club_id", clubID, "subscription_id", subscription.ID)
	var once sync.Once
	return func() {
		once.Do(func() {
			subscription.Close()
			cancel()
			_ = pubsub.Close()
		})
	}, nil
}

// listen ends on the first transport failure, resubscribing is left to the caller.
func (s *Store) listen(ctx context.Context, clubID chat.ClubID, pubsub *redis.PubSub, subscription *runtime.Subscription) {
	defer func() { _ = pubsub.Close() }()
	for {
		if _, err := pubsub.ReceiveMessage(ctx); err != nil {
			if ctx.Err() != nil || errs.Is(err, redis.ErrClosed) || subscription.Closed() {
				return
			}
			s.log.Warn("Club stream notifications failed", "club_id", clubID, "error", err)
			subscription.Fail(fmt.Errorf("%w: %v", errors.ErrStream, err))
			return
		}
		snapshot, err := s.Snapshot(ctx, clubID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			subscription.Fail(fmt.Errorf("%w: %v", errors.ErrStream, err))
			return
		}
		subscription.Deliver(snapshot)
	}
}

// Snapshot returns the club messages oldest first.
func (s *Store) Snapshot(ctx context.Context, clubID chat.ClubID) (chat.Snapshot, error) {
	var entries []redis.XMessage
	var err error
	if s.cfg.SnapshotLimit > 0 {
		entries, err = s.rdb.XRevRangeN(ctx, messagesKey(clubID), "+", "-", s.cfg.SnapshotLimit).Result()
		slices.Reverse(entries)
	} else {
		entries, err = s.rdb.XRange(ctx, messagesKey(clubID), "-", "+").Result()
	}
	if err != nil {
		return nil, err
	}
	return toSnapshot(clubID, entries), nil
}

// History returns one page of the club history, newest first.
// The cursor is the stream ID of the last message of the previous page.
func (s *Store) History(ctx context.Context, clubID chat.ClubID, cursor *string) (chat.Snapshot, *string, error) {
	end, count := "+", s.cfg.PageSize
	if cursor != nil {
		// The cursor entry itself is part of the range, read one more and drop it
		end, count = *cursor, count+1
	}
	entries, err := s.rdb.XRevRangeN(ctx, messagesKey(clubID), end, "-", count).Result()
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		entries = lo.Filter(entries, func(entry redis.XMessage, _ int) bool { return entry.ID != *cursor })
	}
	if int64(len(entries)) > s.cfg.PageSize {
		entries = entries[:s.cfg.PageSize]
	}
	if len(entries) == 0 {
		return chat.Snapshot{}, nil, nil
	}
	next := entries[len(entries)-1].ID
	return toSnapshot(clubID, entries), &next, nil
}

func (s *Store) IsMember(ctx context.Context, clubID chat.ClubID, userID string) (bool, error) {
	return s.members.IsMember(ctx, clubID, userID)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func toSnapshot(clubID chat.ClubID, entries []redis.XMessage) chat.Snapshot {
	return lo.Map(entries, func(entry redis.XMessage, _ int) chat.Message {
		return toMessage(clubID, entry)
	})
}

func toMessage(clubID chat.ClubID, entry redis.XMessage) chat.Message {
	message := chat.Message{
		ID:         field(entry, fieldID),
		ClubID:     clubID,
		SenderID:   field(entry, fieldSenderID),
		SenderName: field(entry, fieldSenderName),
		Text:       field(entry, fieldText),
	}
	if message.ID == "" {
		message.ID = entry.ID
	}
	if createdAt, err := time.Parse(time.RFC3339Nano, field(entry, fieldCreatedAt)); err == nil {
		message.CreatedAt = createdAt
	}
	if at, ok := streamTime(entry.ID); ok {
		message.Timestamp = &at
		if message.CreatedAt.IsZero() {
			message.CreatedAt = at
		}
	}
	return message
}

func field(entry redis.XMessage, name string) string {
	value, ok := entry.Values[name]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return fmt.Sprint(value)
	}
	return text
}

// streamTime reads the millisecond part of a "<ms>-<seq>" stream ID.
func streamTime(streamID string) (time.Time, bool) {
	millis, _, found := strings.Cut(streamID, "-")
	if !found {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
