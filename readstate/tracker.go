// Package readstate keeps the per-club last-read timestamps of one user and
// derives unread counts from the snapshots it is fed.
package readstate

import (
	"club-chat/contract"
	"club-chat/domain/chat"
	"club-chat/errors"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

const keyPrefix = "chat_read_timestamps_"

// Epoch is the last-read time of a club that was never read.
var Epoch = time.Unix(0, 0).UTC()

// Key is the local storage key holding the read state of the user.
func Key(userID string) string {
	return keyPrefix + userID
}

type Notification struct {
	ClubID            chat.ClubID   `json:"clubId"`
	ClubName          string        `json:"clubName,omitempty"`
	UnreadCount       int           `json:"unreadCount"`
	LastMessage       *chat.Message `json:"lastMessage,omitempty"`
	LastReadTimestamp time.Time     `json:"lastReadTimestamp"`
}

// Tracker is safe for concurrent use. Every read-modify-write of the persisted
// map happens under the same lock so concurrent MarkAsRead calls never lose updates.
type Tracker struct {
	log     *slog.Logger
	storage contract.LocalStorage
	userID  string
	now     func() time.Time

	mu        sync.Mutex
	lastRead  map[chat.ClubID]time.Time
	snapshots map[chat.ClubID]chat.Snapshot
	names     map[chat.ClubID]string
	tracked   []chat.ClubID
}

func NewTracker(log *slog.Logger, storage contract.LocalStorage, userID string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		log:       log.With("user_id", userID),
		storage:   storage,
		userID:    userID,
		now:       now,
		snapshots: make(map[chat.ClubID]chat.Snapshot),
		names:     make(map[chat.ClubID]string),
	}
	t.lastRead = t.load()
	return t
}

// load never fails: unreadable state means every club is unread.
func (t *Tracker) load() map[chat.ClubID]time.Time {
	lastRead := make(map[chat.ClubID]time.Time)
	stored, ok, err := t.storage.GetItem(Key(t.userID))
	if err != nil {
		t.log.Warn("Unable to read persisted read state", "error", err)
		return lastRead
	}
	if !ok || stored == "" {
		return lastRead
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stored), &raw); err != nil {
		t.log.Warn("Discarding corrupt read state", "error", err)
		return lastRead
	}
	for clubID, value := range raw {
		var text string
		if err := json.Unmarshal(value, &text); err != nil {
			t.log.Debug("Skipping malformed read state entry", "club_id", clubID)
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, text)
		if err != nil {
			t.log.Debug("Skipping malformed read state entry", "club_id", clubID, "value", text)
			continue
		}
		lastRead[chat.ClubID(clubID)] = at.UTC()
	}
	return lastRead
}

// Sync reloads the persisted state, picking up writes made by another process.
func (t *Tracker) Sync() {
	lastRead := t.load()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRead = lastRead
}

// Track records the latest snapshot of the club.
func (t *Tracker) Track(clubID chat.ClubID, snapshot chat.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.snapshots[clubID]; !ok {
		t.tracked = append(t.tracked, clubID)
	}
	t.snapshots[clubID] = slices.Clone(snapshot)
}

// Name labels the club in notifications. An empty name keeps the known one.
func (t *Tracker) Name(clubID chat.ClubID, name string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names[clubID] = name
}

// Watch subscribes to every club and feeds the tracker until the returned function is called.
func (t *Tracker) Watch(store contract.MessageStore, clubIDs []chat.ClubID) (func(), error) {
	var unsubscribes []func()
	stopAll := func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
	for _, clubID := range lo.Uniq(clubIDs) {
		unsubscribe, err := store.Subscribe(clubID,
			func(snapshot chat.Snapshot) { t.Track(clubID, snapshot) },
			func(err error) {
				t.log.Warn("Read state subscription failed", "club_id", clubID, "error", err)
			},
		)
		if err != nil {
			stopAll()
			return nil, fmt.Errorf("watch club %s: %w", clubID, err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}
	var once sync.Once
	return func() { once.Do(stopAll) }, nil
}

// MarkAsRead moves the last-read marker of the club to now, or to its newest
// message when that one is stamped ahead of the local clock.
func (t *Tracker) MarkAsRead(clubID chat.ClubID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRead[clubID] = t.readMark(clubID, t.now().UTC())
	return t.persist()
}

// ClearAllNotifications marks every tracked club as read in a single write.
func (t *Tracker) ClearAllNotifications() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	for _, clubID := range t.tracked {
		t.lastRead[clubID] = t.readMark(clubID, now)
	}
	return t.persist()
}

func (t *Tracker) readMark(clubID chat.ClubID, now time.Time) time.Time {
	mark := now
	for _, message := range t.snapshots[clubID] {
		if message.Timestamp != nil && message.Timestamp.After(mark) {
			mark = message.Timestamp.UTC()
		}
	}
	return mark
}

func (t *Tracker) persist() error {
	toSave := make(map[string]string, len(t.lastRead))
	for clubID, at := range t.lastRead {
		toSave[string(clubID)] = at.Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(toSave)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrReadStatePersist, err)
	}
	if err := t.storage.SetItem(Key(t.userID), string(data)); err != nil {
		t.log.Warn("Unable to persist read state", "error", err)
		return fmt.Errorf("%w: %v", errors.ErrReadStatePersist, err)
	}
	return nil
}

// UnreadCount counts stamped messages of other users newer than the last read time.
// Pending messages are not counted until the store stamps them.
func (t *Tracker) UnreadCount(clubID chat.ClubID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unread(clubID)
}

func (t *Tracker) unread(clubID chat.ClubID) int {
	lastRead := t.lastReadOf(clubID)
	return lo.CountBy(t.snapshots[clubID], func(m chat.Message) bool {
		return m.Timestamp != nil && m.Timestamp.After(lastRead) && m.SenderID != t.userID
	})
}

func (t *Tracker) lastReadOf(clubID chat.ClubID) time.Time {
	if at, ok := t.lastRead[clubID]; ok {
		return at
	}
	return Epoch
}

func (t *Tracker) TotalUnread() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return lo.SumBy(t.tracked, t.unread)
}

// Notifications lists tracked clubs in the order they were first seen.
func (t *Tracker) Notifications() []Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return lo.Map(t.tracked, func(clubID chat.ClubID, _ int) Notification {
		notification := Notification{
			ClubID:            clubID,
			ClubName:          t.names[clubID],
			UnreadCount:       t.unread(clubID),
			LastReadTimestamp: t.lastReadOf(clubID),
		}
		if last, ok := lastOf(t.snapshots[clubID]); ok {
			notification.LastMessage = &last
		}
		return notification
	})
}

func (t *Tracker) LastMessage(clubID chat.ClubID) (chat.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return lastOf(t.snapshots[clubID])
}

func lastOf(snapshot chat.Snapshot) (chat.Message, bool) {
	if len(snapshot) == 0 {
		return chat.Message{}, false
	}
	return snapshot[len(snapshot)-1], true
}

func (t *Tracker) LastRead(clubID chat.ClubID) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReadOf(clubID)
}

// Trackers hands out one tracker per user so that every write of a user goes through the same lock.
// A tracker lives while at least one caller holds it, the persisted marks outlive it.
type Trackers struct {
	log     *slog.Logger
	storage contract.LocalStorage
	now     func() time.Time

	mu     sync.Mutex
	byUser map[string]*trackerRef
}

type trackerRef struct {
	tracker *Tracker
	holders int
}

func NewTrackers(log *slog.Logger, storage contract.LocalStorage, now func() time.Time) *Trackers {
	return &Trackers{log: log, storage: storage, now: now, byUser: make(map[string]*trackerRef)}
}

// Acquire returns the tracker of the user and the function releasing it.
// Releasing twice is a no-op.
func (t *Trackers) Acquire(userID string) (*Tracker, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref, ok := t.byUser[userID]
	if !ok {
		ref = &trackerRef{tracker: NewTracker(t.log, t.storage, userID, t.now)}
		t.byUser[userID] = ref
	}
	ref.holders++

	var once sync.Once
	return ref.tracker, func() {
		once.Do(func() { t.release(userID, ref) })
	}
}

func (t *Trackers) release(userID string, ref *trackerRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ref.holders--
	if ref.holders <= 0 && t.byUser[userID] == ref {
		delete(t.byUser, userID)
	}
}

// Held counts the users with a live tracker.
func (t *Trackers) Held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byUser)
}
