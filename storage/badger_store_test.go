package storage

import (
	"club-chat/access"
	"club-chat/domain/chat"
	"club-chat/errors"
	"club-chat/mocks"
	"club-chat/repositories"
	"club-chat/runtime"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupStore(t *testing.T) (*BadgerStore, *badger.DB) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	repository := repositories.NewMessageRepository(db, log, nil)
	return NewBadgerStore(log, repository, runtime.NewRegistry(), access.AllowAll{}), db
}

type snapshots struct {
	mu   sync.Mutex
	list []chat.Snapshot
	errs []error
}

func (s *snapshots) push(snapshot chat.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, snapshot)
}

func (s *snapshots) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *snapshots) last() (chat.Snapshot, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.list) == 0 {
		return nil, 0
	}
	return s.list[len(s.list)-1], len(s.list)
}

func TestBadgerStore_Subscribe_Delivers_Initial_Then_Every_Change(t *testing.T) {
	req := require.New(t)
	store, _ := setupStore(t)
	ctx := context.Background()
	alice := chat.Sender{UID: "u2", Name: "Alice"}

	// Given a club with one message
	req.NoError(store.Append(ctx, "chess", alice, "Hello everyone!"))

	// When subscribing
	received := &snapshots{}
	unsubscribe, err := store.Subscribe("chess", received.push, received.fail)
	req.NoError(err)
	defer unsubscribe()

	// Then the initial snapshot arrives promptly
	req.Eventually(func() bool {
		last, _ := received.last()
		return len(last) == 1
	}, time.Second, 5*time.Millisecond)

	// When another message is appended
	req.NoError(store.Append(ctx, "chess", chat.Sender{UID: "u1", Name: "Bob"}, "  Hi Alice!  "))

	// Then the full snapshot is delivered again, trimmed and stamped
	req.Eventually(func() bool {
		last, _ := received.last()
		return len(last) == 2
	}, time.Second, 5*time.Millisecond)
	last, _ := received.last()
	req.Equal("Hello everyone!", last[0].Text)
	req.Equal("Hi Alice!", last[1].Text)
	req.Equal("Bob", last[1].SenderName)
	req.NotNil(last[1].Timestamp)
	req.False(last[1].Timestamp.Before(*last[0].Timestamp))
}

func TestBadgerStore_Unsubscribe_Stops_Deliveries(t *testing.T) {
	req := require.New(t)
	store, _ := setupStore(t)
	ctx := context.Background()

	received := &snapshots{}
	unsubscribe, err := store.Subscribe("chess", received.push, received.fail)
	req.NoError(err)
	req.Eventually(func() bool {
		_, count := received.last()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	// When unsubscribing twice
	unsubscribe()
	unsubscribe()

	// Then later appends are not observed
	req.NoError(store.Append(ctx, "chess", chat.Sender{UID: "u1"}, "nobody listens"))
	time.Sleep(50 * time.Millisecond)
	_, count := received.last()
	req.Equal(1, count)
}

func TestBadgerStore_Append_Validation(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		sender chat.Sender
		text   string
		err    error
	}{
		{"empty text", chat.Sender{UID: "u1"}, "", errors.ErrValidation},
		{"whitespace text", chat.Sender{UID: "u1"}, " \n\t ", errors.ErrValidation},
		{"missing sender", chat.Sender{Name: "ghost"}, "hello", errors.ErrSenderInvalid},
		{"invalid sender email", chat.Sender{UID: "u1", Email: "not-an-email"}, "hello", errors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Append(ctx, "chess", tt.sender, tt.text)
			require.ErrorIs(t, err, tt.err)
		})
	}

	// Then nothing was stored
	history, _, err := store.History(ctx, "chess", nil)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestBadgerStore_Snapshot_Failure_Is_A_Stream_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := NewBadgerStore(log, repository, runtime.NewRegistry(), access.AllowAll{})

	repository.EXPECT().Snapshot(chat.ClubID("chess")).Return(nil, fmt.Errorf("disk is gone"))

	unsubscribe, err := store.Subscribe("chess", func(chat.Snapshot) {}, func(error) {})
	req.ErrorIs(err, errors.ErrStream)
	req.Nil(unsubscribe)
}

func TestBadgerStore_Append_Failure_Is_A_Send_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	repository := mocks.NewMockIMessageRepository(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := NewBadgerStore(log, repository, runtime.NewRegistry(), access.AllowAll{})

	repository.EXPECT().StoreMessage(gomock.Any()).Return(fmt.Errorf("no space left on device"))

	err := store.Append(context.Background(), "chess", chat.Sender{UID: "u1"}, "hello")
	req.ErrorIs(err, errors.ErrSendFailed)
}

func TestBadgerStore_History_Is_Newest_First(t *testing.T) {
	req := require.New(t)
	store, _ := setupStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		req.NoError(store.Append(ctx, "chess", chat.Sender{UID: "u1"}, fmt.Sprintf("message %d", i)))
	}

	history, cursor, err := store.History(ctx, "chess", nil)
	req.NoError(err)
	req.Len(history, 3)
	req.Equal("message 3", history[0].Text)
	req.NotNil(cursor)
}

func TestLocalStorage_GetAndSet(t *testing.T) {
	req := require.New(t)
	_, db := setupStore(t)
	local := NewLocalStorage(db)

	_, found, err := local.GetItem("chat_read_timestamps_u1")
	req.NoError(err)
	req.False(found)

	req.NoError(local.SetItem("chat_read_timestamps_u1", `{"chess":"2026-01-01T00:00:00Z"}`))

	value, found, err := local.GetItem("chat_read_timestamps_u1")
	req.NoError(err)
	req.True(found)
	req.Equal(`{"chess":"2026-01-01T00:00:00Z"}`, value)
}
