package repositories

import (
	"club-chat/domain/chat"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// SetupTestDB initializes an in-memory Badger instance for testing
func SetupTestDB(t *testing.T) *badger.DB {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Record_And_Snapshot_In_Order(t *testing.T) {
	req := require.New(t)
	db := SetupTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	club := chat.ClubID("chess")
	at := time.Now().UTC()
	// Given messages stored out of chronological order
	diskMessages := []DiskMessage{
		{uuid.New(), club, "u3", "Clara", "third", at.Add(2 * time.Minute)},
		{uuid.New(), club, "u1", "Alice", "first", at},
		{uuid.New(), club, "u2", "Bob", "second", at.Add(1 * time.Minute)},
	}
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}
	// Given a message of another club
	req.NoError(repository.StoreMessage(DiskMessage{uuid.New(), "drama", "u9", "Zoe", "elsewhere", at}))

	// When taking a snapshot
	snapshot, err := repository.Snapshot(club)
	req.NoError(err)

	// Then only the club messages are returned, oldest first
	req.Len(snapshot, 3)
	req.Equal("first", snapshot[0].Text)
	req.Equal("second", snapshot[1].Text)
	req.Equal("third", snapshot[2].Text)
	req.True(snapshot[0].At.Equal(at))
}

func Test_Snapshot_Of_Empty_Club(t *testing.T) {
	req := require.New(t)
	db := SetupTestDB(t)
	repository := NewMessageRepository(db, slog.Default(), nil)

	snapshot, err := repository.Snapshot("nobody-here")
	req.NoError(err)
	req.Empty(snapshot)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	db := SetupTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	club := chat.ClubID("chess")
	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		req.NoError(repository.StoreMessage(DiskMessage{
			ID:       uuid.New(),
			ClubID:   club,
			SenderID: "u1",
			Text:     "this message will self destruct in 5 seconds",
			At:       at.Add(time.Duration(i) * time.Minute),
		}))
	}
	fetchedMessages, _, err := repository.GetMessages(club, nil)
	req.NoError(err)
	req.Len(fetchedMessages, limit)
}

func Test_MessageRepository_Pagination(t *testing.T) {
	req := require.New(t)
	db := SetupTestDB(t)

	limit := 4
	repo := NewMessageRepository(db, slog.Default(), &limit)
	club := chat.ClubID("club-42")
	now := time.Now().UTC()

	// Given 10 messages from the oldest to the newest
	for i := 1; i <= 10; i++ {
		req.NoError(repo.StoreMessage(DiskMessage{
			ID:         uuid.New(),
			ClubID:     club,
			SenderID:   fmt.Sprintf("user_%d", i),
			SenderName: fmt.Sprintf("User %d", i),
			Text:       fmt.Sprintf("Message %d", i),
			At:         now.Add(time.Duration(i) * time.Minute),
		}))
	}

	// When reading the first page
	msgs1, cursor1, err := repo.GetMessages(club, nil)
	req.NoError(err)
	// Then the newest messages come first
	req.Len(msgs1, 4)
	req.Equal("user_10", msgs1[0].SenderID)
	req.Equal("user_7", msgs1[3].SenderID)
	req.NotNil(cursor1)

	// When reading the second page
	msgs2, cursor2, err := repo.GetMessages(club, cursor1)
	req.NoError(err)
	// Then no message is duplicated across pages
	req.Len(msgs2, 4)
	req.Equal("user_6", msgs2[0].SenderID)
	req.Equal("user_3", msgs2[3].SenderID)
	req.NotNil(cursor2)

	// When reading the last page
	msgs3, _, err := repo.GetMessages(club, cursor2)
	req.NoError(err)
	req.Len(msgs3, 2)
	req.Equal("user_2", msgs3[0].SenderID)
	req.Equal("user_1", msgs3[1].SenderID)
}

func Test_DiskMessage_ToMessage(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id := uuid.New()

	message := DiskMessage{id, "chess", "u1", "Alice", "Hello", at}.ToMessage()

	req.Equal(id.String(), message.ID)
	req.Equal("Alice", message.SenderName)
	req.False(message.IsPending())
	req.True(message.ResolvedTime().Equal(at))
}
