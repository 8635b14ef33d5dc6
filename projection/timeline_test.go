package projection

import (
	"club-chat/domain/chat"
	"math/rand"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	return lo.ToPtr(t0.Add(d))
}

func TestBuild_Two_Senders(t *testing.T) {
	req := require.New(t)
	// Given Alice then the current user writing
	messages := []chat.Message{
		{ID: "1", SenderID: "u2", SenderName: "Alice", Text: "Hello everyone!", Timestamp: at(0)},
		{ID: "2", SenderID: "u1", SenderName: "u1", Text: "Hi Alice!", Timestamp: at(60 * time.Second)},
	}

	// When building the timeline of u1
	timeline := Build(messages, "u1", time.UTC)

	// Then order is preserved and the own message has no header
	req.Nil(timeline.Empty)
	req.Len(timeline.Entries, 2)
	req.Equal("1", timeline.Entries[0].Message.ID)
	req.Equal("2", timeline.Entries[1].Message.ID)
	req.True(timeline.Entries[0].ShowSenderHeader)
	req.False(timeline.Entries[1].ShowSenderHeader)
	req.True(timeline.Entries[1].IsOwn)
	req.Equal("09:05", timeline.Entries[0].Time)
	req.Equal("09:06", timeline.Entries[1].Time)
	req.Equal(2, timeline.ActiveParticipants)
	req.Equal("2 active", timeline.ActiveLabel)
}

func TestBuild_Grouping_Runs(t *testing.T) {
	req := require.New(t)
	// Given a run of three messages from Alice followed by one from Bob
	messages := []chat.Message{
		{ID: "1", SenderID: "alice", SenderName: "Alice Martin", Timestamp: at(0)},
		{ID: "2", SenderID: "alice", SenderName: "Alice Martin", Timestamp: at(time.Second)},
		{ID: "3", SenderID: "alice", SenderName: "Alice Martin", Timestamp: at(2 * time.Second)},
		{ID: "4", SenderID: "bob", SenderName: "Bob", Timestamp: at(3 * time.Second)},
	}

	entries := Build(messages, "me", time.UTC).Entries

	tests := []struct {
		header, avatar, tail bool
		spacing              Spacing
	}{
		{true, true, false, Tight},
		{false, false, false, Tight},
		{false, false, true, Regular},
		{true, true, true, Regular},
	}
	for i, tt := range tests {
		req.Equal(tt.header, entries[i].ShowSenderHeader, "header of %d", i)
		req.Equal(tt.avatar, entries[i].ShowAvatar, "avatar of %d", i)
		req.Equal(tt.tail, entries[i].IsGroupTail, "tail of %d", i)
		req.Equal(tt.tail, entries[i].ShowTimestamp, "timestamp of %d", i)
		req.Equal(tt.spacing, entries[i].Spacing, "spacing of %d", i)
	}
	req.Equal("AM", entries[0].Initials)
}

func TestBuild_Own_Run_Never_Shows_Header(t *testing.T) {
	req := require.New(t)
	messages := []chat.Message{
		{ID: "1", SenderID: "me", SenderName: "Me", Timestamp: at(0)},
		{ID: "2", SenderID: "me", SenderName: "Me", Timestamp: at(time.Second)},
	}

	entries := Build(messages, "me", time.UTC).Entries

	req.True(entries[0].ShowAvatar)
	req.False(entries[0].ShowSenderHeader)
	req.False(entries[1].ShowSenderHeader)
	req.True(entries[1].IsGroupTail)
}

func TestBuild_Empty_State(t *testing.T) {
	req := require.New(t)

	timeline := Build(nil, "me", time.UTC)

	req.Empty(timeline.Entries)
	req.NotNil(timeline.Empty)
	req.Equal("No messages yet", timeline.Empty.Headline)
	req.Equal("Start the conversation and connect with your club members!", timeline.Empty.Subtext)
	req.Equal("0 active", timeline.ActiveLabel)
}

func TestBuild_Pending_Uses_Local_Time(t *testing.T) {
	req := require.New(t)
	cet := time.FixedZone("CET", 3600)
	messages := []chat.Message{
		{ID: "p", SenderID: "me", CreatedAt: t0.Add(time.Hour)},
		{ID: "1", SenderID: "u2", Timestamp: at(0)},
	}

	entries := Build(messages, "me", cet).Entries

	// Then the pending message is last and rendered with its provisional time
	req.Equal("1", entries[0].Message.ID)
	req.Equal("10:05", entries[0].Time)
	req.Equal("p", entries[1].Message.ID)
	req.True(entries[1].Pending)
	req.Equal("11:05", entries[1].Time)
}

func TestOrder_Deduplicates_First_Wins(t *testing.T) {
	req := require.New(t)
	messages := []chat.Message{
		{ID: "1", Text: "first", Timestamp: at(0)},
		{ID: "1", Text: "copy", Timestamp: at(0)},
		{ID: "2", Text: "second", Timestamp: at(time.Second)},
	}

	ordered := Order(messages)

	req.Len(ordered, 2)
	req.Equal("first", ordered[0].Text)
}

func TestOrder_Does_Not_Mutate_Input(t *testing.T) {
	req := require.New(t)
	messages := []chat.Message{
		{ID: "2", Timestamp: at(time.Second)},
		{ID: "1", Timestamp: at(0)},
	}

	Order(messages)

	req.Equal("2", messages[0].ID)
}

// Resolved messages are non-decreasing and pending ones always come last
func TestOrder_Property_Resolved_Then_Pending(t *testing.T) {
	req := require.New(t)
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var messages []chat.Message
		n := rng.Intn(20)
		for i := 0; i < n; i++ {
			m := chat.Message{SenderID: []string{"a", "b", "c"}[rng.Intn(3)], CreatedAt: t0}
			if rng.Intn(4) > 0 {
				m.Timestamp = at(time.Duration(rng.Intn(10)) * time.Second)
			}
			messages = append(messages, m)
		}

		ordered := Order(messages)

		req.Len(ordered, len(messages))
		seenPending := false
		for i, m := range ordered {
			if m.IsPending() {
				seenPending = true
				continue
			}
			req.False(seenPending, "resolved message after a pending one")
			if i > 0 && !ordered[i-1].IsPending() {
				req.False(m.Timestamp.Before(*ordered[i-1].Timestamp))
			}
		}
	}
}

// In every run exactly the first entry carries the header and exactly the last the timestamp
func TestBuild_Property_One_Header_One_Timestamp_Per_Run(t *testing.T) {
	req := require.New(t)
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		var messages []chat.Message
		n := 1 + rng.Intn(30)
		for i := 0; i < n; i++ {
			messages = append(messages, chat.Message{
				SenderID:  []string{"a", "b"}[rng.Intn(2)],
				Timestamp: at(time.Duration(i) * time.Second),
			})
		}

		entries := Build(messages, "me", time.UTC).Entries

		headers, timestamps, runs := 0, 0, 0
		for i, e := range entries {
			if i == 0 || entries[i-1].Message.SenderID != e.Message.SenderID {
				runs++
			}
			if e.ShowSenderHeader {
				headers++
			}
			if e.ShowTimestamp {
				timestamps++
			}
		}
		req.Equal(runs, headers)
		req.Equal(runs, timestamps)
	}
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name, want string
	}{
		{"Alice", "A"},
		{"alice martin", "AM"},
		{"Jean Paul Sartre", "JP"},
		{"  spaced   out ", "SO"},
		{"", ""},
		{"élodie durand", "ÉD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Initials(tt.name))
		})
	}
}
