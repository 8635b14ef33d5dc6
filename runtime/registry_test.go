package runtime

import (
	"club-chat/domain/chat"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func noop(chat.Snapshot) {}

func TestRegistry_Subscribe_One_Club_One_Subscriber(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	clubID := chat.ClubID("chess")
	subscription := NewSubscription(slog.Default(), noop, nil)
	defer subscription.Close()

	// Given no club exists
	req.Empty(registry.Clubs())

	// When a subscriber subscribes a club
	registry.Subscribe(clubID, subscription)

	// Then
	req.Equal(1, registry.CountForClub(clubID))
	req.Contains(registry.GetSubscriptionsForClub(clubID), subscription)
	req.Equal([]chat.ClubID{clubID}, registry.Clubs())
}

func TestRegistry_Subscribe_Clubs_Are_Isolated(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	s1 := NewSubscription(slog.Default(), noop, nil)
	s2 := NewSubscription(slog.Default(), noop, nil)
	s3 := NewSubscription(slog.Default(), noop, nil)
	defer s3.Close()

	registry.Subscribe("chess", s1)
	registry.Subscribe("chess", s2)
	registry.Subscribe("drama", s3)

	req.Len(registry.GetSubscriptionsForClub("chess"), 2)
	req.Len(registry.GetSubscriptionsForClub("drama"), 1)
	req.Nil(registry.GetSubscriptionsForClub("music"))
}

func TestRegistry_Unsubscribe_Closes_And_Cleans(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscription := NewSubscription(slog.Default(), noop, nil)
	registry.Subscribe("chess", subscription)

	// When the only subscriber leaves
	registry.Unsubscribe("chess", subscription.ID)

	// Then the club entry is removed and the mailbox is closed
	req.Zero(registry.CountForClub("chess"))
	req.Empty(registry.Clubs())
	req.True(subscription.Closed())

	// Then unsubscribing again is harmless
	registry.Unsubscribe("chess", subscription.ID)
}
