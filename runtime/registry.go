package runtime

import (
	"club-chat/domain/chat"
	"sync"
)

type Set map[string]struct{}

type Registry struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription // map subscription id -> mailbox
	clubMembers   map[chat.ClubID]Set      // map club to subscription ids
}

func NewRegistry() *Registry {
	return &Registry{
		subscriptions: make(map[string]*Subscription),
		clubMembers:   make(map[chat.ClubID]Set),
	}
}

// GetSubscriptionsForClub retrieves all active subscribers of a club.
// It identifies subscription ids through clubMembers then resolves them
// into mailboxes. Returns nil if the club has no subscriber.
func (r *Registry) GetSubscriptionsForClub(clubID chat.ClubID) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.clubMembers[clubID]
	if !ok {
		return nil
	}
	var active []*Subscription
	for id := range members {
		if subscription, exists := r.subscriptions[id]; exists {
			active = append(active, subscription)
		}
	}
	return active
}

// Subscribe registers a subscriber on a club.
// If the club does not yet exist in the registry, it is initialized on the fly.
func (r *Registry) Subscribe(clubID chat.ClubID, subscription *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscriptions[subscription.ID] = subscription

	if _, ok := r.clubMembers[clubID]; !ok {
		r.clubMembers[clubID] = make(Set)
	}
	r.clubMembers[clubID][subscription.ID] = struct{}{}
}

// Unsubscribe removes a subscriber from its club and closes its mailbox.
// No empty sets are left in the club map.
func (r *Registry) Unsubscribe(clubID chat.ClubID, subscriptionID string) {
	r.mu.Lock()
	subscription := r.subscriptions[subscriptionID]
	delete(r.subscriptions, subscriptionID)

	if members, ok := r.clubMembers[clubID]; ok {
		delete(members, subscriptionID)

		// If no one is left in the club, remove the club entry entirely
		if len(members) == 0 {
			delete(r.clubMembers, clubID)
		}
	}
	r.mu.Unlock()

	if subscription != nil {
		subscription.Close()
	}
}

func (r *Registry) CountForClub(clubID chat.ClubID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clubMembers[clubID])
}

// Clubs lists the clubs that currently have subscribers.
func (r *Registry) Clubs() []chat.ClubID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clubs := make([]chat.ClubID, 0, len(r.clubMembers))
	for clubID := range r.clubMembers {
		clubs = append(clubs, clubID)
	}
	return clubs
}
