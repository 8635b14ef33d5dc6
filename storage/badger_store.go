package storage

import (
	"club-chat/contract"
	"club-chat/domain/chat"
	"club-chat/errors"
	"club-chat/repositories"
	"club-chat/runtime"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// BadgerStore is the single node message store.
// Every append is persisted then broadcast as a full snapshot to the club subscribers.
type BadgerStore struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	registry   *runtime.Registry
	members    contract.MembershipChecker
	now        func() time.Time

	// Serializes snapshot reads and deliveries so subscribers never see an older snapshot after a newer one
	mu sync.Mutex
}

func NewBadgerStore(log *slog.Logger, repository repositories.IMessageRepository,
	registry *runtime.Registry, members contract.MembershipChecker) *BadgerStore {
	return &BadgerStore{
		log:        log,
		repository: repository,
		registry:   registry,
		members:    members,
		now:        time.Now,
	}
}

func (b *BadgerStore) Subscribe(clubID chat.ClubID, onSnapshot func(chat.Snapshot), onError func(error)) (func(), error) {
	subscription := runtime.NewSubscription(b.log, onSnapshot, onError)

	b.mu.Lock()
	defer b.mu.Unlock()

	diskMessages, err := b.repository.Snapshot(clubID)
	if err != nil {
		subscription.Close()
		return nil, fmt.Errorf("%w: %v", errors.ErrStream, err)
	}
	b.registry.Subscribe(clubID, subscription)
	subscription.Deliver(repositories.ToSnapshot(diskMessages))

	b.log.Debug("Subscribed to club", "club_id", clubID, "subscription_id", subscription.ID)
	return func() {
		b.registry.Unsubscribe(clubID, subscription.ID)
	}, nil
}

func (b *BadgerStore) Append(ctx context.Context, clubID chat.ClubID, sender chat.Sender, text string) error {
	command := chat.PostMessageCommand{
		ClubID:    clubID,
		Sender:    sender,
		Text:      strings.TrimSpace(text),
		CreatedAt: b.now().UTC(),
	}
	if err := ValidateCommand(command); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.repository.StoreMessage(repositories.DiskMessage{
		ID:         uuid.New(),
		ClubID:     command.ClubID,
		SenderID:   command.Sender.UID,
		SenderName: command.Sender.Name,
		Text:       command.Text,
		At:         command.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrSendFailed, err)
	}
	b.broadcast(clubID)
	return nil
}

func (b *BadgerStore) IsMember(ctx context.Context, clubID chat.ClubID, userID string) (bool, error) {
	return b.members.IsMember(ctx, clubID, userID)
}

// History returns one page of the club history, newest first.
func (b *BadgerStore) History(_ context.Context, clubID chat.ClubID, cursor *string) (chat.Snapshot, *string, error) {
	diskMessages, next, err := b.repository.GetMessages(clubID, cursor)
	if err != nil {
		return nil, nil, err
	}
	return repositories.ToSnapshot(diskMessages), next, nil
}

// broadcast must be called with b.mu held.
func (b *BadgerStore) broadcast(clubID chat.ClubID) {
	subscriptions := b.registry.GetSubscriptionsForClub(clubID)
	if len(subscriptions) == 0 {
		return
	}
	diskMessages, err := b.repository.Snapshot(clubID)
	if err != nil {
		b.log.Error("Unable to read snapshot after append", "club_id", clubID, "error", err)
		for _, subscription := range subscriptions {
			subscription.Fail(fmt.Errorf("%w: %v", errors.ErrStream, err))
		}
		return
	}
	snapshot := repositories.ToSnapshot(diskMessages)
	for _, subscription := range subscriptions {
		subscription.Deliver(snapshot)
	}
}

var validate = validator.New()

// ValidateCommand enforces the store preconditions shared by every backend.
func ValidateCommand(command chat.PostMessageCommand) error {
	if strings.TrimSpace(command.Sender.UID) == "" {
		return errors.ErrSenderInvalid
	}
	if command.Text == "" {
		return errors.ErrValidation
	}
	if err := validate.Struct(command); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}
