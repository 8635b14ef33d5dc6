//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"club-chat/domain/account"
	"club-chat/domain/chat"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// MessageStore is the boundary with the real-time document store.
// Subscribe delivers the full ordered snapshot promptly and again after every change.
// onError reports transport failures, the store never retries on its own.
// The returned unsubscribe function is idempotent and stops all future callbacks.
type MessageStore interface {
	Subscribe(clubID chat.ClubID, onSnapshot func(chat.Snapshot), onError func(error)) (func(), error)
	Append(ctx context.Context, clubID chat.ClubID, sender chat.Sender, text string) error
	IsMember(ctx context.Context, clubID chat.ClubID, userID string) (bool, error)
}

type MembershipChecker interface {
	IsMember(ctx context.Context, clubID chat.ClubID, userID string) (bool, error)
}

// SessionProvider exposes the signed-in user.
// CurrentUser returns nil when nobody is signed in.
type SessionProvider interface {
	CurrentUser() *account.User
	OnAuthChange(callback func(user *account.User)) func()
}

// Connectivity is the process-wide online/offline signal.
type Connectivity interface {
	Online() bool
	OnChange(callback func(online bool)) func()
}

// LocalStorage is a durable string key/value store.
type LocalStorage interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Pinger interface {
	Ping(ctx context.Context) error
}
