//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"club-chat/domain/account"
	"club-chat/errors"
	"encoding/json"
	errs "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(user account.User, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
	GetUserByID(uid string) (account.User, error)
	ListUsers() ([]account.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the stored account: the profile handed to the chat core plus its credentials.
type User struct {
	account.User
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func userKey(email string) []byte {
	return []byte("user:" + email)
}

func userIDKey(uid string) []byte {
	return []byte("user_id:" + uid)
}

// CreateUser persists the user in BadgerDB together with an id -> email index.
// It returns the newly generated User ID
func (u UserRepository) CreateUser(user account.User, hashedPassword string) (string, error) {
	user.UID = uuid.New().String()
	data, err := json.Marshal(User{
		User:         user,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(user.Email)
		if _, err = txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err = txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(userIDKey(user.UID), []byte(user.Email))
	})
	if err != nil {
		return "", err
	}
	return user.UID, nil
}

// GetUserByEmail retrieves the stored account, credentials included.
func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		return readUser(txn, email, &user)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByID resolves the profile of a user through the id index.
func (u UserRepository) GetUserByID(uid string) (account.User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(uid))
		if errs.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		email, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return readUser(txn, string(email), &user)
	})
	if err != nil {
		return account.User{}, err
	}
	return user.User, nil
}

// ListUsers returns every profile of the directory ordered by email, credentials left out.
func (u UserRepository) ListUsers() ([]account.User, error) {
	var users []account.User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := userKey("")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var user User
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			users = append(users, user.User)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func readUser(txn *badger.Txn, email string, user *User) error {
	item, err := txn.Get(userKey(email))
	if errs.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, user)
	})
}
