package storage

import (
	"context"
	errs "errors"

	"github.com/dgraph-io/badger/v4"
)

const localPrefix = "local:"

// LocalStorage is a durable string key/value store kept in the same badger database.
type LocalStorage struct {
	db *badger.DB
}

func NewLocalStorage(db *badger.DB) LocalStorage {
	return LocalStorage{db: db}
}

func (l LocalStorage) GetItem(key string) (string, bool, error) {
	var value []byte
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(localPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errs.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(value), true, nil
}

func (l LocalStorage) SetItem(key, value string) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(localPrefix+key), []byte(value))
	})
}

// Ping reports whether the underlying database can still serve requests.
func (l LocalStorage) Ping(_ context.Context) error {
	if l.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return nil
}
