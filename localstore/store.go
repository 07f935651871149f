// Package localstore is the device-scoped durable key-value store: onboarding
// completion flag, cached profile fields, and the backend session secret.
// Keys are device-scoped, not user-scoped; Clear is mandatory on sign-out so
// no cached value leaks into a different user's session on the same device.
package localstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "familysync"

const (
	keyHasSeenOnboarding = "hasSeenOnboarding"
	keyHasLaunchedBefore = "hasLaunchedBefore"
	keyUserName          = "userName"
	keyUserBirthday      = "userBirthday"
	keySessionSecret     = "sessionSecret"
)

// userScopedKeys are removed by Clear. hasLaunchedBefore is device-lifetime
// and survives sign-out.
var userScopedKeys = []string{
	keyHasSeenOnboarding,
	keyUserName,
	keyUserBirthday,
	keySessionSecret,
}

// Store is a bbolt-backed key-value store. Safe for concurrent use.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing local store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	return value, err
}

func (s *Store) set(key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), []byte(value))
	})
}

func (s *Store) setBool(key string, value bool) error {
	v := "0"
	if value {
		v = "1"
	}
	return s.set(key, v)
}

func (s *Store) getBool(key string) (bool, error) {
	v, err := s.get(key)
	return v == "1", err
}

// HasSeenOnboarding reports whether onboarding was completed on this device.
func (s *Store) HasSeenOnboarding() (bool, error) { return s.getBool(keyHasSeenOnboarding) }

func (s *Store) SetHasSeenOnboarding(seen bool) error { return s.setBool(keyHasSeenOnboarding, seen) }

// HasLaunchedBefore reports whether the app ever started on this device.
func (s *Store) HasLaunchedBefore() (bool, error) { return s.getBool(keyHasLaunchedBefore) }

func (s *Store) SetHasLaunchedBefore(launched bool) error {
	return s.setBool(keyHasLaunchedBefore, launched)
}

func (s *Store) UserName() (string, error) { return s.get(keyUserName) }

func (s *Store) SetUserName(name string) error { return s.set(keyUserName, name) }

// UserBirthday returns the cached birthday, or a zero time when unset.
func (s *Store) UserBirthday() (time.Time, error) {
	v, err := s.get(keyUserBirthday)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt cached birthday %q: %w", v, err)
	}
	return t, nil
}

func (s *Store) SetUserBirthday(birthday time.Time) error {
	return s.set(keyUserBirthday, birthday.Format(time.RFC3339))
}

// SessionSecret, SetSessionSecret and ClearSessionSecret implement the
// backend client's session persistence.

func (s *Store) SessionSecret() (string, error) { return s.get(keySessionSecret) }

func (s *Store) SetSessionSecret(secret string) error { return s.set(keySessionSecret, secret) }

func (s *Store) ClearSessionSecret() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(keySessionSecret))
	})
}

// Clear removes every user-scoped key. Called on sign-out.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		for _, key := range userScopedKeys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}
