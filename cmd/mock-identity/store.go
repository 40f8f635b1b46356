package main

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	errUsernameTaken      = errors.New("username already taken")
	errUserNotFound       = errors.New("user not found")
	errInvalidCredentials = errors.New("invalid username or password")
)

type user struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Blacklisted  bool
	Admin        bool
}

// userStore keeps users in memory. Ids are assigned sequentially from 1.
type userStore struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]*user
	byUsername map[string]*user
	cost       int
}

func newUserStore(cost int) *userStore {
	return &userStore{
		nextID:     1,
		byID:       make(map[int64]*user),
		byUsername: make(map[string]*user),
		cost:       cost,
	}
}

func (s *userStore) create(username, password string, admin bool) (user, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return user{}, fmt.Errorf("create: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[username]; ok {
		return user{}, fmt.Errorf("create: %w", errUsernameTaken)
	}
	u := &user{ID: s.nextID, Username: username, PasswordHash: hash, Admin: admin}
	s.nextID++
	s.byID[u.ID] = u
	s.byUsername[username] = u
	return *u, nil
}

func (s *userStore) authenticate(username, password string) (user, error) {
	s.mu.RLock()
	u, ok := s.byUsername[username]
	s.mu.RUnlock()
	if !ok {
		return user{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return user{}, errInvalidCredentials
	}
	return *u, nil
}

func (s *userStore) get(id int64) (user, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return user{}, errUserNotFound
	}
	return *u, nil
}

func (s *userStore) setBlacklisted(id int64, blacklisted bool) (user, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return user{}, errUserNotFound
	}
	u.Blacklisted = blacklisted
	return *u, nil
}
