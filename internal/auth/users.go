// Package auth stores portal accounts.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"grimm.is/netguard/internal/clock"
)

// MinPasswordLength is the shortest password CreateUser accepts.
const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidUsername    = errors.New("invalid username")
)

// dummyHash is compared against when the user does not exist so unknown
// and known usernames take the same time to reject.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("netguard-dummy-password"), bcrypt.MinCost)

// User is a portal account.
type User struct {
	Username  string    `json:"username"`
	Hash      string    `json:"hash"` // bcrypt hash
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// usersFile is the persisted format.
type usersFile struct {
	Users map[string]*User `json:"users"`
}

// Store manages portal users backed by a JSON file.
type Store struct {
	path  string
	cost  int
	users map[string]*User
	mu    sync.RWMutex
}

// NewStore opens the store at path. A missing file is an empty store.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("users file path required")
	}
	s := &Store{
		path:  path,
		cost:  bcrypt.DefaultCost,
		users: make(map[string]*User),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCost overrides the bcrypt cost for new hashes.
func (s *Store) SetCost(cost int) {
	s.mu.Lock()
	s.cost = cost
	s.mu.Unlock()
}

// Reload re-reads the users file, picking up edits made by the CLI.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.users = make(map[string]*User)
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}

	var f usersFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	if f.Users == nil {
		f.Users = make(map[string]*User)
	}

	s.mu.Lock()
	s.users = f.Users
	s.mu.Unlock()
	return nil
}

// saveLocked writes the users file atomically.
// MUST be called while holding the write lock
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(usersFile{Users: s.users}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// HasUsers returns true if any users exist
func (s *Store) HasUsers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users) > 0
}

func validUsername(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n:/")
}

// CreateUser adds a user.
func (s *Store) CreateUser(username, password string) error {
	if !validUsername(username) {
		return ErrInvalidUsername
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}

	now := clock.Now()
	s.users[username] = &User{
		Username:  username,
		Hash:      string(hash),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.saveLocked()
}

// Authenticate checks a username and password.
func (s *Store) Authenticate(username, password string) error {
	s.mu.RLock()
	user, exists := s.users[username]
	s.mu.RUnlock()

	if !exists {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GetUser returns a copy of a user without the hash.
func (s *Store) GetUser(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[username]
	if !exists {
		return nil, ErrUserNotFound
	}
	return &User{Username: user.Username, CreatedAt: user.CreatedAt, UpdatedAt: user.UpdatedAt}, nil
}

// ListUsers returns all users (without password hashes), sorted by name.
func (s *Store) ListUsers() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, &User{
			Username:  u.Username,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// UpdatePassword changes a user's password
func (s *Store) UpdatePassword(username, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[username]
	if !exists {
		return ErrUserNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	user.Hash = string(hash)
	user.UpdatedAt = clock.Now()

	return s.saveLocked()
}

// DeleteUser removes a user
func (s *Store) DeleteUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; !exists {
		return ErrUserNotFound
	}
	delete(s.users, username)
	return s.saveLocked()
}
