package auth

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	store.SetCost(bcrypt.MinCost)
	return store, path
}

func TestNewStore(t *testing.T) {
	store, _ := tempStore(t)
	if store.HasUsers() {
		t.Error("new store should be empty")
	}

	if _, err := NewStore(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestCreateUser(t *testing.T) {
	store, _ := tempStore(t)

	if err := store.CreateUser("alice", "password123"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user, err := store.GetUser("alice")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want %q", user.Username, "alice")
	}
	if user.Hash != "" {
		t.Error("GetUser should not expose the hash")
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	store, _ := tempStore(t)

	store.CreateUser("alice", "password123")
	if err := store.CreateUser("alice", "different1"); err != ErrUserExists {
		t.Errorf("err = %v, want ErrUserExists", err)
	}
}

func TestCreateUserValidation(t *testing.T) {
	store, _ := tempStore(t)

	tests := []struct {
		name     string
		username string
		password string
		want     error
	}{
		{"empty username", "", "password123", ErrInvalidUsername},
		{"username with space", "a b", "password123", ErrInvalidUsername},
		{"username with colon", "a:b", "password123", ErrInvalidUsername},
		{"short password", "alice", "short", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.CreateUser(tt.username, tt.password); err != tt.want {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAuthenticate(t *testing.T) {
	store, _ := tempStore(t)
	store.CreateUser("alice", "password123")

	if err := store.Authenticate("alice", "password123"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}
	if err := store.Authenticate("alice", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password: err = %v", err)
	}
	if err := store.Authenticate("bob", "password123"); err != ErrInvalidCredentials {
		t.Errorf("unknown user: err = %v", err)
	}
}

func TestPersistenceAndReload(t *testing.T) {
	store, path := tempStore(t)
	store.CreateUser("alice", "password123")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("users file not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	// A second store (the CLI) edits the same file.
	other, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	other.SetCost(bcrypt.MinCost)
	if err := other.CreateUser("bob", "password456"); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if err := store.Authenticate("bob", "password456"); err != ErrInvalidCredentials {
		t.Error("stale store should not know bob before reload")
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if err := store.Authenticate("bob", "password456"); err != nil {
		t.Errorf("bob should authenticate after reload: %v", err)
	}
}

func TestReloadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	os.WriteFile(path, []byte("{not json"), 0600)

	if _, err := NewStore(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestListUsers(t *testing.T) {
	store, _ := tempStore(t)
	store.CreateUser("carol", "password123")
	store.CreateUser("alice", "password123")

	users := store.ListUsers()
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	if users[0].Username != "alice" || users[1].Username != "carol" {
		t.Errorf("unexpected order: %s, %s", users[0].Username, users[1].Username)
	}
	for _, u := range users {
		if u.Hash != "" {
			t.Error("ListUsers should not return hashes")
		}
	}
}

func TestUpdatePassword(t *testing.T) {
	store, _ := tempStore(t)
	store.CreateUser("alice", "password123")

	if err := store.UpdatePassword("alice", "newpassword"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	if err := store.Authenticate("alice", "password123"); err == nil {
		t.Error("old password should fail")
	}
	if err := store.Authenticate("alice", "newpassword"); err != nil {
		t.Errorf("new password should work: %v", err)
	}
	if err := store.UpdatePassword("nobody", "newpassword"); err != ErrUserNotFound {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
	if err := store.UpdatePassword("alice", "x"); err != ErrWeakPassword {
		t.Errorf("err = %v, want ErrWeakPassword", err)
	}
}

func TestDeleteUser(t *testing.T) {
	store, _ := tempStore(t)
	store.CreateUser("alice", "password123")

	if err := store.DeleteUser("alice"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if store.HasUsers() {
		t.Error("store should be empty")
	}
	if err := store.DeleteUser("alice"); err != ErrUserNotFound {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}
