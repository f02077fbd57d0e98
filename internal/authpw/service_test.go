package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"taskboard/api/internal/store"
)

type fakeStore struct {
	byEmail map[string]store.User
	created []store.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{byEmail: map[string]store.User{}}
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) error {
	f.byEmail[user.Email] = user
	f.created = append(f.created, user)
	return nil
}

func TestRegisterHashesPasswordAndNormalizesEmail(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:       " Ada@Example.com ",
		Password:    "correct horse",
		DisplayName: "Ada",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if user.Role != "USER" {
		t.Fatalf("expected USER role, got %q", user.Role)
	}
	if user.PasswordHash == "correct horse" || user.PasswordHash == "" {
		t.Fatal("password must be stored hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)

	req := RegisterRequest{Email: "ada@example.com", Password: "correct horse", DisplayName: "Ada"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), req)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(newFakeStore())
	cases := []RegisterRequest{
		{Email: "", Password: "longenough", DisplayName: "X"},
		{Email: "a@b.com", Password: "", DisplayName: "X"},
		{Email: "a@b.com", Password: "longenough", DisplayName: "  "},
		{Email: "a@b.com", Password: "short", DisplayName: "X"},
	}
	for i, req := range cases {
		if _, err := svc.Register(context.Background(), req); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestSignIn(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs)

	if _, err := svc.Register(context.Background(), RegisterRequest{Email: "ada@example.com", Password: "correct horse", DisplayName: "Ada"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	user, err := svc.SignIn(context.Background(), SignInRequest{Email: "ADA@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %v", user.Email)
	}

	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "ghost@example.com", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
