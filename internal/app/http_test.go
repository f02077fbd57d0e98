package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskboard/api/internal/authpw"
	"taskboard/api/internal/board"
	"taskboard/api/internal/config"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
	"taskboard/api/internal/users"
)

type fakeIdentity struct {
	usersByID map[string]store.User
	revoked   map[string]bool
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{usersByID: map[string]store.User{}, revoked: map[string]bool{}}
}

func (f *fakeIdentity) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeIdentity) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	for _, user := range f.usersByID {
		if user.Email == email {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeIdentity) CreateUser(ctx context.Context, user store.User) error {
	f.usersByID[user.ID] = user
	return nil
}

func (f *fakeIdentity) ListUsers(ctx context.Context) ([]store.User, error) {
	var list []store.User
	for _, user := range f.usersByID {
		list = append(list, user)
	}
	return list, nil
}

func (f *fakeIdentity) UpdateUserDisplayName(ctx context.Context, userID, displayName string) error {
	user := f.usersByID[userID]
	user.DisplayName = displayName
	f.usersByID[userID] = user
	return nil
}

func (f *fakeIdentity) UpdateUserRole(ctx context.Context, userID, role string) error {
	user := f.usersByID[userID]
	user.Role = role
	f.usersByID[userID] = user
	return nil
}

func (f *fakeIdentity) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	f.revoked[jti] = true
	return nil
}

func (f *fakeIdentity) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func (f *fakeIdentity) Ping(ctx context.Context) error { return nil }

type fakeSessions struct {
	sessions map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]store.User{}}
}

func (f *fakeSessions) Save(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	f.sessions[tokenHash] = user
	return nil
}

func (f *fakeSessions) Lookup(ctx context.Context, tokenHash string) (store.User, error) {
	user, ok := f.sessions[tokenHash]
	if !ok {
		return store.User{}, session.ErrSessionNotFound
	}
	return user, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, tokenHash string) error {
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessions) Ping(ctx context.Context) error { return nil }

// stubBoardStore satisfies the board service's storage dependency; only
// the read paths the router tests exercise are configurable.
type stubBoardStore struct {
	getBoard func(ctx context.Context, boardID string) (store.Board, error)
}

var errStub = errors.New("not implemented")

func (s *stubBoardStore) GetBoard(ctx context.Context, boardID string) (store.Board, error) {
	if s.getBoard != nil {
		return s.getBoard(ctx, boardID)
	}
	return store.Board{}, sql.ErrNoRows
}

func (s *stubBoardStore) GetBoardAccess(ctx context.Context, boardID string) (store.Board, error) {
	return s.GetBoard(ctx, boardID)
}
func (s *stubBoardStore) GetCard(ctx context.Context, cardID string) (store.Card, error) {
	return store.Card{}, sql.ErrNoRows
}
func (s *stubBoardStore) GetColumn(ctx context.Context, columnID string) (store.Column, error) {
	return store.Column{}, sql.ErrNoRows
}
func (s *stubBoardStore) ListBoardIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}
func (s *stubBoardStore) InsertBoard(ctx context.Context, b store.Board) error     { return errStub }
func (s *stubBoardStore) UpdateBoard(ctx context.Context, id, n, d string) error   { return errStub }
func (s *stubBoardStore) DeleteBoard(ctx context.Context, id string) error         { return errStub }
func (s *stubBoardStore) AddBoardMember(ctx context.Context, b, u string) error    { return errStub }
func (s *stubBoardStore) RemoveBoardMember(ctx context.Context, b, u string) error { return errStub }
func (s *stubBoardStore) InsertColumn(ctx context.Context, c store.Column) error   { return errStub }
func (s *stubBoardStore) UpdateColumn(ctx context.Context, c store.Column) error   { return errStub }
func (s *stubBoardStore) DeleteColumn(ctx context.Context, id string) error        { return errStub }
func (s *stubBoardStore) ListColumns(ctx context.Context, boardID string) ([]store.Column, error) {
	return nil, nil
}
func (s *stubBoardStore) UpdateColumnPosition(ctx context.Context, id string, p int) error {
	return errStub
}
func (s *stubBoardStore) InsertCard(ctx context.Context, c store.Card) error { return errStub }
func (s *stubBoardStore) UpdateCard(ctx context.Context, c store.Card) error { return errStub }
func (s *stubBoardStore) DeleteCard(ctx context.Context, id string) error    { return errStub }
func (s *stubBoardStore) ListCards(ctx context.Context, columnID string) ([]store.Card, error) {
	return nil, nil
}
func (s *stubBoardStore) UpdateCardPosition(ctx context.Context, id string, p int) error {
	return errStub
}
func (s *stubBoardStore) ReplaceCardWatchers(ctx context.Context, id string, u []string) error {
	return errStub
}
func (s *stubBoardStore) ReplaceCardLabels(ctx context.Context, id string, l []string) error {
	return errStub
}
func (s *stubBoardStore) InsertChecklistItem(ctx context.Context, i store.ChecklistItem) error {
	return errStub
}
func (s *stubBoardStore) UpdateChecklistItem(ctx context.Context, i store.ChecklistItem) error {
	return errStub
}
func (s *stubBoardStore) DeleteChecklistItem(ctx context.Context, id string) error { return errStub }
func (s *stubBoardStore) ListChecklistItems(ctx context.Context, cardID string) ([]store.ChecklistItem, error) {
	return nil, nil
}
func (s *stubBoardStore) UpdateChecklistItemPosition(ctx context.Context, id string, p int) error {
	return errStub
}
func (s *stubBoardStore) InsertComment(ctx context.Context, c store.Comment) error { return errStub }
func (s *stubBoardStore) UpdateCommentContent(ctx context.Context, id, c string) error {
	return errStub
}
func (s *stubBoardStore) DeleteComment(ctx context.Context, id string) error          { return errStub }
func (s *stubBoardStore) InsertAttachment(ctx context.Context, a store.Attachment) error {
	return errStub
}
func (s *stubBoardStore) DeleteAttachment(ctx context.Context, id string) error       { return errStub }
func (s *stubBoardStore) InsertLabel(ctx context.Context, l store.Label) error        { return errStub }
func (s *stubBoardStore) UpdateLabel(ctx context.Context, id, n, c string) error      { return errStub }
func (s *stubBoardStore) DeleteLabel(ctx context.Context, id string) error            { return errStub }
func (s *stubBoardStore) InsertSprint(ctx context.Context, sp store.Sprint) error     { return errStub }
func (s *stubBoardStore) UpdateSprint(ctx context.Context, sp store.Sprint) error     { return errStub }
func (s *stubBoardStore) DeleteSprint(ctx context.Context, id string) error           { return errStub }

type testEnv struct {
	identity *fakeIdentity
	sessions *fakeSessions
	boards   *stubBoardStore
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	}
	identity := newFakeIdentity()
	sessions := newFakeSessions()
	boardStore := &stubBoardStore{}

	svc := NewService(cfg, identity, sessions, authpw.NewService(identity))
	userSvc := users.NewService(identity)
	boardSvc := board.New(boardStore, userSvc)
	httpServer := NewHTTPServer(svc, boardSvc, userSvc, nil, "*")

	server := httptest.NewServer(httpServer.Handler())
	t.Cleanup(server.Close)
	return &testEnv{identity: identity, sessions: sessions, boards: boardStore, server: server}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func (e *testEnv) register(t *testing.T, email, name string) map[string]any {
	t.Helper()
	resp, payload := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":       email,
		"password":    "correct horse",
		"displayName": name,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d (%v)", email, resp.StatusCode, payload)
	}
	return payload
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, payload := env.do(t, http.MethodGet, "/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if payload["ok"] != true {
		t.Fatalf("expected ok, got %v", payload)
	}
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)
	resp, payload := env.do(t, http.MethodGet, "/api/ready", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d (%v)", resp.StatusCode, payload)
	}
	if payload["status"] != "ready" {
		t.Fatalf("expected ready, got %v", payload["status"])
	}
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/boards", "/api/users/me", "/api/cards/crd_1"} {
		resp, payload := env.do(t, http.MethodGet, path, "", nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, resp.StatusCode)
		}
		if payload["code"] != "UNAUTHORIZED" {
			t.Fatalf("%s: expected UNAUTHORIZED, got %v", path, payload["code"])
		}
	}

	resp, _ := env.do(t, http.MethodGet, "/api/boards", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", resp.StatusCode)
	}
}

func TestRegisterLoginAndSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	created := env.register(t, "ada@example.com", "Ada")
	access := created["accessToken"].(string)
	refresh := created["refreshToken"].(string)

	resp, payload := env.do(t, http.MethodGet, "/api/session", access, nil)
	if resp.StatusCode != http.StatusOK || payload["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %d %v", resp.StatusCode, payload)
	}

	resp, payload = env.do(t, http.MethodGet, "/api/users/me", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("users/me: %d (%v)", resp.StatusCode, payload)
	}
	if payload["email"] != "ada@example.com" {
		t.Fatalf("unexpected profile: %v", payload)
	}

	// Rotation: new pair issued, old refresh token dead.
	resp, payload = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": refresh})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d (%v)", resp.StatusCode, payload)
	}
	rotated := payload["refreshToken"].(string)
	resp, _ = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]any{"refreshToken": refresh})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 reusing rotated token, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/logout", access, map[string]any{"refreshToken": rotated})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/users/me", access, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com", "Ada")

	resp, payload := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":       "ada@example.com",
		"password":    "correct horse",
		"displayName": "Imposter",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if payload["code"] != "CONFLICT" {
		t.Fatalf("expected CONFLICT, got %v", payload["code"])
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com", "Ada")

	resp, payload := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%v)", resp.StatusCode, payload)
	}
}

func TestBoardErrorsMapToResponse(t *testing.T) {
	env := newTestEnv(t)
	created := env.register(t, "ada@example.com", "Ada")
	access := created["accessToken"].(string)

	resp, payload := env.do(t, http.MethodGet, "/api/boards/brd_missing", access, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND, got %v", payload["code"])
	}

	env.boards.getBoard = func(ctx context.Context, boardID string) (store.Board, error) {
		return store.Board{ID: boardID, OwnerID: "usr_someone_else"}, nil
	}
	resp, payload = env.do(t, http.MethodGet, "/api/boards/brd_1", access, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["code"] != "FORBIDDEN" {
		t.Fatalf("expected FORBIDDEN, got %v", payload["code"])
	}
}

func TestUpdateRoleRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	created := env.register(t, "ada@example.com", "Ada")
	access := created["accessToken"].(string)
	userID := created["userId"].(string)

	resp, _ := env.do(t, http.MethodPut, "/api/users/"+userID+"/role", access, map[string]any{"role": "ADMIN"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}

	// Promote directly in the store, re-login, then the route is allowed.
	user := env.identity.usersByID[userID]
	user.Role = "ADMIN"
	env.identity.usersByID[userID] = user

	resp, payload := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "ada@example.com",
		"password": "correct horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d (%v)", resp.StatusCode, payload)
	}
	adminAccess := payload["accessToken"].(string)

	resp, payload = env.do(t, http.MethodPut, "/api/users/"+userID+"/role", adminAccess, map[string]any{"role": "USER"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", resp.StatusCode, payload)
	}
	if payload["role"] != "USER" {
		t.Fatalf("expected USER role, got %v", payload["role"])
	}
}
