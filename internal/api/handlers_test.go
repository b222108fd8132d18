package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"clubsite/internal/accounts"
	"clubsite/internal/config"
	"clubsite/internal/content"
	"clubsite/internal/discord"
	"clubsite/internal/linker"
	"clubsite/internal/redis"
	"clubsite/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret   = "test-session-secret"
	testAdminKey = "test-admin-key"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeChat serves canned Discord responses to the workflow layer.
type fakeChat struct {
	selfUser *discord.User
	selfErr  error
	preview  *discord.GuildPreview
}

func (f *fakeChat) FetchSelfProfile(_ context.Context, _ string) (*discord.User, error) {
	return f.selfUser, f.selfErr
}

func (f *fakeChat) FetchUserByID(_ context.Context, id string) (*discord.User, error) {
	return &discord.User{ID: id, Username: "someone"}, nil
}

func (f *fakeChat) FetchMember(_ context.Context, _, _ string) (*discord.Member, error) {
	return nil, nil
}

func (f *fakeChat) AddMember(_ context.Context, _, _, _, _ string) error { return nil }

func (f *fakeChat) RemoveMember(_ context.Context, _, _ string) error { return nil }

func (f *fakeChat) OpenDMChannel(_ context.Context, _ string) (*discord.Channel, error) {
	return &discord.Channel{ID: "dm1"}, nil
}

func (f *fakeChat) SendEmbed(_ context.Context, _ string, _ discord.Embed) error { return nil }

func (f *fakeChat) FetchGuildPreview(_ context.Context, _ string) (*discord.GuildPreview, error) {
	return f.preview, nil
}

// fakeAccounts is an in-memory AccountStore keyed by user_id.
type fakeAccounts struct {
	rows   map[string]*accounts.LinkedAccount
	nextID int64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{rows: make(map[string]*accounts.LinkedAccount), nextID: 1}
}

func (f *fakeAccounts) FindByUser(_ context.Context, userID string) (*accounts.LinkedAccount, error) {
	acct, ok := f.rows[userID]
	if !ok {
		return nil, accounts.ErrNoAccount
	}
	cp := *acct
	return &cp, nil
}

func (f *fakeAccounts) Upsert(_ context.Context, acct *accounts.LinkedAccount) (*accounts.LinkedAccount, error) {
	out := *acct
	if existing, ok := f.rows[acct.UserID]; ok {
		out.ID = existing.ID
	} else {
		out.ID = f.nextID
		f.nextID++
	}
	out.UpdatedAt = time.Now()
	stored := out
	f.rows[acct.UserID] = &stored
	return &out, nil
}

func (f *fakeAccounts) UpdateProfile(_ context.Context, _ int64, _, _, _ string) error {
	return nil
}

func (f *fakeAccounts) Delete(_ context.Context, id int64) error {
	for userID, acct := range f.rows {
		if acct.ID == id {
			delete(f.rows, userID)
		}
	}
	return nil
}

func newTestServer(t *testing.T, chat *fakeChat, store *fakeAccounts) *Server {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.Config{
		GuildID:        "g1",
		SessionSecret:  testSecret,
		AdminSecretKey: testAdminKey,
		CORSOrigins:    []string{"https://css.uwindsor.ca"},
	}

	svc := linker.NewService(testLogger(), chat, store, cfg.GuildID, linker.DefaultBrand())

	return NewServer(testLogger(), nil, redis.NewFromRDB(rdb), svc, store, content.NewStore(nil), cfg)
}

func sessionToken(t *testing.T, userID, name string) string {
	t.Helper()
	tok, err := session.Issue([]byte(testSecret), session.Session{UserID: userID, Name: name}, time.Hour)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return tok
}

func TestProfile_RequiresSession(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	req, _ := http.NewRequest("GET", "/api/v1/discord/profile", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestProfile_RejectsBadToken(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	req, _ := http.NewRequest("GET", "/api/v1/discord/profile", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestProfile_NotLinked(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	req, _ := http.NewRequest("GET", "/api/v1/discord/profile", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "u1", "Alice"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unlinked user, got %d", w.Code)
	}
}

func TestLink_EndToEnd(t *testing.T) {
	chat := &fakeChat{selfUser: &discord.User{ID: "42", Username: "alice", Discriminator: "0"}}
	store := newFakeAccounts()
	srv := newTestServer(t, chat, store)

	body, _ := json.Marshal(gin.H{"access_token": "tok", "expires_in": 3600})
	req, _ := http.NewRequest("POST", "/api/v1/discord/link", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "u1", "Alice"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Linked    bool   `json:"linked"`
		DiscordID string `json:"discord_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Linked || resp.DiscordID != "42" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(store.rows) != 1 {
		t.Errorf("expected one linked row, got %d", len(store.rows))
	}
}

func TestLink_InvalidBody(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	body := []byte(`{"access_token":"tok"}`) // missing expires_in
	req, _ := http.NewRequest("POST", "/api/v1/discord/link", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "u1", "Alice"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestUnlink_NotLinked(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	req, _ := http.NewRequest("POST", "/api/v1/discord/unlink", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "u1", "Alice"))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestMemberCount_Public(t *testing.T) {
	chat := &fakeChat{preview: &discord.GuildPreview{ApproximateMemberCount: 300, ApproximatePresenceCount: 40}}
	srv := newTestServer(t, chat, newFakeAccounts())

	req, _ := http.NewRequest("GET", "/api/v1/discord/member-count", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var counts struct {
		MemberCount int `json:"member_count"`
		OnlineCount int `json:"online_count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if counts.MemberCount != 300 || counts.OnlineCount != 40 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestAdmin_RequiresKey(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	tests := []struct {
		name     string
		key      string
		expected int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "wrong", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("DELETE", "/api/v1/admin/events/1", nil)
			if tt.key != "" {
				req.Header.Set("X-Admin-Key", tt.key)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAdmin_ValidatesID(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	req, _ := http.NewRequest("DELETE", "/api/v1/admin/events/abc", nil)
	req.Header.Set("X-Admin-Key", testAdminKey)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric id, got %d", w.Code)
	}
}

func TestRateLimit_LinkEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	// the link path allows 10/min per IP; the 11th request must be rejected
	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		req, _ := http.NewRequest("POST", "/api/v1/discord/link", nil)
		last = httptest.NewRecorder()
		srv.Handler().ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the 11th request, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	req, _ := http.NewRequest("OPTIONS", "/api/v1/events", nil)
	req.Header.Set("Origin", "https://css.uwindsor.ca")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://css.uwindsor.ca" {
		t.Errorf("expected allowed origin echoed back, got %q", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv := newTestServer(t, &fakeChat{}, newFakeAccounts())

	req, _ := http.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS headers for disallowed origin, got %q", got)
	}
}
