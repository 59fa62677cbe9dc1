package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/memoflix/internal/session"
)

type memoryRecords struct {
	records map[string][]byte
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: map[string][]byte{}}
}

func (m *memoryRecords) GetRecord(name string) ([]byte, bool) {
	payload, ok := m.records[name]
	return payload, ok
}

func (m *memoryRecords) SetRecord(name string, payload []byte) error {
	m.records[name] = payload
	return nil
}

func (m *memoryRecords) DeleteRecord(name string) error {
	delete(m.records, name)
	return nil
}

func newAuthFixture(t *testing.T, handler http.Handler) (*Auth, *session.Store, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sessions, err := session.NewStore(session.StoreConfig{Records: newMemoryRecords()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	auth, err := NewAuth(AuthConfig{
		Client:   NewClient(Config{BaseURL: server.URL, AnonKey: "anon"}),
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return auth, sessions, server
}

func TestSignInPersistsSessionFromGrantResponse(t *testing.T) {
	auth, sessions, _ := newAuthFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL)
		}
		_, _ = w.Write([]byte(`{
			"access_token":"tok","refresh_token":"ref","expires_in":3600,"token_type":"bearer",
			"user":{"id":"u1","email":"ani@example.com","user_metadata":{"display_name":"Ani"}}
		}`))
	}))

	sess, err := auth.SignIn(context.Background(), "ani@example.com", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.AccessToken != "tok" || sess.User.ID != "u1" {
		t.Fatalf("unexpected session %+v", sess)
	}

	stored, ok := sessions.Read()
	if !ok || stored.AccessToken != "tok" {
		t.Fatalf("expected session persisted, got %+v ok=%v", stored, ok)
	}
	user, ok := sessions.CurrentUser()
	if !ok || user.Name != "Ani" {
		t.Fatalf("unexpected current user %+v", user)
	}
}

func TestSignUpPersistsEmbeddedSessionOnly(t *testing.T) {
	withSession := `{"user":{"id":"u1"},"session":{"access_token":"tok","user":{"id":"u1","email":"a@b.c"}}}`
	withoutSession := `{"user":{"id":"u1"},"session":null}`

	for _, tt := range []struct {
		name         string
		body         string
		wantSignedIn bool
	}{
		{name: "embedded-session", body: withSession, wantSignedIn: true},
		{name: "confirmation-required", body: withoutSession, wantSignedIn: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			auth, sessions, _ := newAuthFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var payload map[string]any
				if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
					t.Errorf("unexpected body decode error: %v", err)
				}
				data, _ := payload["data"].(map[string]any)
				if data["display_name"] != "Ani" {
					t.Errorf("expected display_name in signup metadata, got %v", payload)
				}
				_, _ = w.Write([]byte(tt.body))
			}))

			signedIn, err := auth.SignUp(context.Background(), "Ani", "ani@gmail.com", "secret1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if signedIn != tt.wantSignedIn {
				t.Fatalf("unexpected signedIn=%v", signedIn)
			}
			_, ok := sessions.Read()
			if ok != tt.wantSignedIn {
				t.Fatalf("session persistence mismatch: ok=%v", ok)
			}
		})
	}
}

func TestSignOutClearsLocallyEvenWhenRemoteRevokeFails(t *testing.T) {
	auth, sessions, _ := newAuthFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	if err := sessions.Write(session.Session{AccessToken: "tok", User: session.User{ID: "u1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := auth.SignOut(context.Background()); err != nil {
		t.Fatalf("sign-out must not surface the revoke failure: %v", err)
	}
	if _, ok := sessions.Read(); ok {
		t.Fatalf("expected session cleared")
	}
}

func TestSignOutWithoutSessionSkipsRemoteCall(t *testing.T) {
	called := false
	auth, _, _ := newAuthFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	if err := auth.SignOut(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected no remote call without a session")
	}
}

func TestUpsertProfileIsNoOpWithoutSession(t *testing.T) {
	called := false
	auth, _, _ := newAuthFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	if err := auth.UpsertProfile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatalf("expected no remote call without a session")
	}
}

func TestUpsertProfileSendsMergePreference(t *testing.T) {
	var sawPrefer string
	var sawBody string
	auth, sessions, _ := newAuthFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/user_profiles" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		sawPrefer = r.Header.Get("Prefer")
		body, _ := io.ReadAll(r.Body)
		sawBody = string(body)
	}))
	err := sessions.Write(session.Session{
		AccessToken: "tok",
		User: session.User{
			ID:       "u1",
			Email:    "ani@example.com",
			Metadata: session.UserMetadata{DisplayName: "Ani"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := auth.UpsertProfile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawPrefer != "resolution=merge-duplicates,return=minimal" {
		t.Fatalf("unexpected Prefer header %q", sawPrefer)
	}
	if !strings.Contains(sawBody, `"user_id":"u1"`) {
		t.Fatalf("expected user_id in body, got %s", sawBody)
	}
}
