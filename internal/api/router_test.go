package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskrooms/taskrooms/internal/api"
	"github.com/taskrooms/taskrooms/internal/auth"
	"github.com/taskrooms/taskrooms/internal/store"
	"github.com/taskrooms/taskrooms/internal/store/sqlite"
)

type env struct {
	server *httptest.Server
	auth   *auth.Service
	store  store.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(db))
	s := sqlite.NewWithDB(db)

	pinger, ok := s.(api.Pinger)
	require.True(t, ok)

	authSvc := auth.New(s)
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	})
	server := httptest.NewServer(api.NewRouter(authSvc, s, pinger, ws))
	t.Cleanup(server.Close)
	return &env{server: server, auth: authSvc, store: s}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *env) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	resp := e.do(t, "POST", "/api/users", "", map[string]string{"username": username, "password": "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = e.do(t, "POST", "/api/login", "", map[string]string{"username": username, "password": "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[map[string]string](t, resp)["token"]
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "GET", "/api/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = e.do(t, "GET", "/api/health/db", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterConflictAndValidation(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, "POST", "/api/users", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.do(t, "POST", "/api/users", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = e.do(t, "POST", "/api/users", "", map[string]string{"username": "", "password": "pw"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	e := newEnv(t)
	e.registerAndLogin(t, "alice")

	resp := e.do(t, "POST", "/api/login", "", map[string]string{"username": "alice", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = e.do(t, "POST", "/api/login", "", map[string]string{"username": "ghost", "password": "pw"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRoomsRequireAuth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "GET", "/api/rooms", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = e.do(t, "POST", "/api/rooms", "stale-token", map[string]string{"name": "x"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAndListRooms(t *testing.T) {
	e := newEnv(t)
	token := e.registerAndLogin(t, "alice")

	resp := e.do(t, "POST", "/api/rooms", token, map[string]string{"name": "team"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate names conflict.
	resp = e.do(t, "POST", "/api/rooms", token, map[string]string{"name": "team"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Blank names are rejected before the store sees them.
	resp = e.do(t, "POST", "/api/rooms", token, map[string]string{"name": "   "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = e.do(t, "GET", "/api/rooms", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listing := decode[struct {
		Rooms []struct {
			Name string `json:"name"`
		} `json:"rooms"`
		Count int `json:"count"`
	}](t, resp)
	require.Equal(t, 1, listing.Count)
	require.Equal(t, "team", listing.Rooms[0].Name)

	// A second user sees no rooms until invited.
	other := e.registerAndLogin(t, "bob")
	resp = e.do(t, "GET", "/api/rooms", other, nil)
	listing = decode[struct {
		Rooms []struct {
			Name string `json:"name"`
		} `json:"rooms"`
		Count int `json:"count"`
	}](t, resp)
	require.Zero(t, listing.Count)
}

func TestInviteFlow(t *testing.T) {
	e := newEnv(t)
	alice := e.registerAndLogin(t, "alice")
	bob := e.registerAndLogin(t, "bob")
	e.registerAndLogin(t, "carol")

	resp := e.do(t, "POST", "/api/rooms", alice, map[string]string{"name": "team"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Only members may invite.
	resp = e.do(t, "POST", "/api/rooms/team/invite", bob, map[string]string{"username": "carol"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, "POST", "/api/rooms/team/invite", alice, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Re-inviting is a no-op, and the new member may invite in turn.
	resp = e.do(t, "POST", "/api/rooms/team/invite", alice, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, "POST", "/api/rooms/team/invite", bob, map[string]string{"username": "carol"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, "POST", "/api/rooms/team/invite", alice, map[string]string{"username": "ghost"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, "POST", "/api/rooms/missing/invite", alice, map[string]string{"username": "bob"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, "GET", "/api/rooms", bob, nil)
	listing := decode[struct {
		Count int `json:"count"`
	}](t, resp)
	require.Equal(t, 1, listing.Count)
}

func TestLogoutEndsSession(t *testing.T) {
	e := newEnv(t)
	token := e.registerAndLogin(t, "alice")

	resp := e.do(t, "POST", "/api/logout", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, "GET", "/api/rooms", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err := e.auth.Principal(context.Background(), token)
	require.Error(t, err)
}
