package handoff_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuniway/tuniway-web/backend"
	"github.com/tuniway/tuniway-web/backend/backendfake"
	"github.com/tuniway/tuniway-web/guard"
	"github.com/tuniway/tuniway-web/handoff"
	"github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/session"
	"github.com/tuniway/tuniway-web/store"
	"github.com/tuniway/tuniway-web/transport"
	"github.com/tuniway/tuniway-web/users"
)

type testFixture struct {
	url     string
	fake    *backendfake.Server
	store   *store.MemoryStore
	manager *session.Manager
	handler *handoff.Handler
	admin   users.Record
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	fake := backendfake.New("secret")
	pic := "https://img/admin.png"
	admin, err := fake.Seed(users.Record{Username: "root", Email: "r@x.com", Role: users.RoleAdmin, ProfilePicture: &pic}, "secret1")
	require.NoError(t, err)

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s := store.NewMemoryStore()
	client := backend.New(srv.URL+"/api", transport.NewInjector(s, nil).Client())
	mgr := session.New(s, client)

	return &testFixture{
		url:     srv.URL,
		fake:    fake,
		store:   s,
		manager: mgr,
		handler: handoff.New(mgr, client, handoff.WithBackendOrigin(handoff.BackendOrigin(srv.URL+"/api"))),
		admin:   admin,
	}
}

func redirectParams(id, role string) url.Values {
	return url.Values{
		handoff.ParamToken:    {"provider-token"},
		handoff.ParamUsername: {"root"},
		handoff.ParamEmail:    {"r@x.com"},
		handoff.ParamRole:     {role},
		handoff.ParamID:       {id},
	}
}

func TestCompleteEstablishesFromCanonicalProfile(t *testing.T) {
	f := setupTestFixture(t)

	// Params disagree with the backend on purpose
	params := redirectParams("1", "CLIENT")
	res := f.handler.Complete(context.Background(), guard.Browser, params)

	require.Equal(t, handoff.Established, res.Outcome)
	require.NoError(t, res.Err)
	require.Equal(t, users.LandingAdmin, res.Redirect)
	require.Equal(t, f.admin, res.Record)

	current, ok := f.manager.Current()
	require.True(t, ok)
	require.Equal(t, f.admin, current)

	token, ok := f.manager.Token()
	require.True(t, ok)
	require.Equal(t, "provider-token", token)
}

func TestCompleteFallsBackToParams(t *testing.T) {
	f := setupTestFixture(t)
	f.fake.SetProfileAvailable(false)

	params := redirectParams("1", "ADMIN")
	params.Set(handoff.ParamProfilePicture, "")
	res := f.handler.Complete(context.Background(), guard.Browser, params)

	require.Equal(t, handoff.Fallback, res.Outcome)
	require.True(t, errors.Is(res.Err, errors.ErrProfileFetch))
	require.Equal(t, users.LandingProfile, res.Redirect)

	want := users.Record{ID: 1, Username: "root", Email: "r@x.com", Role: users.RoleAdmin}
	require.Equal(t, want, res.Record)

	current, ok := f.manager.Current()
	require.True(t, ok)
	require.Equal(t, want, current)
	require.True(t, f.manager.IsAdmin())
}

// recordFailingStore rejects every record write.
type recordFailingStore struct {
	*store.MemoryStore
}

func (s recordFailingStore) Set(key, value string) error {
	if key == store.KeyCurrentUser {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(key, value)
}

func TestCompleteFailedDropsToken(t *testing.T) {
	tests := []struct {
		name           string
		profileOffline bool
	}{
		{name: "canonical profile", profileOffline: false},
		{name: "fallback record", profileOffline: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			f.fake.SetProfileAvailable(!tt.profileOffline)

			// A previous user is still logged in
			mem := store.NewMemoryStore()
			data, err := json.Marshal(users.Record{ID: 5, Username: "alice", Role: users.RoleGuide})
			require.NoError(t, err)
			require.NoError(t, mem.Set(store.KeyCurrentUser, string(data)))
			require.NoError(t, mem.Set(store.KeyToken, "alice-token"))

			s := recordFailingStore{mem}
			client := backend.New(f.url+"/api", transport.NewInjector(s, nil).Client())
			mgr := session.New(s, client)
			require.True(t, mgr.IsLoggedIn())

			h := handoff.New(mgr, client)
			res := h.Complete(context.Background(), guard.Browser, redirectParams("1", "ADMIN"))
			require.Equal(t, handoff.Failed, res.Outcome)
			require.Equal(t, "/login", res.Redirect)
			require.True(t, errors.Is(res.Err, errors.ErrStorage))

			_, ok, err := mem.Get(store.KeyToken)
			require.NoError(t, err)
			require.False(t, ok)
			_, ok, err = mem.Get(store.KeyCurrentUser)
			require.NoError(t, err)
			require.False(t, ok)
			require.False(t, mgr.IsLoggedIn())

			decision := guard.New(s).Check(guard.Browser, "/admin")
			require.False(t, decision.Allowed)
		})
	}
}

func TestCompleteMissingParams(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
	}{
		{name: "nothing", params: url.Values{}},
		{name: "no token", params: func() url.Values {
			p := redirectParams("1", "ADMIN")
			p.Del(handoff.ParamToken)
			return p
		}()},
		{name: "no email", params: func() url.Values {
			p := redirectParams("1", "ADMIN")
			p.Del(handoff.ParamEmail)
			return p
		}()},
		{name: "non numeric id", params: redirectParams("abc", "ADMIN")},
		{name: "zero id", params: redirectParams("0", "ADMIN")},
		{name: "unknown role", params: redirectParams("1", "ROOT")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)

			res := f.handler.Complete(context.Background(), guard.Browser, tt.params)
			require.Equal(t, handoff.MissingParams, res.Outcome)
			require.Equal(t, "/login", res.Redirect)
			require.True(t, errors.Is(res.Err, errors.ErrMissingHandoffParams))

			require.False(t, f.manager.IsLoggedIn())
			_, ok, err := f.store.Get(store.KeyToken)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestCompleteSkippedOutsideBrowser(t *testing.T) {
	f := setupTestFixture(t)

	res := f.handler.Complete(context.Background(), guard.ServerRender, redirectParams("1", "ADMIN"))
	require.Equal(t, handoff.Skipped, res.Outcome)
	require.Empty(t, res.Redirect)
	require.False(t, f.manager.IsLoggedIn())

	_, ok, err := f.store.Get(store.KeyToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestServeHTTP(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("server render", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2/redirect?"+redirectParams("1", "ADMIN").Encode(), nil)
		req.Header.Set(guard.RenderModeHeader, "server")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("browser", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2/redirect?"+redirectParams("1", "ADMIN").Encode(), nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, users.LandingAdmin, rec.Header().Get("Location"))
	})
}

func TestProviderLoginURL(t *testing.T) {
	h := handoff.New(nil, nil, handoff.WithBackendOrigin(handoff.BackendOrigin("http://tuniway.local:8083/api/")))

	u, err := h.ProviderLoginURL(handoff.ProviderGoogle)
	require.NoError(t, err)
	require.Equal(t, "http://tuniway.local:8083/oauth2/authorization/google", u)

	u, err = h.ProviderLoginURL(handoff.ProviderGitHub)
	require.NoError(t, err)
	require.Equal(t, "http://tuniway.local:8083/oauth2/authorization/github", u)

	_, err = h.ProviderLoginURL("facebook")
	require.True(t, errors.Is(err, errors.ErrUnsupportedProvider))

	rec := httptest.NewRecorder()
	h.LoginRedirect(func(*http.Request) string { return "github" })(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "http://tuniway.local:8083/oauth2/authorization/github", rec.Header().Get("Location"))
}
