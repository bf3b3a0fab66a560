package backend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuniway/tuniway-web/backend"
	"github.com/tuniway/tuniway-web/backend/backendfake"
	"github.com/tuniway/tuniway-web/internal/errors"
	"github.com/tuniway/tuniway-web/internal/utils"
	"github.com/tuniway/tuniway-web/users"
)

type testFixture struct {
	fake   *backendfake.Server
	client *backend.Client
	guide  users.Record
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	fake := backendfake.New("test-secret")
	guide, err := fake.Seed(users.Record{Username: "alice", Email: "a@x.com", Role: users.RoleGuide}, "secret1")
	require.NoError(t, err)

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return &testFixture{
		fake:   fake,
		client: backend.New(srv.URL+"/api/", nil),
		guide:  guide,
	}
}

func TestSignIn(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	t.Run("by username", func(t *testing.T) {
		resp, err := f.client.SignIn(ctx, users.Credentials{Username: "alice", Password: "secret1"})
		require.NoError(t, err)
		require.NotEmpty(t, resp.BearerToken())
		require.Equal(t, "Bearer", resp.Type)

		record, err := resp.Record()
		require.NoError(t, err)
		require.Equal(t, f.guide, record)
	})

	t.Run("by email", func(t *testing.T) {
		resp, err := f.client.SignIn(ctx, users.Credentials{Username: "A@x.com", Password: "secret1"})
		require.NoError(t, err)
		require.Equal(t, f.guide.ID, resp.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.client.SignIn(ctx, users.Credentials{Username: "alice", Password: "nope"})
		var apiErr *backend.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.Status)
		require.Equal(t, "Invalid username or password", apiErr.Message)
	})
}

func TestSignUp(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		reg     users.Registration
		status  int
		message string
	}{
		{name: "missing username", reg: users.Registration{Email: "x@x.com", Password: "secret1"}, status: http.StatusBadRequest, message: "Error: Username is required"},
		{name: "short password", reg: users.Registration{Username: "x", Email: "x@x.com", Password: "abc"}, status: http.StatusBadRequest, message: "Error: Password must be at least 6 characters"},
		{name: "username taken", reg: users.Registration{Username: "alice", Email: "other@x.com", Password: "secret1"}, status: http.StatusConflict, message: "Error: Username is already taken!"},
		{name: "email taken", reg: users.Registration{Username: "other", Email: "a@x.com", Password: "secret1"}, status: http.StatusConflict, message: "Error: Email is already in use!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.SignUp(ctx, tt.reg)
			var apiErr *backend.APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.status, apiErr.Status)
			require.Equal(t, tt.message, apiErr.Message)
		})
	}

	t.Run("creates client by default", func(t *testing.T) {
		resp, err := f.client.SignUp(ctx, users.Registration{Username: "bob", Email: "b@x.com", Password: "secret1"})
		require.NoError(t, err)
		record, err := resp.Record()
		require.NoError(t, err)
		require.Equal(t, users.RoleClient, record.Role)
		require.Greater(t, record.ID, f.guide.ID)
	})
}

func TestProfile(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	record, err := f.client.Profile(ctx, f.guide.ID)
	require.NoError(t, err)
	require.Equal(t, f.guide, record)

	_, err = f.client.Profile(ctx, 999)
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)

	f.fake.SetProfileAvailable(false)
	_, err = f.client.Profile(ctx, f.guide.ID)
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}

func TestUpdateProfileRequiresBearer(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	_, err := f.client.UpdateProfile(ctx, f.guide.ID, users.Patch{Username: utils.Ptr("alice2")})
	var apiErr *backend.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestRoleParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":4,"username":"root","email":"r@x.com","role":"ROLE_ADMIN","profilePicture":""}`))
	}))
	defer srv.Close()

	record, err := backend.New(srv.URL, nil).Profile(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, users.RoleAdmin, record.Role)
	require.Nil(t, record.ProfilePicture)
}
