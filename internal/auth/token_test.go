package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supahealth/supahealth/internal/model"
)

// fakeUsers is an in-memory store.Users backing the token tests.
type fakeUsers struct {
	byID map[string]*model.User
}

func (f *fakeUsers) Create(ctx context.Context, u *model.User) (*model.User, error) {
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, model.ErrNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, model.ErrNotFound
}

func newIssuerForTest(ttl time.Duration) (*TokenIssuer, *model.User) {
	user := &model.User{ID: "user..abcdef123456", Email: "t@example.test", IsActive: true}
	users := &fakeUsers{byID: map[string]*model.User{user.ID: user}}
	return NewTokenIssuer("test-secret-key", ttl, users), user
}

func TestTokenIssueVerify(t *testing.T) {
	issuer, user := newIssuerForTest(time.Hour)

	token, expiresAt, err := issuer.Issue(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	got, err := issuer.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestTokenVerifyExpired(t *testing.T) {
	issuer, user := newIssuerForTest(time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Verify(context.Background(), token)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTokenVerifyWrongSecret(t *testing.T) {
	issuer, user := newIssuerForTest(time.Hour)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)

	other := NewTokenIssuer("a-different-secret", time.Hour, &fakeUsers{byID: map[string]*model.User{user.ID: user}})
	_, err = other.Verify(context.Background(), token)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTokenVerifyGarbage(t *testing.T) {
	issuer, _ := newIssuerForTest(time.Hour)
	for _, tok := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		_, err := issuer.Verify(context.Background(), tok)
		assert.ErrorIs(t, err, model.ErrNotFound, "token %q", tok)
	}
}

func TestTokenVerifyInactiveUser(t *testing.T) {
	issuer, user := newIssuerForTest(time.Hour)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)

	user.IsActive = false
	_, err = issuer.Verify(context.Background(), token)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestTokenRefresh(t *testing.T) {
	issuer, user := newIssuerForTest(time.Hour)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)

	fresh, expiresAt, got, err := issuer.Refresh(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, fresh)
	assert.True(t, expiresAt.After(time.Now()))

	// The original token is not revoked by refreshing.
	_, err = issuer.Verify(context.Background(), token)
	assert.NoError(t, err)
}

func TestMiddleware(t *testing.T) {
	issuer, user := newIssuerForTest(time.Hour)
	token, _, err := issuer.Issue(user)
	require.NoError(t, err)

	var seen *model.User
	handler := Middleware(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbled token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, user.ID, seen.ID)
			} else {
				assert.Contains(t, rec.Body.String(), "could not validate credentials")
			}
		})
	}
}
