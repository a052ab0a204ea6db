package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/store/sqlite"
)

type staticProvider struct {
	reply string
	err   error
}

func (p *staticProvider) Complete(ctx context.Context, msgs []*model.Message) (string, error) {
	return p.reply, p.err
}

type testAPI struct {
	srv      *httptest.Server
	provider *staticProvider
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	issuer := auth.NewTokenIssuer("test-secret-key", time.Hour, s.Users())
	provider := &staticProvider{reply: "looking good this week."}
	router := NewRouter(s, issuer, provider, zerolog.Nop())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testAPI{srv: srv, provider: provider}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// signup+signin, returning the bearer token.
func (a *testAPI) newUser(t *testing.T, email string) string {
	t.Helper()
	resp, _ := a.do(t, "POST", "/api/v1/auth/signup", "", map[string]any{
		"email": email, "password": "correct-horse", "fullName": "Test User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := a.do(t, "POST", "/api/v1/auth/signin", "", map[string]any{
		"email": email, "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, _ := body["accessToken"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestSignupSigninMe(t *testing.T) {
	a := newTestAPI(t)

	resp, created := a.do(t, "POST", "/api/v1/auth/signup", "", map[string]any{
		"email": "Zoe@Example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "zoe@example.com", created["email"])
	assert.NotContains(t, created, "passwordHash")

	resp, body := a.do(t, "POST", "/api/v1/auth/signin", "", map[string]any{
		"email": "zoe@example.com", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "bearer", body["tokenType"])
	token := body["accessToken"].(string)

	resp, me := a.do(t, "GET", "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created["id"], me["id"])
	assert.Equal(t, "zoe@example.com", me["email"])
}

func TestSignupValidation(t *testing.T) {
	a := newTestAPI(t)

	resp, body := a.do(t, "POST", "/api/v1/auth/signup", "", map[string]any{
		"email": "short@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "password", body["field"])

	resp, body = a.do(t, "POST", "/api/v1/auth/signup", "", map[string]any{
		"email": "not-an-email", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "email", body["field"])
}

func TestSignupDuplicateEmail(t *testing.T) {
	a := newTestAPI(t)
	a.newUser(t, "dup@example.com")

	resp, _ := a.do(t, "POST", "/api/v1/auth/signup", "", map[string]any{
		"email": "dup@example.com", "password": "another-pass",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSigninUniformFailure(t *testing.T) {
	a := newTestAPI(t)
	a.newUser(t, "real@example.com")

	// Wrong password and unknown account answer identically.
	resp1, body1 := a.do(t, "POST", "/api/v1/auth/signin", "", map[string]any{
		"email": "real@example.com", "password": "wrong-password",
	})
	resp2, body2 := a.do(t, "POST", "/api/v1/auth/signin", "", map[string]any{
		"email": "ghost@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, resp1.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
	assert.Equal(t, body1["message"], body2["message"])
}

func TestRefresh(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "refresh@example.com")

	resp, body := a.do(t, "POST", "/api/v1/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fresh := body["accessToken"].(string)
	assert.NotEmpty(t, fresh)

	// Both tokens keep working.
	for _, tok := range []string{token, fresh} {
		resp, _ := a.do(t, "GET", "/api/v1/auth/me", tok, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newTestAPI(t)
	for _, route := range []struct{ method, path string }{
		{"GET", "/api/v1/auth/me"},
		{"POST", "/api/v1/metrics/steps/bulk"},
		{"GET", "/api/v1/metrics/steps"},
		{"PUT", "/api/v1/goals/macros"},
		{"POST", "/api/v1/chat"},
	} {
		resp, body := a.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", route.method, route.path)
		assert.Equal(t, "could not validate credentials", body["message"])
	}
}

func TestBulkIngestAndList(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "steps@example.com")

	resp, body := a.do(t, "POST", "/api/v1/metrics/steps/bulk", token, map[string]any{
		"records": []map[string]any{
			{"date": "2025-01-15T10:00:00Z", "source": "Watch", "steps": 1250.7},
			{"date": "2025-01-15T11:00:00Z", "source": "Watch", "steps": 800},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["createdCount"])
	assert.Equal(t, float64(0), body["updatedCount"])

	records := body["records"].([]any)
	first := records[0].(map[string]any)
	values := first["values"].(map[string]any)
	assert.Equal(t, float64(1250), values["steps"])

	// Re-ingest the same hour: update, not a new row.
	resp, body = a.do(t, "POST", "/api/v1/metrics/steps/bulk", token, map[string]any{
		"records": []map[string]any{
			{"date": "2025-01-15T10:00:00Z", "source": "Watch", "steps": 3000},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["updatedCount"])

	resp, body = a.do(t, "GET", "/api/v1/metrics/steps", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["totalCount"])

	// Date range narrows the result.
	resp, body = a.do(t, "GET", "/api/v1/metrics/steps?startDate=2025-01-15T10%3A30%3A00Z", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["totalCount"])
}

func TestBulkIngestWorkouts(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "workouts@example.com")

	// String keys on the flat point become labels; numbers stay values.
	resp, body := a.do(t, "POST", "/api/v1/metrics/workouts/bulk", token, map[string]any{
		"records": []map[string]any{
			{
				"date":             "2025-01-15T18:00:00Z",
				"source":           "Watch",
				"workout_type":     "running",
				"workout_name":     "Evening Run",
				"intensity":        "moderate",
				"duration_minutes": 42.6,
				"calories_burned":  388.4,
			},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["createdCount"])

	records := body["records"].([]any)
	first := records[0].(map[string]any)
	values := first["values"].(map[string]any)
	labels := first["labels"].(map[string]any)
	assert.Equal(t, float64(42), values["duration_minutes"])
	assert.Equal(t, float64(388.4), values["calories_burned"])
	assert.Equal(t, "running", labels["workout_type"])
	assert.Equal(t, "Evening Run", labels["workout_name"])

	// Missing the required workout_type fails that point, not the batch.
	resp, body = a.do(t, "POST", "/api/v1/metrics/workouts/bulk", token, map[string]any{
		"records": []map[string]any{
			{"date": "2025-01-16T18:00:00Z", "source": "Watch", "duration_minutes": 30},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["createdCount"])
	failures := body["failures"].([]any)
	require.Len(t, failures, 1)
	assert.Equal(t, "workout_type", failures[0].(map[string]any)["field"])
}

func TestBulkIngestPartialFailure(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "hr@example.com")

	resp, body := a.do(t, "POST", "/api/v1/metrics/heart_rate/bulk", token, map[string]any{
		"records": []map[string]any{
			{"date": "2025-01-15T10:00:00Z", "source": "Watch", "heart_rate": 72},
			{"date": "2025-01-15T11:00:00Z", "source": "Watch", "heart_rate": 999},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["createdCount"])

	failures := body["failures"].([]any)
	require.Len(t, failures, 1)
	failure := failures[0].(map[string]any)
	assert.Equal(t, float64(1), failure["index"])
	assert.Equal(t, "heart_rate", failure["field"])
}

func TestUnknownMetricKind(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "kind@example.com")

	resp, _ := a.do(t, "POST", "/api/v1/metrics/blood_type/bulk", token, map[string]any{
		"records": []map[string]any{{"date": "2025-01-15T10:00:00Z", "source": "Watch", "x": 1}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecordOwnership(t *testing.T) {
	a := newTestAPI(t)
	owner := a.newUser(t, "owner@example.com")
	intruder := a.newUser(t, "intruder@example.com")

	resp, body := a.do(t, "POST", "/api/v1/metrics/steps/bulk", owner, map[string]any{
		"records": []map[string]any{{"date": "2025-01-15T10:00:00Z", "source": "Watch", "steps": 100}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	recID := body["records"].([]any)[0].(map[string]any)["id"].(string)

	path := fmt.Sprintf("/api/v1/metrics/steps/%s", recID)
	resp, _ = a.do(t, "GET", path, intruder, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = a.do(t, "DELETE", path, intruder, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.do(t, "GET", path, owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = a.do(t, "DELETE", path, owner, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = a.do(t, "GET", path, owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGoals(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "goals@example.com")

	resp, _ := a.do(t, "PUT", "/api/v1/goals/macros", token, map[string]any{
		"values": map[string]any{"calories": 2200, "protein": 160},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := a.do(t, "PUT", "/api/v1/goals/macros", token, map[string]any{
		"values": map[string]any{"calories": 2000, "protein": 150},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	goalID := body["id"].(string)

	resp, body = a.do(t, "GET", "/api/v1/goals/macros", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2000), body["values"].(map[string]any)["calories"])

	// Weight goals need a target time and list as a schedule.
	resp, body = a.do(t, "PUT", "/api/v1/goals/weight", token, map[string]any{
		"values": map[string]any{"weight": 80},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "targetTime", body["field"])

	for _, ts := range []string{"2025-03-01T08:00:00Z", "2025-03-08T08:00:00Z"} {
		resp, _ = a.do(t, "PUT", "/api/v1/goals/weight", token, map[string]any{
			"targetTime": ts, "values": map[string]any{"weight": 80},
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, body = a.do(t, "GET", "/api/v1/goals/weight", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["totalCount"])

	resp, _ = a.do(t, "DELETE", "/api/v1/goals/macros/"+goalID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = a.do(t, "GET", "/api/v1/goals/macros", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChat(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "chat@example.com")

	resp, body := a.do(t, "POST", "/api/v1/chat", token, map[string]any{
		"message": "how did I sleep?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, a.provider.reply, body["reply"])
	convID := body["conversationId"].(string)

	resp, body = a.do(t, "GET", "/api/v1/chat/history", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, convID, body["conversationId"])
	assert.Equal(t, float64(2), body["totalCount"])
}

func TestChatUpstreamFailure(t *testing.T) {
	a := newTestAPI(t)
	token := a.newUser(t, "down@example.com")
	a.provider.err = model.ErrUpstream

	resp, _ := a.do(t, "POST", "/api/v1/chat", token, map[string]any{"message": "hello?"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	resp, body := a.do(t, "GET", "/api/v1/system/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
