// Package storetest exercises a compliance suite against a store.Store
// implementation. Drivers run it from their own _test files.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/rid"
	"github.com/supahealth/supahealth/internal/store"
)

// Run exercises the full store contract. makeStore must return a clean,
// isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	user := seedUser(t, s, uniqueEmail("suite"))
	other := seedUser(t, s, uniqueEmail("other"))

	t.Run("users", func(t *testing.T) { testUsers(t, ctx, s) })
	t.Run("metrics", func(t *testing.T) { testMetrics(t, ctx, s, user, other) })
	t.Run("metrics concurrent upsert", func(t *testing.T) { testConcurrentMetricUpsert(t, ctx, s) })
	t.Run("goals", func(t *testing.T) { testGoals(t, ctx, s, user, other) })
	t.Run("goals concurrent upsert", func(t *testing.T) { testConcurrentGoalUpsert(t, ctx, s) })
	t.Run("chats", func(t *testing.T) { testChats(t, ctx, s, user) })
}

// uniqueEmail keeps reruns against a persistent database from tripping
// the unique email index.
func uniqueEmail(label string) string {
	_, suffix, _ := rid.Parse(rid.New("user"))
	return label + "+" + suffix + "@example.test"
}

func seedUser(t *testing.T, s store.Store, email string) *model.User {
	t.Helper()
	u, err := s.Users().Create(context.Background(), &model.User{
		ID:           rid.New("user"),
		Email:        email,
		PasswordHash: "x",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func testUsers(t *testing.T, ctx context.Context, s store.Store) {
	email := uniqueEmail("users")
	u, err := s.Users().Create(ctx, &model.User{
		ID:           rid.New("user"),
		Email:        email,
		PasswordHash: "hash",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.CreatedAt.IsZero() {
		t.Fatal("Create: zero created_at")
	}

	got, err := s.Users().GetByID(ctx, u.ID)
	if err != nil || got.Email != email {
		t.Fatalf("GetByID: got=%+v err=%v", got, err)
	}
	got, err = s.Users().GetByEmail(ctx, email)
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetByEmail: got=%+v err=%v", got, err)
	}

	// duplicate email must map to ErrConflict
	_, err = s.Users().Create(ctx, &model.User{ID: rid.New("user"), Email: email, PasswordHash: "y", IsActive: true})
	if err != model.ErrConflict {
		t.Fatalf("duplicate email: want ErrConflict, got %v", err)
	}

	if _, err := s.Users().GetByID(ctx, "user..nosuchsuffix"); err != model.ErrNotFound {
		t.Fatalf("missing user: want ErrNotFound, got %v", err)
	}
}

func testMetrics(t *testing.T, ctx context.Context, s store.Store, user, other *model.User) {
	ts := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	first := &model.MetricRecord{
		ID:        rid.New("steps"),
		UserID:    user.ID,
		Kind:      "steps",
		Timestamp: ts,
		Source:    "Watch",
		Fields:    map[string]float64{"steps": 1250},
	}
	got, created, err := s.Metrics().Upsert(ctx, first)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	if got.ID != first.ID {
		t.Fatalf("first upsert: id changed: %s != %s", got.ID, first.ID)
	}

	// Same natural key, new values: one row, same identifier, latest values.
	second := &model.MetricRecord{
		ID:        rid.New("steps"),
		UserID:    user.ID,
		Kind:      "steps",
		Timestamp: ts,
		Source:    "Watch",
		Fields:    map[string]float64{"steps": 2000},
	}
	got2, created, err := s.Metrics().Upsert(ctx, second)
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	if got2.ID != first.ID {
		t.Fatalf("second upsert must preserve row identifier: %s != %s", got2.ID, first.ID)
	}
	if got2.UpdatedAt == nil {
		t.Fatal("second upsert: nil updated_at")
	}

	list, err := s.Metrics().List(ctx, model.ListMetricsRequest{UserID: user.ID, Kind: "steps"})
	if err != nil || len(list) != 1 {
		t.Fatalf("List after re-ingest: n=%d err=%v", len(list), err)
	}
	if list[0].Fields["steps"] != 2000 {
		t.Fatalf("List: want latest value 2000, got %v", list[0].Fields["steps"])
	}
	if !list[0].Timestamp.Equal(ts) {
		t.Fatalf("List: timestamp drifted: %v != %v", list[0].Timestamp, ts)
	}

	// Different source at the same instant is a distinct row.
	third := &model.MetricRecord{
		ID:        rid.New("steps"),
		UserID:    user.ID,
		Kind:      "steps",
		Timestamp: ts,
		Source:    "Phone",
		Fields:    map[string]float64{"steps": 900},
	}
	if _, created, err := s.Metrics().Upsert(ctx, third); err != nil || !created {
		t.Fatalf("different source: created=%v err=%v", created, err)
	}
	list, err = s.Metrics().List(ctx, model.ListMetricsRequest{UserID: user.ID, Kind: "steps"})
	if err != nil || len(list) != 2 {
		t.Fatalf("List with two sources: n=%d err=%v", len(list), err)
	}

	// Date-range filter.
	from := ts.Add(30 * time.Minute)
	list, err = s.Metrics().List(ctx, model.ListMetricsRequest{UserID: user.ID, Kind: "steps", StartDate: &from})
	if err != nil || len(list) != 0 {
		t.Fatalf("List with future start: n=%d err=%v", len(list), err)
	}

	// Owner scoping: the other user sees nothing and cannot touch rows.
	if _, err := s.Metrics().GetByID(ctx, other.ID, "steps", first.ID); err != model.ErrNotFound {
		t.Fatalf("cross-user get: want ErrNotFound, got %v", err)
	}
	if err := s.Metrics().Delete(ctx, other.ID, "steps", first.ID); err != model.ErrNotFound {
		t.Fatalf("cross-user delete: want ErrNotFound, got %v", err)
	}

	if got, err := s.Metrics().GetByID(ctx, user.ID, "steps", first.ID); err != nil || got.Fields["steps"] != 2000 {
		t.Fatalf("owner get: got=%+v err=%v", got, err)
	}
	if err := s.Metrics().Delete(ctx, user.ID, "steps", third.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := s.Metrics().Delete(ctx, user.ID, "steps", third.ID); err != model.ErrNotFound {
		t.Fatalf("repeat delete: want ErrNotFound, got %v", err)
	}

	// String labels ride along with the record and survive a round trip;
	// re-ingesting the key replaces them.
	workout := &model.MetricRecord{
		ID:        rid.New("workouts"),
		UserID:    user.ID,
		Kind:      "workouts",
		Timestamp: ts,
		Source:    "Watch",
		Fields:    map[string]float64{"duration_minutes": 45, "calories_burned": 310},
		Labels:    map[string]string{"workout_type": "running", "intensity": "high"},
	}
	if _, created, err := s.Metrics().Upsert(ctx, workout); err != nil || !created {
		t.Fatalf("workout upsert: created=%v err=%v", created, err)
	}
	got3, err := s.Metrics().GetByID(ctx, user.ID, "workouts", workout.ID)
	if err != nil {
		t.Fatalf("workout get: %v", err)
	}
	if got3.Labels["workout_type"] != "running" || got3.Labels["intensity"] != "high" {
		t.Fatalf("workout labels lost on round trip: %+v", got3.Labels)
	}
	relabeled := &model.MetricRecord{
		ID:        rid.New("workouts"),
		UserID:    user.ID,
		Kind:      "workouts",
		Timestamp: ts,
		Source:    "Watch",
		Fields:    map[string]float64{"duration_minutes": 50},
		Labels:    map[string]string{"workout_type": "cycling"},
	}
	if _, created, err := s.Metrics().Upsert(ctx, relabeled); err != nil || created {
		t.Fatalf("workout re-upsert: created=%v err=%v", created, err)
	}
	got3, err = s.Metrics().GetByID(ctx, user.ID, "workouts", workout.ID)
	if err != nil || got3.Labels["workout_type"] != "cycling" {
		t.Fatalf("workout re-upsert labels: got=%+v err=%v", got3.Labels, err)
	}
	if _, stale := got3.Labels["intensity"]; stale {
		t.Fatalf("workout re-upsert kept stale label: %+v", got3.Labels)
	}
}

// Concurrent same-key ingests must all land without write-lock errors:
// one surviving row that carries one of the submitted values.
func testConcurrentMetricUpsert(t *testing.T, ctx context.Context, s store.Store) {
	user := seedUser(t, s, uniqueEmail("metric-race"))
	ts := time.Date(2025, 2, 1, 7, 0, 0, 0, time.UTC)

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = s.Metrics().Upsert(ctx, &model.MetricRecord{
				ID:        rid.New("steps"),
				UserID:    user.ID,
				Kind:      "steps",
				Timestamp: ts,
				Source:    "Watch",
				Fields:    map[string]float64{"steps": float64(1000 + i)},
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert %d: %v", i, err)
		}
	}
	list, err := s.Metrics().List(ctx, model.ListMetricsRequest{UserID: user.ID, Kind: "steps"})
	if err != nil || len(list) != 1 {
		t.Fatalf("after concurrent upserts: n=%d err=%v", len(list), err)
	}
	if v := list[0].Fields["steps"]; v < 1000 || v >= 1000+writers {
		t.Fatalf("surviving row carries a value nobody wrote: %v", v)
	}
}

// Concurrent PUTs of the same goal must collapse onto one row; the
// unique index is the backstop when both writers miss the existing row.
func testConcurrentGoalUpsert(t *testing.T, ctx context.Context, s store.Store) {
	user := seedUser(t, s, uniqueEmail("goal-race"))

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = s.Goals().Upsert(ctx, &model.Goal{
				ID:     rid.New("goal"),
				UserID: user.ID,
				Kind:   "macros",
				Fields: map[string]float64{"calories": float64(2000 + i)},
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent goal upsert %d: %v", i, err)
		}
	}
	goals, err := s.Goals().List(ctx, user.ID, "macros")
	if err != nil || len(goals) != 1 {
		t.Fatalf("after concurrent goal upserts: n=%d err=%v", len(goals), err)
	}
}

func testGoals(t *testing.T, ctx context.Context, s store.Store, user, other *model.User) {
	g := &model.Goal{
		ID:     rid.New("goal"),
		UserID: user.ID,
		Kind:   "macros",
		Fields: map[string]float64{"calories": 2200, "protein": 160},
	}
	created1, created, err := s.Goals().Upsert(ctx, g)
	if err != nil || !created {
		t.Fatalf("goal insert: created=%v err=%v", created, err)
	}

	// One macros goal per user: re-upsert updates in place.
	g2 := &model.Goal{
		ID:     rid.New("goal"),
		UserID: user.ID,
		Kind:   "macros",
		Fields: map[string]float64{"calories": 2000, "protein": 150},
	}
	updated, created, err := s.Goals().Upsert(ctx, g2)
	if err != nil || created {
		t.Fatalf("goal re-upsert: created=%v err=%v", created, err)
	}
	if updated.ID != created1.ID {
		t.Fatalf("goal re-upsert must preserve identifier: %s != %s", updated.ID, created1.ID)
	}

	// Weight goals key on the target hour: two hours, two rows.
	h1 := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	h2 := h1.Add(time.Hour)
	for _, h := range []time.Time{h1, h2} {
		h := h
		if _, created, err := s.Goals().Upsert(ctx, &model.Goal{
			ID:         rid.New("goal"),
			UserID:     user.ID,
			Kind:       "weight",
			TargetTime: &h,
			Fields:     map[string]float64{"weight": 80},
		}); err != nil || !created {
			t.Fatalf("weight goal insert: created=%v err=%v", created, err)
		}
	}
	if _, created, err := s.Goals().Upsert(ctx, &model.Goal{
		ID:         rid.New("goal"),
		UserID:     user.ID,
		Kind:       "weight",
		TargetTime: &h1,
		Fields:     map[string]float64{"weight": 79},
	}); err != nil || created {
		t.Fatalf("weight goal same hour: created=%v err=%v", created, err)
	}
	weights, err := s.Goals().List(ctx, user.ID, "weight")
	if err != nil || len(weights) != 2 {
		t.Fatalf("weight goal list: n=%d err=%v", len(weights), err)
	}

	// Cross-user delete is indistinguishable from missing.
	if err := s.Goals().Delete(ctx, other.ID, "macros", created1.ID); err != model.ErrNotFound {
		t.Fatalf("cross-user goal delete: want ErrNotFound, got %v", err)
	}
	if err := s.Goals().Delete(ctx, user.ID, "macros", created1.ID); err != nil {
		t.Fatalf("goal delete: %v", err)
	}
}

func testChats(t *testing.T, ctx context.Context, s store.Store, user *model.User) {
	if _, err := s.Chats().ActiveConversation(ctx, user.ID); err != model.ErrNotFound {
		t.Fatalf("no conversation yet: want ErrNotFound, got %v", err)
	}

	conv, err := s.Chats().CreateConversation(ctx, &model.Conversation{
		ID:     rid.New("conversation"),
		UserID: user.ID,
		Title:  "New Chat",
		Status: "active",
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	active, err := s.Chats().ActiveConversation(ctx, user.ID)
	if err != nil || active.ID != conv.ID {
		t.Fatalf("ActiveConversation: got=%+v err=%v", active, err)
	}

	for i, turn := range []struct{ role, content string }{
		{"user", "how did I sleep this week?"},
		{"assistant", "you averaged 7h12m."},
	} {
		if _, err := s.Chats().AppendMessage(ctx, &model.Message{
			ID:             rid.New("message"),
			ConversationID: conv.ID,
			UserID:         user.ID,
			Role:           turn.role,
			Content:        turn.content,
		}); err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}

	msgs, err := s.Chats().ListMessages(ctx, user.ID, conv.ID)
	if err != nil || len(msgs) != 2 {
		t.Fatalf("ListMessages: n=%d err=%v", len(msgs), err)
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("ListMessages order: %s, %s", msgs[0].Role, msgs[1].Role)
	}

	if _, err := s.Chats().GetConversation(ctx, "user..someoneelse", conv.ID); err != model.ErrNotFound {
		t.Fatalf("cross-user conversation: want ErrNotFound, got %v", err)
	}
}
