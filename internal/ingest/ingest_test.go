package ingest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supahealth/supahealth/internal/metric"
	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/rid"
	"github.com/supahealth/supahealth/internal/store"
	"github.com/supahealth/supahealth/internal/store/sqlite"
)

func newEngineForTest(t *testing.T) (*Engine, store.Store, string) {
	t.Helper()
	s, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	user, err := s.Users().Create(context.Background(), &model.User{
		ID:           rid.New("user"),
		Email:        "ingest@example.test",
		PasswordHash: "x",
		IsActive:     true,
	})
	require.NoError(t, err)

	return NewEngine(s.Metrics(), zerolog.Nop()), s, user.ID
}

func mustDef(t *testing.T, kind string) metric.Definition {
	t.Helper()
	def, ok := metric.Lookup(kind)
	require.True(t, ok)
	return def
}

func TestIngestCreatesRecords(t *testing.T) {
	eng, _, userID := newEngineForTest(t)
	def := mustDef(t, "steps")
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	res, err := eng.Ingest(context.Background(), userID, def, []Point{
		{Timestamp: ts, Source: "Watch", Values: map[string]float64{"steps": 4200}},
		{Timestamp: ts.Add(time.Hour), Source: "Watch", Values: map[string]float64{"steps": 1800}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Records, 2)
	for _, rec := range res.Records {
		assert.True(t, rid.Is(rec.ID, "steps"))
	}
}

func TestIngestSameKeyUpdatesInPlace(t *testing.T) {
	eng, s, userID := newEngineForTest(t)
	def := mustDef(t, "steps")
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	point := Point{Timestamp: ts, Source: "Watch", Values: map[string]float64{"steps": 4200}}

	first, err := eng.Ingest(context.Background(), userID, def, []Point{point})
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	point.Values = map[string]float64{"steps": 9000}
	second, err := eng.Ingest(context.Background(), userID, def, []Point{point})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Updated)

	// One row, original identifier, latest value.
	assert.Equal(t, first.Records[0].ID, second.Records[0].ID)
	list, err := s.Metrics().List(context.Background(), model.ListMetricsRequest{UserID: userID, Kind: "steps"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, float64(9000), list[0].Fields["steps"])
}

func TestIngestFloorsCounts(t *testing.T) {
	eng, _, userID := newEngineForTest(t)
	def := mustDef(t, "steps")

	res, err := eng.Ingest(context.Background(), userID, def, []Point{
		{Timestamp: time.Now(), Source: "Phone", Values: map[string]float64{"steps": 1250.7}},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, float64(1250), res.Records[0].Fields["steps"])
}

func TestIngestWorkoutLabels(t *testing.T) {
	eng, s, userID := newEngineForTest(t)
	def := mustDef(t, "workouts")
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	res, err := eng.Ingest(context.Background(), userID, def, []Point{
		{
			Timestamp: ts,
			Source:    "Watch",
			Values:    map[string]float64{"duration_minutes": 45.9, "calories_burned": 312.5},
			Labels:    map[string]string{"workout_type": "running", "intensity": "High", "workout_name": "Tempo Run"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, float64(45), rec.Fields["duration_minutes"])
	assert.Equal(t, "running", rec.Labels["workout_type"])
	assert.Equal(t, "high", rec.Labels["intensity"])
	assert.Equal(t, "Tempo Run", rec.Labels["workout_name"])

	list, err := s.Metrics().List(context.Background(), model.ListMetricsRequest{UserID: userID, Kind: "workouts"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.Labels, list[0].Labels)
}

func TestIngestWorkoutRequiresType(t *testing.T) {
	eng, _, userID := newEngineForTest(t)
	def := mustDef(t, "workouts")

	res, err := eng.Ingest(context.Background(), userID, def, []Point{
		{Timestamp: time.Now(), Source: "Watch", Values: map[string]float64{"duration_minutes": 30}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "workout_type", res.Failures[0].Field)
}

func TestIngestPartialBatch(t *testing.T) {
	eng, _, userID := newEngineForTest(t)
	def := mustDef(t, "heart_rate")
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	res, err := eng.Ingest(context.Background(), userID, def, []Point{
		{Timestamp: ts, Source: "Watch", Values: map[string]float64{"heart_rate": 72}},
		{Timestamp: ts.Add(time.Hour), Source: "Watch", Values: map[string]float64{"heart_rate": 999}},
		{Timestamp: ts.Add(2 * time.Hour), Source: "Watch", Values: map[string]float64{"heart_rate": 65}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, "heart_rate", res.Failures[0].Field)
}

func TestIngestRejectsIncompletePoints(t *testing.T) {
	eng, _, userID := newEngineForTest(t)
	def := mustDef(t, "steps")
	ts := time.Now()

	res, err := eng.Ingest(context.Background(), userID, def, []Point{
		{Source: "Watch", Values: map[string]float64{"steps": 100}},
		{Timestamp: ts, Values: map[string]float64{"steps": 100}},
		{Timestamp: ts, Source: "Watch"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	require.Len(t, res.Failures, 3)
	assert.Equal(t, "date", res.Failures[0].Field)
	assert.Equal(t, "source", res.Failures[1].Field)
	assert.Equal(t, "values", res.Failures[2].Field)
}

func TestIngestEmptyBatch(t *testing.T) {
	eng, _, userID := newEngineForTest(t)
	def := mustDef(t, "steps")

	_, err := eng.Ingest(context.Background(), userID, def, nil)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestIngestNormalizesToUTC(t *testing.T) {
	eng, _, userID := newEngineForTest(t)
	def := mustDef(t, "steps")
	loc := time.FixedZone("UTC+5", 5*60*60)
	ts := time.Date(2025, 6, 1, 14, 0, 0, 0, loc)

	res, err := eng.Ingest(context.Background(), userID, def, []Point{
		{Timestamp: ts, Source: "Watch", Values: map[string]float64{"steps": 10}},
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, time.UTC, res.Records[0].Timestamp.Location())
	assert.True(t, res.Records[0].Timestamp.Equal(ts))
}
