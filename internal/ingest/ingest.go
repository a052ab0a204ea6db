// Package ingest turns batches of raw measurement points into stored
// metric records. Each point is validated and upserted independently so
// one bad point never sinks the rest of its batch.
package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/supahealth/supahealth/internal/metric"
	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/rid"
	"github.com/supahealth/supahealth/internal/store"
)

// Point is one raw measurement as submitted by a client.
type Point struct {
	Timestamp time.Time
	Source    string
	Values    map[string]float64
	Labels    map[string]string
}

// Failure records why one point of a batch was rejected. Index is the
// point's position in the submitted batch.
type Failure struct {
	Index   int    `json:"index"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result summarizes a batch ingest.
type Result struct {
	Created  int                   `json:"created"`
	Updated  int                   `json:"updated"`
	Records  []*model.MetricRecord `json:"records"`
	Failures []Failure             `json:"failures,omitempty"`
}

// Engine validates and persists measurement points.
type Engine struct {
	metrics store.Metrics
	logger  zerolog.Logger
}

func NewEngine(metrics store.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{metrics: metrics, logger: logger.With().Str("component", "ingest").Logger()}
}

// Ingest persists points for the user under the given metric kind.
// Points that fail validation or storage are reported in the result's
// Failures; the rest of the batch proceeds. A non-nil error means the
// batch as a whole could not be attempted.
func (e *Engine) Ingest(ctx context.Context, userID string, def metric.Definition, points []Point) (*Result, error) {
	if len(points) == 0 {
		return nil, model.Fieldf("points", "at least one point is required")
	}

	res := &Result{Records: make([]*model.MetricRecord, 0, len(points))}
	for i, p := range points {
		rec, created, err := e.ingestOne(ctx, userID, def, p)
		if err != nil {
			res.Failures = append(res.Failures, toFailure(i, err))
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.Records = append(res.Records, rec)
	}

	e.logger.Debug().
		Str("user_id", userID).
		Str("kind", def.Name).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("failed", len(res.Failures)).
		Msg("ingested batch")
	return res, nil
}

func (e *Engine) ingestOne(ctx context.Context, userID string, def metric.Definition, p Point) (*model.MetricRecord, bool, error) {
	if p.Timestamp.IsZero() {
		return nil, false, model.Fieldf("date", "timestamp is required")
	}
	if p.Source == "" {
		return nil, false, model.Fieldf("source", "source is required")
	}
	fields, labels, err := def.Validate(p.Values, p.Labels)
	if err != nil {
		return nil, false, err
	}

	rec := &model.MetricRecord{
		ID:        rid.New(def.Name),
		UserID:    userID,
		Kind:      def.Name,
		Timestamp: p.Timestamp.UTC(),
		Source:    p.Source,
		Fields:    fields,
		Labels:    labels,
	}
	stored, created, err := e.metrics.Upsert(ctx, rec)
	if err != nil {
		e.logger.Error().Stack().Err(err).
			Str("user_id", userID).
			Str("kind", def.Name).
			Time("ts", rec.Timestamp).
			Msg("upsert failed")
		return nil, false, errors.Wrap(err, "store point")
	}
	return stored, created, nil
}

func toFailure(index int, err error) Failure {
	var fe *model.FieldError
	if errors.As(err, &fe) {
		return Failure{Index: index, Field: fe.Field, Message: fe.Message}
	}
	return Failure{Index: index, Message: err.Error()}
}
