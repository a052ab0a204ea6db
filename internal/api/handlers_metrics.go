package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/supahealth/supahealth/internal/api/respond"
	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/ingest"
	"github.com/supahealth/supahealth/internal/metric"
	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/store"
)

// MetricHandler serves bulk ingestion and record queries for every
// registered metric kind.
type MetricHandler struct {
	engine  *ingest.Engine
	metrics store.Metrics
}

func NewMetricHandler(engine *ingest.Engine, metrics store.Metrics) *MetricHandler {
	return &MetricHandler{engine: engine, metrics: metrics}
}

// rawPoint is one submitted data point: "date" and "source" plus a flat
// set of measurement fields. Numeric values become measurements and
// string values become labels (workout type, intensity, notes); which
// keys a kind actually accepts is decided downstream by its definition.
type rawPoint struct {
	Date   time.Time          `json:"date"`
	Source string             `json:"source"`
	Values map[string]float64 `json:"-"`
	Labels map[string]string  `json:"-"`
}

// UnmarshalJSON accepts the flat wire shape, peeling date and source
// off the object and sorting every remaining key into Values or Labels
// by JSON type.
func (p *rawPoint) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["date"]; ok {
		if err := json.Unmarshal(v, &p.Date); err != nil {
			return model.Fieldf("date", "must be an RFC 3339 timestamp")
		}
		delete(raw, "date")
	}
	if v, ok := raw["source"]; ok {
		if err := json.Unmarshal(v, &p.Source); err != nil {
			return model.Fieldf("source", "must be a string")
		}
		delete(raw, "source")
	}
	p.Values = make(map[string]float64, len(raw))
	for name, v := range raw {
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			p.Values[name] = f
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if p.Labels == nil {
				p.Labels = make(map[string]string)
			}
			p.Labels[name] = s
			continue
		}
		return model.Fieldf(name, "must be a number or string")
	}
	return nil
}

type bulkRequest struct {
	Records []rawPoint `json:"records"`
}

type bulkResponse struct {
	CreatedCount   int                   `json:"createdCount"`
	UpdatedCount   int                   `json:"updatedCount"`
	TotalProcessed int                   `json:"totalProcessed"`
	Records        []*model.MetricRecord `json:"records"`
	Failures       []ingest.Failure      `json:"failures,omitempty"`
}

type listResponse struct {
	Records    []*model.MetricRecord `json:"records"`
	TotalCount int                   `json:"totalCount"`
	UserID     string                `json:"userId"`
}

// BulkUpsert handles POST /api/v1/metrics/{kind}/bulk.
func (h *MetricHandler) BulkUpsert(w http.ResponseWriter, r *http.Request) {
	user, def, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var fe *model.FieldError
		if errors.As(err, &fe) {
			respond.WriteValidationError(w, fe)
			return
		}
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}

	points := make([]ingest.Point, len(req.Records))
	for i, rec := range req.Records {
		points[i] = ingest.Point{Timestamp: rec.Date, Source: rec.Source, Values: rec.Values, Labels: rec.Labels}
	}

	res, err := h.engine.Ingest(r.Context(), user.ID, def, points)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, bulkResponse{
		CreatedCount:   res.Created,
		UpdatedCount:   res.Updated,
		TotalProcessed: res.Created + res.Updated,
		Records:        res.Records,
		Failures:       res.Failures,
	})
}

// List handles GET /api/v1/metrics/{kind}.
func (h *MetricHandler) List(w http.ResponseWriter, r *http.Request) {
	user, def, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	req := model.ListMetricsRequest{UserID: user.ID, Kind: def.Name}
	for name, dst := range map[string]**time.Time{
		"startDate": &req.StartDate,
		"endDate":   &req.EndDate,
	} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		ts, err := parseQueryTime(raw)
		if err != nil {
			respond.WriteValidationError(w, model.Fieldf(name, "must be an RFC 3339 timestamp or YYYY-MM-DD date"))
			return
		}
		*dst = &ts
	}

	records, err := h.metrics.List(r.Context(), req)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if records == nil {
		records = []*model.MetricRecord{}
	}
	respond.WriteJSON(w, http.StatusOK, listResponse{
		Records:    records,
		TotalCount: len(records),
		UserID:     user.ID,
	})
}

// Get handles GET /api/v1/metrics/{kind}/{recordId}.
func (h *MetricHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, def, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	rec, err := h.metrics.GetByID(r.Context(), user.ID, def.Name, mux.Vars(r)["recordId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/metrics/{kind}/{recordId}.
func (h *MetricHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, def, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	if err := h.metrics.Delete(r.Context(), user.ID, def.Name, mux.Vars(r)["recordId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"message":      "record deleted",
		"deletedCount": 1,
	})
}

// requestScope resolves the authenticated user and the metric kind
// from the route. Unknown kinds are indistinguishable from unknown
// routes: 404.
func (h *MetricHandler) requestScope(w http.ResponseWriter, r *http.Request) (*model.User, metric.Definition, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w)
		return nil, metric.Definition{}, false
	}
	def, ok := metric.Lookup(mux.Vars(r)["kind"])
	if !ok {
		respond.WriteNotFound(w, "unknown metric kind")
		return nil, metric.Definition{}, false
	}
	return user, def, true
}

// parseQueryTime accepts either a full RFC 3339 timestamp or a bare
// date, which reads as midnight UTC.
func parseQueryTime(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
