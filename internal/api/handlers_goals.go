package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/supahealth/supahealth/internal/api/respond"
	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/metric"
	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/rid"
	"github.com/supahealth/supahealth/internal/store"
)

// goalKinds reuses the metric field machinery for target validation.
// General and macros goals are one per user; weight goals are one per
// (user, target hour) and require a target time.
var goalKinds = map[string]metric.Definition{
	"general": {
		Name: "general",
		Fields: []metric.Field{
			{Name: "steps", Count: true, Min: 0, Max: 200000},
			{Name: "miles", Min: 0, Max: math.Inf(1)},
			{Name: "active_calories", Count: true, Min: 0, Max: math.Inf(1)},
			{Name: "sleep_minutes", Count: true, Min: 0, Max: 2880},
		},
	},
	"macros": {
		Name: "macros",
		Fields: []metric.Field{
			{Name: "calories", Count: true, Min: 0, Max: math.Inf(1)},
			{Name: "protein", Min: 0, Max: math.Inf(1)},
			{Name: "carbs", Min: 0, Max: math.Inf(1)},
			{Name: "fat", Min: 0, Max: math.Inf(1)},
		},
	},
	"weight": {
		Name: "weight",
		Fields: []metric.Field{
			{Name: "weight", Min: 0, Max: 700},
		},
	},
}

// GoalHandler serves goal upserts and queries.
type GoalHandler struct {
	goals store.Goals
}

func NewGoalHandler(goals store.Goals) *GoalHandler {
	return &GoalHandler{goals: goals}
}

type goalRequest struct {
	TargetTime  *time.Time         `json:"targetTime,omitempty"`
	Values      map[string]float64 `json:"values"`
	Description *string            `json:"description,omitempty"`
}

// Upsert handles PUT /api/v1/goals/{kind}: 201 on first write, 200 on
// update of the existing target.
func (h *GoalHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	user, def, ok := h.requestScope(w, r)
	if !ok {
		return
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}
	fields, err := def.Coerce(req.Values)
	if err != nil {
		respond.WriteValidationError(w, err)
		return
	}
	if def.Name == "weight" && req.TargetTime == nil {
		respond.WriteValidationError(w, model.Fieldf("targetTime", "weight goals require a target time"))
		return
	}

	goal, created, err := h.goals.Upsert(r.Context(), &model.Goal{
		ID:          rid.New("goal"),
		UserID:      user.ID,
		Kind:        def.Name,
		TargetTime:  req.TargetTime,
		Fields:      fields,
		Description: req.Description,
	})
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond.WriteJSON(w, status, goal)
}

// List handles GET /api/v1/goals/{kind}. General and macros goals
// return the single goal; weight goals return the full schedule.
func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	user, def, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	goals, err := h.goals.List(r.Context(), user.ID, def.Name)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if def.Name != "weight" {
		if len(goals) == 0 {
			respond.WriteNotFound(w, "no goal set")
			return
		}
		respond.WriteJSON(w, http.StatusOK, goals[0])
		return
	}
	if goals == nil {
		goals = []*model.Goal{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"goals":      goals,
		"totalCount": len(goals),
	})
}

// Delete handles DELETE /api/v1/goals/{kind}/{goalId}.
func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, def, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	if err := h.goals.Delete(r.Context(), user.ID, def.Name, mux.Vars(r)["goalId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"message":      "goal deleted",
		"deletedCount": 1,
	})
}

func (h *GoalHandler) requestScope(w http.ResponseWriter, r *http.Request) (*model.User, metric.Definition, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w)
		return nil, metric.Definition{}, false
	}
	def, ok := goalKinds[mux.Vars(r)["kind"]]
	if !ok {
		respond.WriteNotFound(w, "unknown goal kind")
		return nil, metric.Definition{}, false
	}
	return user, def, true
}
