// Package metric defines the supported time-series metric kinds and
// the field-level coercion rules applied before ingestion.
//
// Each kind carries its own field set and bounds, so a single generic
// ingestion path can serve every metric without duplicating validation.
package metric

import (
	"math"
	"strings"

	"github.com/supahealth/supahealth/internal/model"
)

// Field describes one numeric measurement of a metric kind.
type Field struct {
	Name string
	// Count marks discrete quantities (steps, calories, minutes).
	// Float payload values are floored to integers on ingest.
	Count bool
	Min   float64
	Max   float64 // +Inf when unbounded
}

// Label describes a string-valued attribute of a metric kind, such as
// a workout's type. Values, when set, restricts the label to an enum.
type Label struct {
	Name     string
	Required bool
	Values   []string
}

// Definition is one metric kind: its external name (also the RID type
// tag and the storage kind column), its numeric field set, and any
// string-valued labels.
type Definition struct {
	Name   string
	Fields []Field
	Labels []Label
}

var inf = math.Inf(1)

var kinds = []Definition{
	{
		Name: "steps",
		Fields: []Field{
			{Name: "steps", Count: true, Min: 0, Max: 200000},
		},
	},
	{
		Name: "heart_rate",
		Fields: []Field{
			{Name: "heart_rate", Count: true, Min: 0, Max: 300},
			{Name: "min_hr", Count: true, Min: 0, Max: 300},
			{Name: "avg_hr", Min: 0, Max: 300},
			{Name: "max_hr", Count: true, Min: 0, Max: 300},
			{Name: "resting_hr", Count: true, Min: 0, Max: 300},
			{Name: "heart_rate_variability", Min: 0, Max: inf},
		},
	},
	{
		Name: "miles",
		Fields: []Field{
			{Name: "miles", Min: 0, Max: inf},
		},
	},
	{
		Name: "active_calories",
		Fields: []Field{
			{Name: "active_calories", Count: true, Min: 0, Max: inf},
		},
	},
	{
		Name: "baseline_calories",
		Fields: []Field{
			{Name: "baseline_calories", Count: true, Min: 0, Max: inf},
			{Name: "bmr", Min: 0, Max: inf},
		},
	},
	{
		Name: "body_composition",
		Fields: []Field{
			{Name: "weight", Min: 0, Max: 700},
			{Name: "body_fat_percentage", Min: 0, Max: 100},
			{Name: "muscle_mass_percentage", Min: 0, Max: 100},
			{Name: "water_percentage", Min: 0, Max: 100},
			{Name: "bone_density", Min: 0, Max: inf},
			{Name: "visceral_fat", Min: 0, Max: inf},
			{Name: "bmr", Min: 0, Max: inf},
		},
	},
	{
		Name: "sleep",
		Fields: []Field{
			{Name: "total_sleep_minutes", Count: true, Min: 0, Max: 2880},
			{Name: "deep_sleep_minutes", Count: true, Min: 0, Max: 2880},
			{Name: "light_sleep_minutes", Count: true, Min: 0, Max: 2880},
			{Name: "rem_sleep_minutes", Count: true, Min: 0, Max: 2880},
			{Name: "awake_minutes", Count: true, Min: 0, Max: 2880},
			{Name: "sleep_efficiency", Min: 0, Max: 100},
			{Name: "sleep_quality_score", Count: true, Min: 1, Max: 10},
		},
	},
	{
		Name: "workouts",
		Fields: []Field{
			{Name: "duration_minutes", Count: true, Min: 0, Max: 1440},
			{Name: "calories_burned", Min: 0, Max: inf},
			{Name: "distance_miles", Min: 0, Max: inf},
			{Name: "avg_heart_rate", Count: true, Min: 0, Max: 300},
			{Name: "max_heart_rate", Count: true, Min: 0, Max: 300},
		},
		Labels: []Label{
			{Name: "workout_type", Required: true},
			{Name: "workout_name"},
			{Name: "intensity", Values: []string{"low", "moderate", "high"}},
			{Name: "notes"},
		},
	},
	{
		Name: "nutrition_macros",
		Fields: []Field{
			{Name: "calories", Count: true, Min: 0, Max: inf},
			{Name: "protein", Min: 0, Max: inf},
			{Name: "carbs", Min: 0, Max: inf},
			{Name: "fat", Min: 0, Max: inf},
			{Name: "calorie_deficit", Min: -20000, Max: 20000},
		},
	},
}

var byName = func() map[string]Definition {
	m := make(map[string]Definition, len(kinds))
	for _, d := range kinds {
		m[d.Name] = d
	}
	return m
}()

// Lookup returns the definition for a kind name.
func Lookup(name string) (Definition, bool) {
	d, ok := byName[name]
	return d, ok
}

// Kinds returns all registered metric kinds.
func Kinds() []Definition { return kinds }

// Field returns the field spec with the given name.
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Label returns the label spec with the given name.
func (d Definition) Label(name string) (Label, bool) {
	for _, l := range d.Labels {
		if l.Name == name {
			return l, true
		}
	}
	return Label{}, false
}

// Validate checks a point's measurements and labels together. A point
// must carry at least one measurement or label; required labels must
// be present even when measurements are.
func (d Definition) Validate(values map[string]float64, labels map[string]string) (map[string]float64, map[string]string, error) {
	if len(values) == 0 && len(labels) == 0 {
		return nil, nil, model.Fieldf("values", "at least one measurement is required")
	}
	var outValues map[string]float64
	if len(values) > 0 {
		var err error
		outValues, err = d.Coerce(values)
		if err != nil {
			return nil, nil, err
		}
	}
	outLabels, err := d.CoerceLabels(labels)
	if err != nil {
		return nil, nil, err
	}
	return outValues, outLabels, nil
}

// CoerceLabels validates string-valued attributes against the
// definition: unknown labels and out-of-enum values are rejected, and
// required labels must be present. The error is a *model.FieldError.
func (d Definition) CoerceLabels(labels map[string]string) (map[string]string, error) {
	var out map[string]string
	for name, v := range labels {
		l, ok := d.Label(name)
		if !ok {
			return nil, model.Fieldf(name, "unknown field for metric %q", d.Name)
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, model.Fieldf(name, "must not be empty")
		}
		if len(l.Values) > 0 {
			v = strings.ToLower(v)
			if !containsFold(l.Values, v) {
				return nil, model.Fieldf(name, "must be one of %v", l.Values)
			}
		}
		if out == nil {
			out = make(map[string]string, len(labels))
		}
		out[name] = v
	}
	for _, l := range d.Labels {
		if l.Required {
			if _, ok := labels[l.Name]; !ok {
				return nil, model.Fieldf(l.Name, "is required for metric %q", d.Name)
			}
		}
	}
	return out, nil
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// Coerce validates raw measurement values against the definition and
// returns the normalized field map. Count fields are floored; values
// outside a field's bounds are rejected, not clamped. The error is a
// *model.FieldError carrying the offending field path.
func (d Definition) Coerce(values map[string]float64) (map[string]float64, error) {
	if len(values) == 0 {
		return nil, model.Fieldf("values", "at least one measurement is required")
	}
	out := make(map[string]float64, len(values))
	for name, v := range values {
		f, ok := d.Field(name)
		if !ok {
			return nil, model.Fieldf(name, "unknown field for metric %q", d.Name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, model.Fieldf(name, "must be a finite number")
		}
		if f.Count {
			v = math.Floor(v)
		}
		if v < f.Min {
			return nil, model.Fieldf(name, "must be >= %g", f.Min)
		}
		if v > f.Max {
			return nil, model.Fieldf(name, "must be <= %g", f.Max)
		}
		out[name] = v
	}
	return out, nil
}
