package metric

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supahealth/supahealth/internal/model"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"steps", "heart_rate", "miles", "active_calories",
		"baseline_calories", "body_composition", "sleep", "workouts", "nutrition_macros"} {
		d, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, d.Name)
		assert.NotEmpty(t, d.Fields)
	}
	_, ok := Lookup("blood_glucose")
	assert.False(t, ok)
}

func TestCoerceFloorsCounts(t *testing.T) {
	steps, _ := Lookup("steps")
	out, err := steps.Coerce(map[string]float64{"steps": 1250.7})
	require.NoError(t, err)
	assert.Equal(t, 1250.0, out["steps"])

	hr, _ := Lookup("heart_rate")
	out, err = hr.Coerce(map[string]float64{"avg_hr": 72.4, "max_hr": 110.9})
	require.NoError(t, err)
	assert.Equal(t, 72.4, out["avg_hr"], "non-count fields keep their decimals")
	assert.Equal(t, 110.0, out["max_hr"])
}

func TestCoerceRejectsOutOfRange(t *testing.T) {
	hr, _ := Lookup("heart_rate")
	_, err := hr.Coerce(map[string]float64{"heart_rate": 350})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrValidation)

	var fe *model.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "heart_rate", fe.Field)

	_, err = hr.Coerce(map[string]float64{"heart_rate": -1})
	assert.Error(t, err)
}

func TestCoerceRejectsUnknownField(t *testing.T) {
	steps, _ := Lookup("steps")
	_, err := steps.Coerce(map[string]float64{"stride_length": 0.8})
	require.Error(t, err)
	var fe *model.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "stride_length", fe.Field)
}

func TestCoerceRejectsEmptyAndNonFinite(t *testing.T) {
	steps, _ := Lookup("steps")
	_, err := steps.Coerce(nil)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = steps.Coerce(map[string]float64{"steps": math.NaN()})
	assert.Error(t, err)
	_, err = steps.Coerce(map[string]float64{"steps": math.Inf(1)})
	assert.Error(t, err)
}

func TestCoerceSignedField(t *testing.T) {
	macros, _ := Lookup("nutrition_macros")
	out, err := macros.Coerce(map[string]float64{"calorie_deficit": -500})
	require.NoError(t, err)
	assert.Equal(t, -500.0, out["calorie_deficit"])
}

func TestValidateWorkoutLabels(t *testing.T) {
	workouts, ok := Lookup("workouts")
	require.True(t, ok)

	values, labels, err := workouts.Validate(
		map[string]float64{"duration_minutes": 45.8, "calories_burned": 312.5},
		map[string]string{"workout_type": "running", "intensity": "  HIGH "},
	)
	require.NoError(t, err)
	assert.Equal(t, 45.0, values["duration_minutes"])
	assert.Equal(t, 312.5, values["calories_burned"])
	assert.Equal(t, "running", labels["workout_type"])
	assert.Equal(t, "high", labels["intensity"], "enum labels are normalized")
}

func TestValidateRequiresWorkoutType(t *testing.T) {
	workouts, _ := Lookup("workouts")
	_, _, err := workouts.Validate(map[string]float64{"duration_minutes": 30}, nil)
	require.Error(t, err)
	var fe *model.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "workout_type", fe.Field)
}

func TestCoerceLabelsRejectsBadValues(t *testing.T) {
	workouts, _ := Lookup("workouts")

	_, err := workouts.CoerceLabels(map[string]string{"workout_type": "yoga", "intensity": "extreme"})
	require.Error(t, err)
	var fe *model.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "intensity", fe.Field)

	_, err = workouts.CoerceLabels(map[string]string{"workout_type": "yoga", "location": "gym"})
	assert.Error(t, err, "unknown label")

	_, err = workouts.CoerceLabels(map[string]string{"workout_type": "   "})
	assert.Error(t, err, "blank label value")
}

func TestValidateRejectsLabelsOnNumericKind(t *testing.T) {
	steps, _ := Lookup("steps")
	_, _, err := steps.Validate(map[string]float64{"steps": 100}, map[string]string{"mood": "great"})
	require.Error(t, err)
	var fe *model.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "mood", fe.Field)
}

func TestValidateFreeTextLabelKeepsCase(t *testing.T) {
	workouts, _ := Lookup("workouts")
	_, labels, err := workouts.Validate(nil, map[string]string{
		"workout_type": "strength",
		"workout_name": "Morning Lift",
	})
	require.NoError(t, err)
	assert.Equal(t, "Morning Lift", labels["workout_name"])
}
