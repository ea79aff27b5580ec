package metabolic

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Bounds applied to the estimated metabolic age.
const (
	MinMetabolicAge = 18
	MaxMetabolicAge = 80
)

// BMI band edges used by the BMI contribution.
const (
	bmiUnderweight = 18.5
	bmiNormalMax   = 25.0
	bmiOverMax     = 30.0
	bmiSevere      = 32.0
)

// ErrInvalidInput is returned when a required numeric field is missing,
// zero, non-numeric, non-finite or negative.
var ErrInvalidInput = errors.New("invalid inputs")

// InvalidInputMessage is the user-facing text for ErrInvalidInput.
const InvalidInputMessage = "Please enter valid inputs."

// Sex is collected with the other inputs but does not affect the score.
type Sex string

const (
	SexFemale Sex = "female"
	SexMale   Sex = "male"
	SexOther  Sex = "other"
)

// Input holds the parsed values fed into the scoring formula.
type Input struct {
	// Age in years.
	Age float64

	// Sex is accepted and carried through unchanged; scoring ignores it.
	Sex Sex

	// HeightCm is body height in centimetres.
	HeightCm float64

	// WeightKg is body weight in kilograms.
	WeightKg float64

	// RestingHR is resting heart rate in beats per minute.
	RestingHR float64

	// Activity is the self-reported activity level. Unknown values score 0.
	Activity Activity
}

// Result is the outcome of one estimate.
type Result struct {
	// MetabolicAge is the estimate in whole years, within [18, 80].
	MetabolicAge int

	// BMI rounded to one decimal place, as FormatBMI renders it.
	BMI float64

	// AgeDelta is the band offset chosen from Score. It is not recomputed
	// after clamping, so MetabolicAge-Age may differ from it at the bounds.
	AgeDelta int

	// Score is the sum of the three contributions below.
	Score int

	HeartRateScore int
	ActivityScore  int
	BMIScore       int
}

// Validate reports whether the four required numeric fields are usable.
// The returned error wraps ErrInvalidInput and names the first bad field.
func (in Input) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"age", in.Age},
		{"height_cm", in.HeightCm},
		{"weight_kg", in.WeightKg},
		{"resting_hr", in.RestingHR},
	}
	for _, f := range fields {
		if !positiveFinite(f.v) {
			return fmt.Errorf("%w: %s must be a positive number", ErrInvalidInput, f.name)
		}
	}
	return nil
}

// Estimate computes the metabolic age for in.
//
// It is a pure function: the same Input always yields the same Result.
func Estimate(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	bmi := BMI(in.HeightCm, in.WeightKg)

	hrScore := heartRateScore(in.RestingHR)
	actScore := in.Activity.Score()
	bmiPts := bmiScore(bmi)
	score := hrScore + actScore + bmiPts

	delta := ageDeltaForScore(score)

	return Result{
		MetabolicAge:   clampAge(int(math.Round(in.Age)) + delta),
		BMI:            round1(bmi),
		AgeDelta:       delta,
		Score:          score,
		HeartRateScore: hrScore,
		ActivityScore:  actScore,
		BMIScore:       bmiPts,
	}, nil
}

// BMI returns weightKg / (heightCm/100)^2 without rounding.
func BMI(heightCm, weightKg float64) float64 {
	h := heightCm / 100
	return weightKg / (h * h)
}

// heartRateScore maps resting heart rate to its contribution.
func heartRateScore(hr float64) int {
	switch {
	case hr <= 55:
		return 3
	case hr <= 65:
		return 2
	case hr <= 75:
		return 1
	case hr <= 85:
		return 0
	default:
		return -1
	}
}

// bmiScore maps BMI to its contribution. Order matters: the >32 check runs
// together with the underweight check, so only [30, 32] reaches the last arm.
func bmiScore(bmi float64) int {
	switch {
	case bmi < bmiUnderweight || bmi > bmiSevere:
		return -2
	case bmi < bmiNormalMax:
		return 2
	case bmi < bmiOverMax:
		return 0
	default:
		return -1
	}
}

// ageDeltaForScore maps the total score to an age offset in years.
func ageDeltaForScore(score int) int {
	switch {
	case score >= 6:
		return -10
	case score >= 4:
		return -5
	case score >= 2:
		return -2
	case score >= -1:
		return 0
	case score >= -3:
		return 3
	default:
		return 7
	}
}

// clampAge restricts v to [MinMetabolicAge, MaxMetabolicAge].
func clampAge(v int) int {
	if v < MinMetabolicAge {
		return MinMetabolicAge
	}
	if v > MaxMetabolicAge {
		return MaxMetabolicAge
	}
	return v
}

// round1 rounds v to one decimal place. The value is parsed back from
// FormatBMI so the number and its rendering always agree.
func round1(v float64) float64 {
	r, _ := strconv.ParseFloat(FormatBMI(v), 64)
	return r
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
