// Package metabolic estimates a heuristic "metabolic age" from biometric inputs.
//
// score.go provides the pure Estimate(Input) function. The score is the sum of
// three banded contributions:
//
//	resting HR   ≤55:+3  ≤65:+2  ≤75:+1  ≤85:0  else:-1
//	activity     sedentary:-2 light:-1 moderate:0 active:+2 very_active:+3
//	BMI          <18.5 or >32:-2  <25:+2  <30:0  else:-1
//
// and maps to an age delta (≥6:-10, ≥4:-5, ≥2:-2, ≥-1:0, ≥-3:+3, else +7).
// The metabolic age is the actual age plus the delta, clamped to [18, 80].
//
// form.go parses string form values the way a browser number field does:
// blank becomes 0 and garbage becomes NaN, both rejected by Estimate.
//
// format.go renders a Result for display (BMI to one decimal, signed delta).
//
// Educational use only. Not medical advice.
package metabolic
