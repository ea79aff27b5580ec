package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/metage/metage/pkg/metabolic"
)

// FormValue is a numeric form field. JSON clients may send it as a number,
// a string or null; it is kept as text and parsed by metabolic.ParseNumber.
type FormValue string

// UnmarshalJSON accepts numbers, strings and null.
func (v *FormValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
	case len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')):
		*v = FormValue(data)
	default:
		return fmt.Errorf("form value must be a number or string, got %s", data)
	}
	return nil
}

// EstimateRequest is the body of POST /api/v1/estimate and of every
// WebSocket and gRPC estimate message.
type EstimateRequest struct {
	Age       FormValue `json:"age"`
	Sex       string    `json:"sex,omitempty"`
	HeightCm  FormValue `json:"height_cm"`
	WeightKg  FormValue `json:"weight_kg"`
	RestingHR FormValue `json:"resting_hr"`
	Activity  string    `json:"activity,omitempty"`
}

// Form converts the request into the engine's raw form representation.
func (r EstimateRequest) Form() metabolic.Form {
	return metabolic.Form{
		Age:       string(r.Age),
		Sex:       r.Sex,
		HeightCm:  string(r.HeightCm),
		WeightKg:  string(r.WeightKg),
		RestingHR: string(r.RestingHR),
		Activity:  r.Activity,
	}
}

// EstimateResponse is the payload for a successful estimate.
type EstimateResponse struct {
	MetabolicAge int               `json:"metabolic_age"`
	BMI          float64           `json:"bmi"`
	AgeDelta     int               `json:"age_delta"`
	Display      DisplayResponse   `json:"display"`
	Breakdown    BreakdownResponse `json:"breakdown"`
	Disclaimer   string            `json:"disclaimer"`
}

// DisplayResponse holds the three result fields formatted for presentation.
type DisplayResponse struct {
	MetabolicAge string `json:"metabolic_age"`
	BMI          string `json:"bmi"`
	AgeDelta     string `json:"age_delta"`
}

// BreakdownResponse exposes the score contributions behind the delta.
type BreakdownResponse struct {
	Score     int `json:"score"`
	HeartRate int `json:"heart_rate"`
	Activity  int `json:"activity"`
	BMI       int `json:"bmi"`
}

// NewEstimateResponse maps an engine result to its JSON representation.
func NewEstimateResponse(res metabolic.Result) EstimateResponse {
	d := res.Display()
	return EstimateResponse{
		MetabolicAge: res.MetabolicAge,
		BMI:          res.BMI,
		AgeDelta:     res.AgeDelta,
		Display: DisplayResponse{
			MetabolicAge: d.MetabolicAge,
			BMI:          d.BMI,
			AgeDelta:     d.AgeDelta,
		},
		Breakdown: BreakdownResponse{
			Score:     res.Score,
			HeartRate: res.HeartRateScore,
			Activity:  res.ActivityScore,
			BMI:       res.BMIScore,
		},
		Disclaimer: d.Disclaimer,
	}
}

// ActivityResponse is one entry in GET /api/v1/activities.
type ActivityResponse struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Score int    `json:"score"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	WSClients int    `json:"ws_clients"`
}

// ErrorResponse is a generic JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
