package metabolic

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Disclaimer accompanies every displayed estimate.
const Disclaimer = "Educational use only. Not medical advice."

// Display is a Result rendered as strings for presentation.
type Display struct {
	MetabolicAge string
	BMI          string
	AgeDelta     string
	Disclaimer   string
}

// Display renders r for presentation.
func (r Result) Display() Display {
	return Display{
		MetabolicAge: strconv.Itoa(r.MetabolicAge),
		BMI:          FormatBMI(r.BMI),
		AgeDelta:     FormatDelta(r.AgeDelta),
		Disclaimer:   Disclaimer,
	}
}

// FormatBMI renders bmi with exactly one decimal place, rounding the exact
// binary value of bmi with halves away from zero. 16.15 is stored as
// 16.149999999999999 and renders "16.1"; 21.25 is exact and renders "21.3".
func FormatBMI(bmi float64) string {
	switch {
	case math.IsNaN(bmi):
		return "NaN"
	case math.IsInf(bmi, 1):
		return "Infinity"
	case math.IsInf(bmi, -1):
		return "-Infinity"
	case math.Abs(bmi) >= 1e21:
		return strconv.FormatFloat(bmi, 'g', -1, 64)
	}

	// tenths = floor(|bmi|*10 + 1/2), computed without intermediate rounding.
	r := new(big.Rat).SetFloat64(math.Abs(bmi))
	r.Mul(r, big.NewRat(10, 1))
	r.Add(r, big.NewRat(1, 2))
	tenths := new(big.Int).Quo(r.Num(), r.Denom()).String()
	if len(tenths) < 2 {
		tenths = "0" + tenths
	}

	var b strings.Builder
	if bmi < 0 {
		b.WriteByte('-')
	}
	b.WriteString(tenths[:len(tenths)-1])
	b.WriteByte('.')
	b.WriteString(tenths[len(tenths)-1:])
	return b.String()
}

// FormatDelta renders d with an explicit sign; zero is "+0".
func FormatDelta(d int) string {
	if d >= 0 {
		return "+" + strconv.Itoa(d)
	}
	return strconv.Itoa(d)
}
