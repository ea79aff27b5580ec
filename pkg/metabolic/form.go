package metabolic

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Form holds raw field values as a browser form submits them.
type Form struct {
	Age       string
	Sex       string
	HeightCm  string
	WeightKg  string
	RestingHR string
	Activity  string
}

// Input converts the form into an Input. Numeric fields go through
// ParseNumber; blank Sex and Activity fall back to the form defaults
// (female, moderate). No validation happens here; Estimate does that.
func (f Form) Input() Input {
	sex := Sex(strings.TrimSpace(f.Sex))
	if sex == "" {
		sex = SexFemale
	}
	act := Activity(strings.TrimSpace(f.Activity))
	if act == "" {
		act = ActivityModerate
	}
	return Input{
		Age:       ParseNumber(f.Age),
		Sex:       sex,
		HeightCm:  ParseNumber(f.HeightCm),
		WeightKg:  ParseNumber(f.WeightKg),
		RestingHR: ParseNumber(f.RestingHR),
		Activity:  act,
	}
}

// decimalLiteral is the decimal form accepted by a browser number field:
// optional sign, digits with an optional point, optional exponent.
var decimalLiteral = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)

// ParseNumber converts a form value to a number the way a browser's Number()
// does. Surrounding whitespace is ignored and a blank value is 0. Decimal
// literals, unsigned 0x/0o/0b integers and signed Infinity are accepted;
// anything else, including Go-only forms like "inf", "1_000" or "0x1p4",
// is NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == '\uFEFF' })
	if s == "" {
		return 0
	}

	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}

	if base := radixPrefix(s); base != 0 {
		digits := s[2:]
		if strings.ContainsAny(digits, "+-_") {
			return math.NaN()
		}
		n, ok := new(big.Int).SetString(digits, base)
		if !ok {
			return math.NaN()
		}
		v, _ := new(big.Float).SetInt(n).Float64()
		return v
	}

	if !decimalLiteral.MatchString(s) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

// radixPrefix returns the base named by a 0x, 0o or 0b prefix, or 0.
func radixPrefix(s string) int {
	if len(s) < 3 || s[0] != '0' {
		return 0
	}
	switch s[1] {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	case 'b', 'B':
		return 2
	}
	return 0
}
