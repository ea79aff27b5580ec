package metabolic

// Activity is a self-reported activity level.
type Activity string

const (
	ActivitySedentary  Activity = "sedentary"
	ActivityLight      Activity = "light"
	ActivityModerate   Activity = "moderate"
	ActivityActive     Activity = "active"
	ActivityVeryActive Activity = "very_active"
)

// ActivityLevel describes one selectable activity level.
type ActivityLevel struct {
	Activity Activity
	Label    string
	Score    int
}

// activityLevels is ordered from least to most active.
var activityLevels = []ActivityLevel{
	{ActivitySedentary, "Sedentary", -2},
	{ActivityLight, "Light Activity", -1},
	{ActivityModerate, "Moderate Activity", 0},
	{ActivityActive, "Active", 2},
	{ActivityVeryActive, "Very Active", 3},
}

// Activities returns the known activity levels in display order.
// The returned slice is a copy.
func Activities() []ActivityLevel {
	out := make([]ActivityLevel, len(activityLevels))
	copy(out, activityLevels)
	return out
}

// Score returns the activity contribution. Unknown levels contribute 0.
func (a Activity) Score() int {
	for _, l := range activityLevels {
		if l.Activity == a {
			return l.Score
		}
	}
	return 0
}

// Known reports whether a is one of the defined activity levels.
func (a Activity) Known() bool {
	for _, l := range activityLevels {
		if l.Activity == a {
			return true
		}
	}
	return false
}
