package streak

// HabitStreak is derived from week records and never stored.
type HabitStreak struct {
	Count int `json:"count"`
	// IsPending means counting stopped at a week that has not loaded yet.
	IsPending bool `json:"isPending"`
}

const MaxLookbackWeeks = 156
