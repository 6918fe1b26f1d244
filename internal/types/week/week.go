package week

import "habitsAPI/utils"

type TrackerStatus string

const (
	Unset   TrackerStatus = ""
	Done    TrackerStatus = "done"
	Skipped TrackerStatus = "skipped"
	Missed  TrackerStatus = "missed"
)

func (s TrackerStatus) Valid() bool {
	switch s {
	case Unset, Done, Skipped, Missed:
		return true
	}
	return false
}

// Next cycles unset -> done -> skipped -> missed -> unset.
func (s TrackerStatus) Next() TrackerStatus {
	switch s {
	case Unset:
		return Done
	case Done:
		return Skipped
	case Skipped:
		return Missed
	default:
		return Unset
	}
}

type Row [utils.DaysPerWeek]TrackerStatus

// Record is the users/{uid}/weeks/{startDate} document.
type Record struct {
	StartDate string                     `json:"startDate" firestore:"startDate"`
	Trackers  map[string][]TrackerStatus `json:"trackers" firestore:"trackers"`
	Timers    map[string][]int           `json:"timers" firestore:"timers"`
	Icon      string                     `json:"icon" firestore:"icon"`
	Notes     []string                   `json:"notes" firestore:"notes"`
}

// Row returns the habit's statuses Monday..Sunday, padding missing days with Unset.
func (r Record) Row(habitID string) Row {
	var row Row
	for i, s := range r.Trackers[habitID] {
		if i >= utils.DaysPerWeek {
			break
		}
		row[i] = s
	}
	return row
}

func (r Record) Seconds(habitID string, day int) int {
	timers := r.Timers[habitID]
	if day < 0 || day >= len(timers) {
		return 0
	}
	return timers[day]
}

func (r Record) TimerRow(habitID string) [utils.DaysPerWeek]int {
	var row [utils.DaysPerWeek]int
	for i, s := range r.Timers[habitID] {
		if i >= utils.DaysPerWeek {
			break
		}
		row[i] = s
	}
	return row
}

// RowField encodes a tracker row for a merge write on trackers.<habitID>.
func RowField(row Row) []interface{} {
	out := make([]interface{}, len(row))
	for i, s := range row {
		out[i] = string(s)
	}
	return out
}

func TimerField(row [utils.DaysPerWeek]int) []interface{} {
	out := make([]interface{}, len(row))
	for i, s := range row {
		out[i] = int64(s)
	}
	return out
}

func NotesField(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

type SetTrackerRequest struct {
	HabitID string        `json:"habitId"`
	Date    string        `json:"date"`
	Status  TrackerStatus `json:"status"`
}

type SetIconRequest struct {
	Icon string `json:"icon"`
}

// Clone deep-copies the record so callers can edit it without sharing maps.
func (r Record) Clone() Record {
	out := Record{StartDate: r.StartDate, Icon: r.Icon}
	if r.Trackers != nil {
		out.Trackers = make(map[string][]TrackerStatus, len(r.Trackers))
		for k, v := range r.Trackers {
			out.Trackers[k] = append([]TrackerStatus(nil), v...)
		}
	}
	if r.Timers != nil {
		out.Timers = make(map[string][]int, len(r.Timers))
		for k, v := range r.Timers {
			out.Timers[k] = append([]int(nil), v...)
		}
	}
	out.Notes = append([]string(nil), r.Notes...)
	return out
}

// SetDay sets one tracker cell, growing the row to a full week.
func (r *Record) SetDay(habitID string, day int, s TrackerStatus) {
	if r.Trackers == nil {
		r.Trackers = map[string][]TrackerStatus{}
	}
	row := r.Row(habitID)
	row[day] = s
	r.Trackers[habitID] = row[:]
}

// AddSeconds adds to one timer cell, growing the row to a full week.
func (r *Record) AddSeconds(habitID string, day, seconds int) {
	if r.Timers == nil {
		r.Timers = map[string][]int{}
	}
	row := r.TimerRow(habitID)
	row[day] += seconds
	r.Timers[habitID] = row[:]
}

type TrackerResponse struct {
	HabitID string        `json:"habitId"`
	Week    string        `json:"week"`
	Date    string        `json:"date"`
	Status  TrackerStatus `json:"status"`
	Row     Row           `json:"row"`
}

type CycleRequest struct {
	HabitID string `json:"habitId"`
	Date    string `json:"date"`
}
