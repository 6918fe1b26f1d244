package journal

type Note struct {
	ID      string `json:"id" firestore:"-"`
	Icon    string `json:"icon" firestore:"icon"`
	Title   string `json:"title" firestore:"title"`
	Content string `json:"content" firestore:"content"`
	// Date is YYYY-MM-DD.
	Date string `json:"date" firestore:"date"`
	// HabitID is a soft reference; deleting the habit leaves the note untouched.
	HabitID string `json:"habitId,omitempty" firestore:"habitId"`
}

func (n Note) Fields() map[string]interface{} {
	return map[string]interface{}{
		"icon":    n.Icon,
		"title":   n.Title,
		"content": n.Content,
		"date":    n.Date,
		"habitId": n.HabitID,
	}
}

type NoteRequest struct {
	Icon    string `json:"icon"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Date    string `json:"date"`
	HabitID string `json:"habitId,omitempty"`
}
