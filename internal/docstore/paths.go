package docstore

// Document layout.
const (
	UsersCollection     = "users"
	UsernamesCollection = "usernames"
)

func UserPath(uid string) string {
	return UsersCollection + "/" + uid
}

func UsernamePath(username string) string {
	return UsernamesCollection + "/" + username
}

func HabitsPath(uid string) string {
	return UserPath(uid) + "/habits"
}

func HabitPath(uid, habitID string) string {
	return HabitsPath(uid) + "/" + habitID
}

func HabitOrderPath(uid string) string {
	return UserPath(uid) + "/meta/habitOrder"
}

func SharedHabitsPath(uid string) string {
	return UserPath(uid) + "/meta/sharedHabits"
}

func FriendsPath(uid string) string {
	return UserPath(uid) + "/social/friends"
}

func RequestsPath(uid string) string {
	return UserPath(uid) + "/social/requests"
}

func WeeksPath(uid string) string {
	return UserPath(uid) + "/weeks"
}

func WeekPath(uid, weekKey string) string {
	return WeeksPath(uid) + "/" + weekKey
}

func NotesPath(uid string) string {
	return UserPath(uid) + "/notes"
}

func NotePath(uid, noteID string) string {
	return NotesPath(uid) + "/" + noteID
}

func DevicesPath(uid string) string {
	return UserPath(uid) + "/private/devices"
}

func TimerPath(uid string) string {
	return UserPath(uid) + "/private/timer"
}
