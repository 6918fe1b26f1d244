package services

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrHabitNotFound  = errors.New("habit not found")
	ErrNoteNotFound   = errors.New("note not found")
	ErrNotTimeable    = errors.New("habit is not timeable")
	ErrTimerRunning   = errors.New("a timer is already running")
	ErrTimerNotActive = errors.New("no timer is running")
	ErrSessionClosed  = errors.New("session manager is closed")
)
