package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	idAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	HabitIDLength = 8
	NoteIDLength  = 16
)

var avatars = []string{"🐻", "🦊", "🐼", "🐸", "🦉", "🐙", "🦄", "🐢", "🐝", "🦁", "🐧", "🐨"}

// GenerateID returns a random token of length n drawn from [A-Za-z0-9].
func GenerateID(n int) string {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken
			panic(err)
		}
		b[i] = idAlphabet[idx.Int64()]
	}
	return string(b)
}

func HabitID() string {
	return GenerateID(HabitIDLength)
}

func NoteID() string {
	return GenerateID(NoteIDLength)
}

// RandomAvatar picks the emoji a new profile starts with.
func RandomAvatar() string {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(avatars))))
	if err != nil {
		return avatars[0]
	}
	return avatars[idx.Int64()]
}
