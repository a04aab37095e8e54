package utils

import "github.com/google/uuid"

// NewStorageName returns a random 128-bit name with ext appended (ext includes the dot).
func NewStorageName(ext string) string {
	return uuid.NewString() + ext
}
