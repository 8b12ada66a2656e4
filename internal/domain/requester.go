package domain

import "strings"

// Requester is a distinct name in the requester registry.
type Requester struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RequesterKey is the case-insensitive identity of a requester name.
func RequesterKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
