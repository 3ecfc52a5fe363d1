package domain

// UserID is the opaque identifier of a platform user. The realtime core
// references users; it never owns them.
type UserID string

// User is the slice of the platform's user model the realtime core needs:
// an identity to authorize and a slug to display.
type User struct {
	ID   UserID `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name,omitempty"`
}
