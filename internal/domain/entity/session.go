package entity

// Session identifies the authenticated caller. It is built once per request
// by the auth middleware and handed to every operation that acts for a user.
type Session struct {
	UserID      string
	DisplayName string
	PhotoURL    string
}
