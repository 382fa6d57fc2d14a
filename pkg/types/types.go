package types

// NoPresenter marks a meeting whose presenter has not joined or has left.
const NoPresenter = -1

// User is an authenticated directory profile plus the meeting-scoped state
// stamped onto it during validation.
// FUNCTIONAL DISCOVERY: JSON keys match the USER-DATA payload clients parse,
// so the struct is serialized directly into outbound profile messages.
type User struct {
	ID          int    `json:"userID"`
	FirstName   string `json:"firstName"`
	Surname     string `json:"surName"`
	Company     string `json:"company"`
	JobTitle    string `json:"jobTitle"`
	WorkEmail   string `json:"workEmail"`
	PhoneNumber string `json:"phoneNumber"`
	AvatarID    int    `json:"avatarID"`
	Presenting  bool   `json:"presenting"`
	MeetingCode string `json:"-"`
}

// UserKey is the comparable identity of a user within a meeting.
// ARCHITECTURAL DISCOVERY: presenting and meeting code are derived per join,
// so they stay out of the key; two connections for the same profile collide.
type UserKey struct {
	ID          int
	FirstName   string
	Surname     string
	Company     string
	JobTitle    string
	WorkEmail   string
	PhoneNumber string
	AvatarID    int
}

// Key returns the identity used for duplicate membership detection.
func (u *User) Key() UserKey {
	return UserKey{
		ID:          u.ID,
		FirstName:   u.FirstName,
		Surname:     u.Surname,
		Company:     u.Company,
		JobTitle:    u.JobTitle,
		WorkEmail:   u.WorkEmail,
		PhoneNumber: u.PhoneNumber,
		AvatarID:    u.AvatarID,
	}
}

// Equal reports whether both users share identity and profile fields.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Key() == other.Key()
}

// FullName joins first name and surname for logs and admin views.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.Surname
	case u.Surname == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.Surname
	}
}

// Clone returns a copy that can be stamped without touching the original.
func (u *User) Clone() *User {
	c := *u
	return &c
}
