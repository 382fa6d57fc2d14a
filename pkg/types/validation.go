package types

import (
	"unicode"
	"unicode/utf8"
)

// MaxMeetingCodeLength bounds meeting codes accepted from clients.
const MaxMeetingCodeLength = 200

// Validate checks the fields a directory must always provide.
func (u *User) Validate() error {
	if u.ID < 0 {
		return ErrInvalidUserID
	}
	return nil
}

// IsValidMeetingCode checks a client supplied meeting code before it is sent
// to the directory or used as a registry key.
func IsValidMeetingCode(code string) bool {
	if len(code) < 1 || len(code) > MaxMeetingCodeLength {
		return false
	}
	if !utf8.ValidString(code) {
		return false
	}
	for _, r := range code {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
