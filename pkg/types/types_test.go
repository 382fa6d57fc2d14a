package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *User {
	return &User{
		ID:          7,
		FirstName:   "Ada",
		Surname:     "Lovelace",
		Company:     "Analytical",
		JobTitle:    "Engineer",
		WorkEmail:   "ada@example.com",
		PhoneNumber: "0123",
		AvatarID:    3,
	}
}

func TestUser_EqualIgnoresMeetingScopedState(t *testing.T) {
	a := testUser()
	b := testUser()
	b.Presenting = true
	b.MeetingCode = "room1"

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
}

func TestUser_EqualDetectsProfileDifferences(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *User)
	}{
		{"id", func(u *User) { u.ID = 8 }},
		{"first name", func(u *User) { u.FirstName = "Grace" }},
		{"surname", func(u *User) { u.Surname = "Hopper" }},
		{"company", func(u *User) { u.Company = "Navy" }},
		{"job title", func(u *User) { u.JobTitle = "Admiral" }},
		{"email", func(u *User) { u.WorkEmail = "x@example.com" }},
		{"phone", func(u *User) { u.PhoneNumber = "999" }},
		{"avatar", func(u *User) { u.AvatarID = 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := testUser()
			tt.mutate(other)
			assert.False(t, testUser().Equal(other))
		})
	}
}

func TestUser_EqualNil(t *testing.T) {
	var nilUser *User
	assert.True(t, nilUser.Equal(nil))
	assert.False(t, testUser().Equal(nil))
}

func TestUser_JSONKeys(t *testing.T) {
	u := testUser()
	u.Presenting = true
	u.MeetingCode = "room1"

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"userID", "firstName", "surName", "company", "jobTitle", "workEmail", "phoneNumber", "avatarID", "presenting"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "MeetingCode")
	assert.Equal(t, true, fields["presenting"])
}

func TestUser_CloneIsIndependent(t *testing.T) {
	u := testUser()
	c := u.Clone()
	c.Presenting = true
	assert.False(t, u.Presenting)
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", testUser().FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
	assert.Equal(t, "Lovelace", (&User{Surname: "Lovelace"}).FullName())
}

func TestUser_Validate(t *testing.T) {
	assert.NoError(t, testUser().Validate())
	assert.ErrorIs(t, (&User{ID: -1}).Validate(), ErrInvalidUserID)
}

func TestIsValidMeetingCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"room1", true},
		{"weekly sync", true},
		{"", false},
		{strings.Repeat("a", MaxMeetingCodeLength), true},
		{strings.Repeat("a", MaxMeetingCodeLength+1), false},
		{"bad\ncode", false},
		{string([]byte{0xff, 0xfe}), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidMeetingCode(tt.code), "code %q", tt.code)
	}
}
