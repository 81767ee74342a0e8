package domain

import "time"

// User is the cached profile of the authenticated account. The backend is
// the source of truth; this copy exists so dashboards can render without a
// who-am-I round trip on every view.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          Role       `json:"role"`
	PhoneNumber   string     `json:"phoneNumber,omitempty"`
	AvatarURL     string     `json:"avatarUrl,omitempty"`
	EmailVerified bool       `json:"emailVerified,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// FullName joins first and last name, tolerating either being empty.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// IsAdmin reports whether this user may reach the admin surface.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UserUpdate carries the profile fields a user may edit. Nil fields are
// left untouched by the backend and by Store.UpdateUser.
type UserUpdate struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

// Apply merges the non-nil fields of the update into a copy of u.
func (up UserUpdate) Apply(u User) User {
	if up.FirstName != nil {
		u.FirstName = *up.FirstName
	}
	if up.LastName != nil {
		u.LastName = *up.LastName
	}
	if up.PhoneNumber != nil {
		u.PhoneNumber = *up.PhoneNumber
	}
	if up.AvatarURL != nil {
		u.AvatarURL = *up.AvatarURL
	}
	return u
}
