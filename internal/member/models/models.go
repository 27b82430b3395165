package models

import "strings"

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// Member is a read-only registry record.
type Member struct {
	ID         string
	NationalID string
	Branch     string
	Role       Role
	Active     bool
	Email      string
	Phone      string
}

// ContactChannel is how a one-time code reaches the member.
type ContactChannel string

const (
	ChannelEmail ContactChannel = "email"
	ChannelSMS   ContactChannel = "sms"
)

// Contact is a deliverable address for one-time codes.
type Contact struct {
	Channel ContactChannel
	Address string
}

// Key is the stable identifier sessions are indexed by.
func (c Contact) Key() string {
	return string(c.Channel) + ":" + strings.ToLower(strings.TrimSpace(c.Address))
}

// IsZero reports whether no address is set.
func (c Contact) IsZero() bool {
	return strings.TrimSpace(c.Address) == ""
}

// PreferredContact returns the email on file, falling back to the phone.
func (m Member) PreferredContact() (Contact, bool) {
	if e := strings.TrimSpace(m.Email); e != "" {
		return Contact{Channel: ChannelEmail, Address: e}, true
	}
	if p := strings.TrimSpace(m.Phone); p != "" {
		return Contact{Channel: ChannelSMS, Address: p}, true
	}
	return Contact{}, false
}
