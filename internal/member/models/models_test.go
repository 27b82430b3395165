package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreferredContact(t *testing.T) {
	c, ok := Member{Email: " a@b.org ", Phone: "+1"}.PreferredContact()
	assert.True(t, ok)
	assert.Equal(t, Contact{Channel: ChannelEmail, Address: "a@b.org"}, c)

	c, ok = Member{Phone: "+15550001"}.PreferredContact()
	assert.True(t, ok)
	assert.Equal(t, ChannelSMS, c.Channel)

	_, ok = Member{Email: "  "}.PreferredContact()
	assert.False(t, ok)
}

func TestContactKeyNormalizes(t *testing.T) {
	a := Contact{Channel: ChannelEmail, Address: "Voter@Union.org"}
	b := Contact{Channel: ChannelEmail, Address: " voter@union.org"}
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "email:voter@union.org", a.Key())
}
