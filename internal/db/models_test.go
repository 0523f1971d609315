package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiteStatusTransitions(t *testing.T) {
	cases := []struct {
		from    SiteStatus
		to      SiteStatus
		allowed bool
	}{
		{StatusPending, StatusInstalling, true},
		{StatusInstalling, StatusActive, true},
		{StatusInstalling, StatusFailed, true},
		{StatusActive, StatusDeleted, true},
		{StatusFailed, StatusDeleted, true},

		{StatusPending, StatusActive, false},
		{StatusPending, StatusFailed, false},
		{StatusPending, StatusDeleted, false},
		{StatusInstalling, StatusDeleted, false},
		{StatusInstalling, StatusPending, false},
		{StatusActive, StatusInstalling, false},
		{StatusActive, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusDeleted, StatusPending, false},
		{StatusDeleted, StatusActive, false},
	}

	for _, tc := range cases {
		got := tc.from.CanTransition(tc.to)
		assert.Equalf(t, tc.allowed, got, "%s -> %s", tc.from, tc.to)
	}
}

func TestSiteStatusValid(t *testing.T) {
	for _, s := range []SiteStatus{StatusPending, StatusInstalling, StatusActive, StatusFailed, StatusDeleted} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, SiteStatus("provisioned").Valid())
	assert.False(t, SiteStatus("").Valid())
}
