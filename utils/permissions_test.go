package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	assert.False(t, Can(RoleUser, ActionPostAnnouncement))
	assert.True(t, Can(RoleHost, ActionPostAnnouncement))
	assert.False(t, Can(RoleHost, ActionManageChannels))
	assert.True(t, Can(RoleAdmin, ActionManageCategories))
	assert.True(t, Can(RoleSuperAdmin, ActionDeleteAnyMedia))
}

func TestCanUnknownRole(t *testing.T) {
	assert.False(t, Can("", ActionManageChannels))
	assert.False(t, Can("ghost", ActionPostAnnouncement))
}
