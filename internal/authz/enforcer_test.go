// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package authz

import (
	"testing"
	"time"

	"github.com/sparkpit/sparkpit/internal/models"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestRoleHierarchy(t *testing.T) {
	e := newTestEnforcer(t)

	tests := []struct {
		role, object, action string
		want                 bool
	}{
		{models.RoleMember, "messages", ActionWrite, true},
		{models.RoleMember, "bounties", ActionRead, true},
		{models.RoleMember, "invites", ActionWrite, true},
		{models.RoleMember, "messages", ActionManage, false},
		{models.RoleMember, "audit", ActionRead, false},
		{models.RoleMember, "payments", ActionManage, false},

		// Moderators inherit member permissions plus content management.
		{models.RoleModerator, "messages", ActionWrite, true},
		{models.RoleModerator, "messages", ActionManage, true},
		{models.RoleModerator, "rooms", ActionManage, true},
		{models.RoleModerator, "audit", ActionRead, false},
		{models.RoleModerator, "invites", ActionManage, false},

		// Admins inherit everything and hold the operational surface.
		{models.RoleAdmin, "messages", ActionManage, true},
		{models.RoleAdmin, "invites", ActionManage, true},
		{models.RoleAdmin, "audit", ActionRead, true},
		{models.RoleAdmin, "ops", ActionRead, true},
		{models.RoleAdmin, "payments", ActionManage, true},
	}
	for _, tt := range tests {
		got, err := e.EnforceRole(tt.role, tt.object, tt.action)
		if err != nil {
			t.Fatalf("EnforceRole(%s, %s, %s): %v", tt.role, tt.object, tt.action, err)
		}
		if got != tt.want {
			t.Errorf("EnforceRole(%s, %s, %s) = %v, want %v", tt.role, tt.object, tt.action, got, tt.want)
		}
	}
}

func TestEnforceRoleEmptyRole(t *testing.T) {
	e := newTestEnforcer(t)
	allowed, err := e.EnforceRole("", "messages", ActionRead)
	if err != nil {
		t.Fatalf("EnforceRole: %v", err)
	}
	if allowed {
		t.Error("empty role allowed")
	}
}

func TestAddAndDeleteRoleForUser(t *testing.T) {
	e := newTestEnforcer(t)

	allowed, err := e.Enforce("u-1", "messages", ActionManage)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if allowed {
		t.Fatal("unknown user allowed before grant")
	}

	if _, err := e.AddRoleForUser("u-1", models.RoleModerator); err != nil {
		t.Fatalf("AddRoleForUser: %v", err)
	}
	allowed, err = e.Enforce("u-1", "messages", ActionManage)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if !allowed {
		t.Error("granted role not effective")
	}

	if _, err := e.DeleteRoleForUser("u-1", models.RoleModerator); err != nil {
		t.Fatalf("DeleteRoleForUser: %v", err)
	}
	allowed, err = e.Enforce("u-1", "messages", ActionManage)
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if allowed {
		t.Error("revoked role still effective (cache not invalidated)")
	}
}

func TestEnforcementCache(t *testing.T) {
	c := newEnforcementCache(50 * time.Millisecond)
	defer c.stop()

	if _, ok := c.get("member", "messages", ActionRead); ok {
		t.Error("empty cache hit")
	}

	c.set("member", "messages", ActionRead, true)
	allowed, ok := c.get("member", "messages", ActionRead)
	if !ok || !allowed {
		t.Errorf("cache get = %v, %v", allowed, ok)
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.get("member", "messages", ActionRead); ok {
		t.Error("expired entry served")
	}
}

func TestCacheInvalidateSubject(t *testing.T) {
	c := newEnforcementCache(time.Minute)
	defer c.stop()

	c.set("u-1", "messages", ActionRead, true)
	c.set("u-2", "messages", ActionRead, true)
	c.invalidateSubject("u-1")

	if _, ok := c.get("u-1", "messages", ActionRead); ok {
		t.Error("invalidated subject still cached")
	}
	if _, ok := c.get("u-2", "messages", ActionRead); !ok {
		t.Error("unrelated subject evicted")
	}
}
