// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

package validation

import (
	"strings"
	"testing"
)

type signupRequest struct {
	Email      string `validate:"required,email"`
	Handle     string `validate:"required,handle"`
	InviteCode string `validate:"omitempty,invitecode"`
	Password   string `validate:"required,min=8,max=72"`
}

type roomRequest struct {
	Slug       string `validate:"required,slug"`
	Visibility string `validate:"required,oneof=public private"`
}

type botRequest struct {
	Handle string   `validate:"required,handle"`
	Scopes []string `validate:"required,min=1,dive,botscope"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&signupRequest{
		Email:      "ada@example.com",
		Handle:     "ada_lovelace",
		InviteCode: "SPARK-H7K2M9PQ",
		Password:   "correct horse",
	})
	if err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestHandleTag(t *testing.T) {
	good := []string{"ada", "ada_lovelace", "bot42", "a_1"}
	bad := []string{"ab", "Ada", "has space", "_leading", "trailing_", strings.Repeat("a", 33), ""}

	for _, h := range good {
		if err := ValidateStruct(&botRequest{Handle: h, Scopes: []string{"messages:write"}}); err != nil {
			t.Errorf("handle %q rejected: %v", h, err)
		}
	}
	for _, h := range bad {
		if err := ValidateStruct(&botRequest{Handle: h, Scopes: []string{"messages:write"}}); err == nil {
			t.Errorf("handle %q accepted", h)
		}
	}
}

func TestSlugTag(t *testing.T) {
	good := []string{"general", "off-topic", "go-jobs-2026", "a"}
	bad := []string{"-leading", "trailing-", "UPPER", "has space", strings.Repeat("a", 65)}

	for _, s := range good {
		if err := ValidateStruct(&roomRequest{Slug: s, Visibility: "public"}); err != nil {
			t.Errorf("slug %q rejected: %v", s, err)
		}
	}
	for _, s := range bad {
		if err := ValidateStruct(&roomRequest{Slug: s, Visibility: "public"}); err == nil {
			t.Errorf("slug %q accepted", s)
		}
	}
}

func TestInviteCodeTag(t *testing.T) {
	good := []string{"SPARK-H7K2M9PQ", "SPARK-ZZZZZZZZ"}
	// The alphabet omits 0, 1, I, and O.
	bad := []string{"SPARK-H7K2M9P", "spark-h7k2m9pq", "SPARK-H7K2M9P0", "SPARK-H7K2M9PI", "INVITE-AAAAAAAA"}

	for _, c := range good {
		if err := ValidateStruct(&signupRequest{Email: "a@b.co", Handle: "ada", InviteCode: c, Password: "password1"}); err != nil {
			t.Errorf("code %q rejected: %v", c, err)
		}
	}
	for _, c := range bad {
		if err := ValidateStruct(&signupRequest{Email: "a@b.co", Handle: "ada", InviteCode: c, Password: "password1"}); err == nil {
			t.Errorf("code %q accepted", c)
		}
	}
}

func TestBotScopeTag(t *testing.T) {
	if err := ValidateStruct(&botRequest{Handle: "bot", Scopes: []string{"messages:write", "bounties:read"}}); err != nil {
		t.Errorf("valid scopes rejected: %v", err)
	}
	if err := ValidateStruct(&botRequest{Handle: "bot", Scopes: []string{"admin:everything"}}); err == nil {
		t.Error("unknown scope accepted")
	}
	if err := ValidateStruct(&botRequest{Handle: "bot", Scopes: []string{}}); err == nil {
		t.Error("empty scope list accepted")
	}
}

func TestToAPIErrorSingleAndMultiple(t *testing.T) {
	err := ValidateStruct(&signupRequest{Email: "a@b.co", Handle: "ada", Password: "short"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %s", apiErr.Code)
	}
	if apiErr.Details["field"] != "Password" {
		t.Errorf("details = %v", apiErr.Details)
	}

	err = ValidateStruct(&signupRequest{Email: "not-an-email", Handle: "x", Password: "short"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	apiErr = err.ToAPIError()
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("multi-error details = %v", apiErr.Details)
	}
	if len(err.Errors()) != 3 {
		t.Errorf("got %d errors, want 3", len(err.Errors()))
	}
}
