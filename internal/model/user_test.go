package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUserType_IsValid(t *testing.T) {
	for _, ut := range UserTypes {
		if !ut.IsValid() {
			t.Errorf("%s should be valid", ut)
		}
	}

	for _, ut := range []UserType{"User", "admin", ""} {
		if ut.IsValid() {
			t.Errorf("%q should be invalid", ut)
		}
	}
}

func TestUser_IsAdmin(t *testing.T) {
	u := &User{UserType: UserTypeAdmin}
	if !u.IsAdmin() {
		t.Error("Admin user should be admin")
	}

	u.UserType = UserTypeSuperUser
	if u.IsAdmin() {
		t.Error("SuperUser is not Admin")
	}
}

func TestUserRecord_ToProfile(t *testing.T) {
	now := time.Now().UTC()
	rec := &UserRecord{
		User: User{
			ID:           uuid.New(),
			FullName:     "Ada Lovelace",
			Email:        "ada@x.com",
			PasswordHash: "$argon2id$v=19$m=65536,t=3,p=4$salt$hash",
			UserType:     UserTypeClient,
			CreatedAt:    now,
		},
		Credential: NewCredential(uuid.New(), SubscriptionPro, "$argon2id$keyhash", "abc123", "live", now),
	}

	profile := rec.ToProfile()

	if profile.APIKey != "xhp_live_abc123_****" {
		t.Errorf("APIKey = %s, want masked key", profile.APIKey)
	}
	if profile.SubscriptionType != SubscriptionPro {
		t.Errorf("SubscriptionType = %s, want Pro", profile.SubscriptionType)
	}

	data, err := json.Marshal(profile)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	body := string(data)
	if strings.Contains(body, "password") || strings.Contains(body, "argon2id") {
		t.Errorf("profile leaks secret material: %s", body)
	}
}

func TestUserRecord_ToProfile_NoCredential(t *testing.T) {
	rec := &UserRecord{User: User{ID: uuid.New(), Email: "a@b.c"}}

	profile := rec.ToProfile()

	if profile.APIKey != "" || profile.RateLimit != nil {
		t.Errorf("profile without credential should have no key fields: %+v", profile)
	}
}

func TestUserUpdate_IsEmpty(t *testing.T) {
	if !(UserUpdate{}).IsEmpty() {
		t.Error("zero update should be empty")
	}

	name := "Grace"
	if (UserUpdate{FullName: &name}).IsEmpty() {
		t.Error("update with name should not be empty")
	}
}
