package utils

import (
	"testing"
)

func TestJwtGenerate_RoundTripsClaims(t *testing.T) {
	token, err := JwtGenerate("u-1", "Ana Lopez", RoleModerator)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ID != "u-1" || claims.Name != "Ana Lopez" || claims.Role != RoleModerator {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt <= claims.IssuedAt {
		t.Fatalf("token must expire after it is issued")
	}
}

func TestJwtGenerate_RequiresUserId(t *testing.T) {
	if _, err := JwtGenerate("", "Ana", RoleEmployee); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestParseClaims_RejectsOtherSecret(t *testing.T) {
	t.Setenv("API_SECRET", "first")
	token, err := JwtGenerate("u-1", "Ana", RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	t.Setenv("API_SECRET", "second")
	if _, err := ParseClaims(token); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestProcessValidationErrors_NonValidationError(t *testing.T) {
	got := ProcessValidationErrors(ErrorUnknownField)
	if got["body"] != ErrorUnknownField.Error() {
		t.Fatalf("unexpected %v", got)
	}
}
