package validation

import (
	"errors"
	"strings"
	"testing"
)

type signup struct {
	Username        string `json:"username" validate:"required,min=3,max=32"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(signup{Username: "alice", Email: "a@b.io", Password: "longpassword", ConfirmPassword: "longpassword"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_PasswordMismatch(t *testing.T) {
	err := Struct(signup{Username: "alice", Email: "a@b.io", Password: "longpassword", ConfirmPassword: "different1"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if !strings.Contains(verr.Message, "confirm_password must match password") {
		t.Errorf("message = %q", verr.Message)
	}
}

func TestStruct_UsesJSONNames(t *testing.T) {
	err := Struct(signup{})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	for _, f := range verr.Fields {
		if f == "Username" || f == "ConfirmPassword" {
			t.Errorf("field %q reported with Go name", f)
		}
	}
	if !strings.Contains(verr.Message, "username is required") {
		t.Errorf("message = %q", verr.Message)
	}
}

func TestToJSONName(t *testing.T) {
	if got := toJSONName("ConfirmPassword"); got != "confirm_password" {
		t.Errorf("toJSONName = %q", got)
	}
}
