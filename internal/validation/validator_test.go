// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

package validation

import (
	"strings"
	"testing"
)

type commandBody struct {
	Name  string `json:"name" validate:"required,cmdname"`
	Value string `json:"value" validate:"max=8,singleline"`
}

type settingsBody struct {
	SSID     string `json:"ssid" validate:"required,max=32"`
	Password string `json:"password" validate:"omitempty,min=8"`
	Mode     string `json:"mode,omitempty" validate:"omitempty,oneof=open wpa2"`
}

func TestValidatorSingleton(t *testing.T) {
	if Validator() != Validator() {
		t.Error("Validator() should return the same instance")
	}
}

func TestCustomTags(t *testing.T) {
	tests := []struct {
		name    string
		in      commandBody
		wantTag map[string]string
	}{
		{"valid", commandBody{Name: "SET_SSID", Value: "Lobby"}, nil},
		{"digits allowed", commandBody{Name: "CH11"}, nil},
		{"missing name", commandBody{}, map[string]string{"name": "required"}},
		{"lower-case name", commandBody{Name: "set_ssid"}, map[string]string{"name": "cmdname"}},
		{"colon in name", commandBody{Name: "SET:SSID"}, map[string]string{"name": "cmdname"}},
		{"newline in value", commandBody{Name: "SET_SSID", Value: "a\nb"}, map[string]string{"value": "singleline"}},
		{"carriage return in value", commandBody{Name: "SET_SSID", Value: "a\rb"}, map[string]string{"value": "singleline"}},
		{"too long", commandBody{Name: "SET_SSID", Value: "123456789"}, map[string]string{"value": "max"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if tt.wantTag == nil {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			got := err.Tags()
			for field, tag := range tt.wantTag {
				if got[field] != tag {
					t.Errorf("tags = %v, want %s=%s", got, field, tag)
				}
			}
		})
	}
}

func TestCommandNameLength(t *testing.T) {
	if isCommandName(strings.Repeat("A", 33)) {
		t.Error("33-character name accepted")
	}
	if !isCommandName(strings.Repeat("A", 32)) {
		t.Error("32-character name rejected")
	}
}

func TestErrorMessagesUseJSONNames(t *testing.T) {
	err := ValidateStruct(&settingsBody{Password: "short", Mode: "wep"})
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{
		"ssid is required",
		"password must be at least 8 characters",
		"mode must be one of: open wpa2",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
	if n := len(err.Fields()); n != 3 {
		t.Errorf("fields = %d, want 3", n)
	}
}

func TestIsMAC(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"AA:BB:CC:DD:EE:FF", true},
		{"aa:bb:cc:dd:ee:ff", true},
		{"aa-bb-cc-dd-ee-ff", true},
		{"", false},
		{"AA:BB:CC", false},
		{"not-a-mac", false},
	}
	for _, tt := range tests {
		if got := IsMAC(tt.in); got != tt.want {
			t.Errorf("IsMAC(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
