package middleware

import (
	"strings"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "valid simple", id: "user123", wantErr: false},
		{name: "valid with dash", id: "room-1_a", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "spaces", id: "has spaces", wantErr: true},
		{name: "path traversal", id: "../etc/passwd", wantErr: true},
		{name: "too long", id: strings.Repeat("a", 65), wantErr: true},
		{name: "max length ok", id: strings.Repeat("a", 64), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserID(%q) err = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateText(t *testing.T) {
	if err := ValidateText("hello", 100); err != nil {
		t.Errorf("valid text rejected: %v", err)
	}
	if err := ValidateText("", 100); err == nil {
		t.Error("empty text accepted")
	}
	if err := ValidateText("   \t\n", 100); err == nil {
		t.Error("whitespace-only text accepted")
	}
	if err := ValidateText(strings.Repeat("x", 101), 100); err == nil {
		t.Error("oversized text accepted")
	}
	if err := ValidateText(strings.Repeat("x", 200), 0); err != nil {
		t.Errorf("maxLen=0 should disable the bound: %v", err)
	}
}

func TestValidateUploadExt(t *testing.T) {
	allowed := []string{".png", ".jpg"}

	if err := ValidateUploadExt("photo.png", allowed); err != nil {
		t.Errorf("allowed extension rejected: %v", err)
	}
	if err := ValidateUploadExt("PHOTO.PNG", allowed); err != nil {
		t.Errorf("extension check should be case-insensitive: %v", err)
	}
	if err := ValidateUploadExt("payload.exe", allowed); err == nil {
		t.Error("disallowed extension accepted")
	}
	if err := ValidateUploadExt("noext", allowed); err == nil {
		t.Error("missing extension accepted")
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "hello", want: "hello"},
		{input: "null\x00byte", want: "nullbyte"},
		{input: "bell\x07char", want: "bellchar"},
		{input: "  padded  ", want: "padded"},
		{input: "keep\ttabs\nand newlines", want: "keep\ttabs\nand newlines"},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.input); got != tt.want {
			t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidatePageSize(t *testing.T) {
	if got := ValidatePageSize(0); got != 20 {
		t.Errorf("default page size = %d, want 20", got)
	}
	if got := ValidatePageSize(-5); got != 20 {
		t.Errorf("negative page size = %d, want 20", got)
	}
	if got := ValidatePageSize(500); got != 100 {
		t.Errorf("clamped page size = %d, want 100", got)
	}
	if got := ValidatePageSize(33); got != 33 {
		t.Errorf("in-range page size = %d, want 33", got)
	}
}

func TestValidateHistoryLimit(t *testing.T) {
	if got := ValidateHistoryLimit(0); got != 10 {
		t.Errorf("default history limit = %d, want 10", got)
	}
	if got := ValidateHistoryLimit(100); got != 50 {
		t.Errorf("clamped history limit = %d, want 50", got)
	}
	if got := ValidateHistoryLimit(25); got != 25 {
		t.Errorf("in-range history limit = %d, want 25", got)
	}
}
