package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateUserID validates user/room/item identifier format
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if !userIDPattern.MatchString(id) {
		return fmt.Errorf("invalid id format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateText checks that a text field is present and within bounds
func ValidateText(text string, maxLen int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if maxLen > 0 && len(text) > maxLen {
		return fmt.Errorf("text too long (max %d bytes)", maxLen)
	}
	return nil
}

// ValidateUploadExt checks an upload filename against an allowed extension list
func ValidateUploadExt(filename string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("unsupported file type: %s (allowed: %s)", ext, strings.Join(allowed, ", "))
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidatePageSize clamps pagination page size
func ValidatePageSize(size int) int {
	if size <= 0 {
		return 20 // default
	}
	if size > 100 {
		return 100 // max
	}
	return size
}

// ValidateHistoryLimit clamps the chat-history window folded into prompts
func ValidateHistoryLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 50 {
		return 50
	}
	return limit
}
