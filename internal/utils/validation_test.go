package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestValidateID 测试 ID 校验
func TestValidateID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want error
	}{
		{"uuid", "3f1c2a9e-5b7d-4e8f-9a0b-1c2d3e4f5a6b", nil},
		{"seed edge", "supervisor:operator", nil},
		{"empty", "", ErrEmptyID},
		{"too long", strings.Repeat("a", 65), ErrIDTooLong},
		{"path traversal", "../etc", ErrInvalidIDFormat},
		{"space", "mold change", ErrInvalidIDFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateID(tt.id))
		})
	}
}

// TestCleanNote 测试备注清理
func TestCleanNote(t *testing.T) {
	got, err := CleanNote("  leak at\tvalve\x00\n ")
	assert.NoError(t, err)
	assert.Equal(t, "leak at\tvalve", got)

	got, err = CleanNote("")
	assert.NoError(t, err)
	assert.Empty(t, got)

	_, err = CleanNote(strings.Repeat("x", 2001))
	assert.Equal(t, ErrNoteTooLong, err)
}
