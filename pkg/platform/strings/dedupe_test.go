package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims and drops empties",
			input:    []string{"  admin ", "", "  ", "auditor"},
			expected: []string{"admin", "auditor"},
		},
		{
			name:     "dedupes preserving first-seen order",
			input:    []string{"auditor", "admin", "auditor", "admin"},
			expected: []string{"auditor", "admin"},
		},
		{
			name:     "case matters",
			input:    []string{"Admin", "admin"},
			expected: []string{"Admin", "admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "folds case before deduping",
			input:    []string{"Login", "login", "LOGIN"},
			expected: []string{"login"},
		},
		{
			name:     "trims, folds, and drops empties",
			input:    []string{" LOGIN ", "supplier_submission", "Login", " "},
			expected: []string{"login", "supplier_submission"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
