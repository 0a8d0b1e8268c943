package resellers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		slug  string
		valid bool
	}{
		{"golf-master-88", true},
		{"abc", true},
		{"a1-b2-c3", true},
		{strings.Repeat("a", 50), true},
		{"ab", false},
		{strings.Repeat("a", 51), false},
		{"DROP TABLE", false},
		{"../admin", false},
		{"Golf-Master", false},
		{"-leading", false},
		{"trailing-", false},
		{"under_score", false},
		{"golf%20master", false},
		{"ゴルフ", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.slug, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidSlug), "got %v", err)
		})
	}
}
