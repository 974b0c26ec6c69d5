package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"a", "b", 1},
		{"ab", "abc", 1},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"Counter", "counter", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, EditDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, EditDistance(tt.b, tt.a))
		})
	}
}

func TestClosest(t *testing.T) {
	candidates := []string{"public", "private", "family", "assembly"}

	got, ok := Closest("pubilc", candidates)
	assert.True(t, ok)
	assert.Equal(t, "public", got)

	got, ok = Closest("PRIVATE", candidates)
	assert.True(t, ok)
	assert.Equal(t, "private", got)

	_, ok = Closest("internal", candidates)
	assert.False(t, ok)

	_, ok = Closest("x", nil)
	assert.False(t, ok)
}
