package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractNoCPReplies(t *testing.T) {
	cases := []struct {
		name  string
		trace []int
		want  int
	}{
		{"all zero", []int{0, 0, 0}, 0},
		{"empty", nil, 0},
		{"single nonzero at start", []int{7}, 7},
		{"trailing zeros ignored", []int{5, 9, 0, 0}, 9},
		{"tail smaller than prior sample", []int{5, 12, 4}, 12},
		{"monotonic tail uses last", []int{5, 8, 9}, 9},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ExtractNoCPReplies(c.trace))
		})
	}
}
