package slices

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	testCases := []struct {
		name     string
		slice    []uint16
		expected []string
	}{
		{
			name:     "nil slice",
			slice:    nil,
			expected: nil,
		},
		{
			name:     "cipher suites",
			slice:    []uint16{0x002f, 0x0035, 0x000a},
			expected: []string{"47", "53", "10"},
		},
	}

	for _, tc := range testCases {
		result := Map(tc.slice, func(v uint16) string {
			return strconv.FormatUint(uint64(v), 10)
		})
		assert.Equal(t, tc.expected, result, tc.name)
	}
}

func TestFilterAndCount(t *testing.T) {
	even := func(n int) bool { return n%2 == 0 }
	assert.Equal(t, []int{2, 4}, Filter([]int{1, 2, 3, 4, 5}, even))
	assert.Nil(t, Filter([]int{1, 3}, even))
	assert.Equal(t, 2, Count([]int{1, 2, 3, 4, 5}, even))
	assert.Equal(t, 0, Count[int](nil, even))
}
