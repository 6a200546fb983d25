package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedCacheEvictsOldestBatch(t *testing.T) {
	c := newOrderedCache[int](5, 2)
	for i := 0; i < 7; i++ {
		c.put(keyFor(i), i)
	}
	assert.LessOrEqual(t, c.len(), 5)

	if _, ok := c.get(keyFor(0)); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
}

func keyFor(i int) string {
	return string(rune('a' + i))
}

func TestKeyComposition(t *testing.T) {
	k := EyeKey("eye-left", 4, -8)
	assert.Equal(t, "eye:eye-left:4:-8", k)

	bk := BrowKey("brow-left", 2, -55)
	assert.Equal(t, "brow:brow-left:2:-55", bk)

	assert.Equal(t, 0, Rot10(0))
	assert.Equal(t, -15, Rot10(-1.5))
}
