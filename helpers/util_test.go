package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("a/b/c", "/", 1)
	assert.NoError(t, err)
	assert.Equal(t, "b", part)

	_, err = GetSplitPart("a/b/c", "/", 3)
	assert.Error(t, err)
}

func TestItemIDFromPath(t *testing.T) {
	id, err := ItemIDFromPath("https://www.amazon.in/Some-Product/dp/B0ABCDEF12/ref=x?tag=y", "/dp/")
	assert.NoError(t, err)
	assert.Equal(t, "B0ABCDEF12", id)

	id, err = ItemIDFromPath("/dp/B0ABCDEF12?th=1", "/dp/")
	assert.NoError(t, err)
	assert.Equal(t, "B0ABCDEF12", id)

	_, err = ItemIDFromPath("https://www.amazon.in/deals", "/dp/")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short ", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "ñññ...", Truncate("ññññ", 3))
}
