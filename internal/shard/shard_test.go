package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndex_StableAndInRange(t *testing.T) {
	for _, key := range []string{"", "1", "user-42", "a much longer key with spaces"} {
		idx := Index(key, DefaultCount)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, DefaultCount)
		assert.Equal(t, idx, Index(key, DefaultCount))
	}

	assert.Equal(t, 0, Index("anything", 1))
	assert.Equal(t, 0, Index("anything", 0))
}
