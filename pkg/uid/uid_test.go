package uid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSonyflake(t *testing.T) {
	sf := NewSonyflake()
	assert.NotNil(t, sf)

	a, err := sf.NextID()
	assert.NoError(t, err)

	b, err := sf.NextID()
	assert.NoError(t, err)
	assert.Greater(t, b, a)
}
