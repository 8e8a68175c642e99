package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundCurrency(t *testing.T) {
	assert.Equal(t, 4000.0, RoundCurrency(4000.4))
	assert.Equal(t, 4001.0, RoundCurrency(4000.5))
	assert.Equal(t, -4001.0, RoundCurrency(-4000.5))
}

func TestEquals(t *testing.T) {
	assert.True(t, Equals(21000, 21000.9))
	assert.True(t, Equals(21000.9, 21000))
	assert.False(t, Equals(21000, 21002))
}

func TestGreaterThan(t *testing.T) {
	assert.False(t, GreaterThan(21000.9, 21000))
	assert.True(t, GreaterThan(21002, 21000))
	assert.False(t, GreaterThan(20000, 21000))
}
