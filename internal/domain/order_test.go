package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSideString(t *testing.T) {
	assert.Equal(t, "bid", Bid.String())
	assert.Equal(t, "ask", Ask.String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "limit", Limit.String())
	assert.Equal(t, "market", Market.String())
	assert.Equal(t, "stop", Stop.String())
}

func TestIsLiveReflectsRemainingSize(t *testing.T) {
	o := &Order{RemainingSize: 5}
	assert.True(t, o.IsLive())

	o.RemainingSize = 0
	assert.False(t, o.IsLive())
}
