package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	c := newClient(nil, "")
	assert.Equal(t, "sentitrader:lock:0xabc/agent", c.key("lock", "0xabc/agent"))
	assert.Equal(t, "sentitrader:ratelimit:sentichain", c.key("ratelimit", "sentichain"))

	staging := newClient(nil, "staging:")
	assert.Equal(t, "staging:lock:x", staging.key("lock", "x"))
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
	assert.Contains(t, unlockLua, "DEL")
}
