package redis

import (
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeyNamespacing(t *testing.T) {
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), "")
	defer c.Close()

	assert.Equal(t, "vaultbot:settings:CR123", c.Key("settings", "CR123"))
	assert.Equal(t, "vaultbot:lock:engine:CR123", c.Key("lock", "engine:CR123"))

	custom := Wrap(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), "staging")
	defer custom.Close()
	assert.Equal(t, "staging:ch:trade", custom.Key("ch:trade"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("ch:*"))
	assert.True(t, hasPattern("ch:[at]*"))
	assert.False(t, hasPattern("ch:settings"))
}

func TestStreamPayload(t *testing.T) {
	b, ok := streamPayload(map[string]any{"payload": "abc"})
	assert.True(t, ok)
	assert.Equal(t, []byte("abc"), b)

	b, ok = streamPayload(map[string]any{"payload": []byte("xyz")})
	assert.True(t, ok)
	assert.Equal(t, []byte("xyz"), b)

	_, ok = streamPayload(map[string]any{"other": "abc"})
	assert.False(t, ok)
}
