package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type entry struct {
	SetID string `json:"setId"`
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c := New[entry](&Client{}, "seat", 0)
	ctx := context.Background()

	assert.NoError(t, c.Set(ctx, "s1", entry{SetID: "p1"}))

	got, err := c.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrMiss)
	assert.Nil(t, got)

	assert.NoError(t, c.Delete(ctx, "s1", "s2"))
}

func TestNilClientIsDisabled(t *testing.T) {
	var client *Client
	assert.False(t, client.Enabled())

	_, err := New[entry](client, "seat", 0).Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestKeyPrefix(t *testing.T) {
	c := New[entry](nil, "seat-permissions", 0)
	assert.Equal(t, "seat-permissions:abc", c.key("abc"))
}
