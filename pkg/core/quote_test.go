package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybeFloat_Unmarshal(t *testing.T) {
	var doc struct {
		Price MaybeFloat `json:"price"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"price": 1.05}`), &doc))
	assert.True(t, doc.Price.Valid)
	assert.Equal(t, 1.05, doc.Price.Value)

	for _, raw := range []string{
		`{"price": null}`,
		`{"price": "n/a"}`,
		`{"price": {}}`,
		`{}`,
	} {
		doc.Price = Float(99)
		require.NoError(t, json.Unmarshal([]byte(raw), &doc), raw)
		if raw == `{}` {
			// The field was never touched, the previous value survives.
			continue
		}
		assert.False(t, doc.Price.Valid, raw)
	}
}

func TestMaybeFloat_Marshal(t *testing.T) {
	present, err := json.Marshal(Float(1.05))
	require.NoError(t, err)
	assert.Equal(t, "1.05", string(present))

	absent, err := json.Marshal(MaybeFloat{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(absent))
}

func TestUser_Blacklisted(t *testing.T) {
	user := NewUser(1, ProfileDefaults{Target: "USDT"})
	user.Blacklist = []string{"dogecoin"}

	assert.True(t, user.Blacklisted("DogeCoin"))
	assert.False(t, user.Blacklisted("bitcoin"))
}
