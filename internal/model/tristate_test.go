package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTristate_Bool(t *testing.T) {
	v, known := TriTrue.Bool()
	assert.True(t, v)
	assert.True(t, known)

	v, known = TriFalse.Bool()
	assert.False(t, v)
	assert.True(t, known)

	_, known = TriUnknown.Bool()
	assert.False(t, known)
}

func TestTristate_SQLMapping(t *testing.T) {
	v, err := TriUnknown.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = TriTrue.Value()
	require.NoError(t, err)
	assert.Equal(t, true, v)

	var ts Tristate
	require.NoError(t, ts.Scan(nil))
	assert.Equal(t, TriUnknown, ts)

	require.NoError(t, ts.Scan(false))
	assert.Equal(t, TriFalse, ts)

	// Drivers without a native boolean hand back integers.
	require.NoError(t, ts.Scan(int64(1)))
	assert.Equal(t, TriTrue, ts)

	assert.Error(t, ts.Scan("true"))
}

func TestTristate_JSON(t *testing.T) {
	type payload struct {
		Flag Tristate `json:"flag"`
	}

	b, err := json.Marshal(payload{Flag: TriUnknown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"flag":null}`, string(b))

	b, err = json.Marshal(payload{Flag: TriFalse})
	require.NoError(t, err)
	assert.JSONEq(t, `{"flag":false}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"flag":true}`), &p))
	assert.Equal(t, TriTrue, p.Flag)

	require.NoError(t, json.Unmarshal([]byte(`{"flag":null}`), &p))
	assert.Equal(t, TriUnknown, p.Flag)

	assert.Error(t, json.Unmarshal([]byte(`{"flag":"yes"}`), &p))
}
