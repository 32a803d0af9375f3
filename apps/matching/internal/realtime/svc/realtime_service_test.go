package svc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":" ping ","data":{"x":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Type)
	assert.JSONEq(t, `{"x":1}`, string(env.Data))

	_, err = ParseEnvelope([]byte(`{"data":1}`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`nope`))
	assert.Error(t, err)
}

func TestMarshalEnvelope_OmitsNilData(t *testing.T) {
	raw, err := MarshalEnvelope("pong", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(raw))

	raw, err = MarshalEnvelope("pong", map[string]int64{"timestamp": 5})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong","data":{"timestamp":5}}`, string(raw))
}

func TestShareDuration(t *testing.T) {
	cases := []struct {
		name       string
		duration   string
		durationMs string
		want       time.Duration
	}{
		{"default", "", "", 5 * time.Minute},
		{"duration wins", `2000`, `9000`, 2 * time.Second},
		{"durationMs fallback", `null`, `9000`, 9 * time.Second},
		{"numeric string", `"1500"`, "", 1500 * time.Millisecond},
		{"below floor", `10`, "", time.Second},
		{"negative", `-5`, "", time.Second},
		{"above ceiling", `7200000`, "", time.Hour},
		{"garbage skipped", `"soon"`, `3000`, 3 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := shareDuration(json.RawMessage(tc.duration), json.RawMessage(tc.durationMs))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStringOrField(t *testing.T) {
	field := func(raw json.RawMessage) (string, error) {
		var in roomData
		err := json.Unmarshal(raw, &in)
		return in.RoomID, err
	}

	got, ok := stringOrField(json.RawMessage(`"room-1"`), field)
	assert.True(t, ok)
	assert.Equal(t, "room-1", got)

	got, ok = stringOrField(json.RawMessage(`{"roomId":" room-2 "}`), field)
	assert.True(t, ok)
	assert.Equal(t, "room-2", got)

	for _, raw := range []string{``, `""`, `{}`, `42`} {
		_, ok = stringOrField(json.RawMessage(raw), field)
		assert.False(t, ok, raw)
	}
}
