package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignalKeepsPayloadVerbatim(t *testing.T) {
	payload := json.RawMessage(`{"sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1","type":"offer","extra":[1,2,{"x":null}]}`)

	b, err := json.Marshal(NewSignal("alice", "room1", payload))
	require.NoError(t, err)

	var decoded struct {
		Type Type            `json:"type"`
		From string          `json:"from"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, TypeSignal, decoded.Type)
	require.Equal(t, "alice", decoded.From)
	require.JSONEq(t, string(payload), string(decoded.Data))
}

func TestStatusOmitsLastSeenWhenOnline(t *testing.T) {
	b, err := json.Marshal(NewStatus("bob", true, time.Now()))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"status","user":"bob","online":true}`, string(b))

	offline := NewStatus("bob", false, time.Unix(1700000000, 0).UTC())
	require.NotNil(t, offline.LastSeen)
}
