package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	f := New("DM")
	f.Set("FROM", "alice@10.0.0.2")
	f.Set("TO", "bob@10.0.0.3")
	f.Set("CONTENT", "hello there")
	f.Set("MESSAGE_ID", "abc123")

	decoded := Decode(f.Encode())

	require.Equal(t, "DM", decoded.Type())
	assert.Equal(t, "alice@10.0.0.2", decoded.Get("FROM"))
	assert.Equal(t, "bob@10.0.0.3", decoded.Get("TO"))
	assert.Equal(t, "hello there", decoded.Get("CONTENT"))
	assert.Equal(t, "abc123", decoded.Get("MESSAGE_ID"))
}

func TestDecodeIgnoresMalformedLines(t *testing.T) {
	payload := []byte("TYPE: PING\nnotakeyvalueline\nUSER_ID: alice@10.0.0.2\n\n")
	f := Decode(payload)
	assert.Equal(t, "PING", f.Type())
	assert.Equal(t, "alice@10.0.0.2", f.Get("USER_ID"))
	assert.False(t, f.Has("notakeyvalueline"))
}

func TestMissingKeyDecodesEmpty(t *testing.T) {
	f := Decode([]byte("TYPE: PING\n\n"))
	assert.Equal(t, "", f.Get("USER_ID"))
	assert.False(t, f.Has("USER_ID"))
}

func TestGetIntLazyParse(t *testing.T) {
	f := New("FILE_CHUNK")
	f.SetInt("CHUNK_INDEX", 2)
	f.Set("TOTAL_CHUNKS", "not-a-number")

	idx, ok := f.GetInt("CHUNK_INDEX")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = f.GetInt("TOTAL_CHUNKS")
	assert.False(t, ok)
}

func TestCSVRoundTrip(t *testing.T) {
	members := []string{"alice@10.0.0.2", "bob@10.0.0.3", "carol@10.0.0.4"}
	joined := JoinCSV(members)
	assert.Equal(t, members, CSV(joined))
}

func TestEncodeOrderPreserved(t *testing.T) {
	f := New("PROFILE")
	f.Set("USER_ID", "alice@10.0.0.2")
	f.Set("DISPLAY_NAME", "Alice")
	f.Set("TIMESTAMP", "1730000000")

	expected := "TYPE: PROFILE\nUSER_ID: alice@10.0.0.2\nDISPLAY_NAME: Alice\nTIMESTAMP: 1730000000\n\n"
	assert.Equal(t, expected, string(f.Encode()))
}
