package frame

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	payload := map[string]any{
		"numTotalTests": float64(2),
		"success":       true,
		"testResults":   []any{map[string]any{"name": "math.test.ts"}},
	}

	encoded, err := Encode("session-1", MessageTypeResults, payload)
	require.NoError(t, err)

	messages, remaining := Decode(encoded, "session-1")
	require.Len(t, messages, 1)
	assert.Empty(t, remaining, "a complete frame should leave no remainder")

	msg := messages[0]
	assert.Equal(t, "session-1", msg.SessionID)
	assert.Equal(t, MessageTypeResults, msg.Type)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestDecode_ChunkedAtEveryBoundary(t *testing.T) {
	payload := map[string]string{"k": "value with ##testpipe-begin## inside"}
	encoded, err := Encode("s", "results", payload)
	require.NoError(t, err)

	for split := 1; split < len(encoded); split++ {
		d := NewDecoder("s")
		messages := d.Feed(encoded[:split])
		messages = append(messages, d.Feed(encoded[split:])...)

		require.Len(t, messages, 1, "split at byte %d", split)
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(messages[0].Payload, &decoded))
		assert.Equal(t, payload, decoded, "split at byte %d", split)
	}
}

func TestDecode_IgnoresSurroundingText(t *testing.T) {
	encoded, err := Encode("abc", "results", map[string]int{"n": 1})
	require.NoError(t, err)

	buffer := append([]byte("npm WARN something\nexecuting tests...\n"), encoded...)
	buffer = append(buffer, []byte("\nDone in 1.2s\n")...)

	messages, remaining := Decode(buffer, "abc")
	require.Len(t, messages, 1)
	assert.Empty(t, remaining)
}

func TestDecode_SessionFiltering(t *testing.T) {
	a, err := Encode("run-a", "results", map[string]int{"n": 1})
	require.NoError(t, err)
	b, err := Encode("run-b", "results", map[string]int{"n": 2})
	require.NoError(t, err)

	buffer := append(append([]byte{}, a...), b...)

	messages, _ := Decode(buffer, "run-b")
	require.Len(t, messages, 1)
	assert.Equal(t, "run-b", messages[0].SessionID)

	// No filter matches both
	messages, _ = Decode(buffer, "")
	assert.Len(t, messages, 2)
}

func TestDecode_MalformedFrames(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
	}{
		{name: "non-numeric length", buffer: "##testpipe-begin##sid::results::xyz::{}##testpipe-end##sid::results"},
		{name: "end marker mismatch", buffer: "##testpipe-begin##sid::results::2::{}##testpipe-end##other::results"},
		{name: "invalid json payload", buffer: "##testpipe-begin##sid::results::3::nop##testpipe-end##sid::results"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages, remaining := Decode([]byte(tt.buffer), "")
			assert.Empty(t, messages, "malformed frames are skipped, not decoded")
			assert.Empty(t, remaining, "malformed frames are not retried")
		})
	}
}

func TestDecode_MalformedThenValidFrame(t *testing.T) {
	valid, err := Encode("sid", "results", map[string]bool{"ok": true})
	require.NoError(t, err)
	buffer := append([]byte("##testpipe-begin##sid::results::xyz::broken header "), valid...)

	messages, _ := Decode(buffer, "sid")
	require.Len(t, messages, 1)
	assert.JSONEq(t, `{"ok":true}`, string(messages[0].Payload))
}

func TestDecode_BareMarkerIsRetainedAsIncomplete(t *testing.T) {
	// A start marker in free-form text is indistinguishable from a frame
	// whose header has not arrived yet, so it stays buffered.
	buffer := []byte("saw ##testpipe-begin## in docs")
	messages, remaining := Decode(buffer, "")
	assert.Empty(t, messages)
	assert.Equal(t, []byte("##testpipe-begin## in docs"), remaining)
}

func TestDecode_IncompleteFrameReturnsRemainder(t *testing.T) {
	encoded, err := Encode("sid", "results", map[string]string{"k": "v"})
	require.NoError(t, err)

	head := encoded[:len(encoded)-5]
	messages, remaining := Decode(head, "sid")
	assert.Empty(t, messages)
	assert.Equal(t, head, remaining, "incomplete frame is re-offered from its start marker")
}

func TestDecoder_MultipleFramesAcrossFeeds(t *testing.T) {
	d := NewDecoder("")
	var all []Message
	for i := 0; i < 3; i++ {
		encoded, err := Encode("s", "results", map[string]int{"i": i})
		require.NoError(t, err)
		chunk := append([]byte(fmt.Sprintf("log line %d\n", i)), encoded...)
		all = append(all, d.Feed(chunk)...)
	}
	require.Len(t, all, 3)
	for i, msg := range all {
		assert.JSONEq(t, fmt.Sprintf(`{"i":%d}`, i), string(msg.Payload))
	}
}
