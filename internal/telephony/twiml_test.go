package telephony

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderConnectStream(t *testing.T) {
	twiml, err := RenderConnectStream("wss://calls.example.com/media-stream?callId=abc", []StreamParameter{
		{Name: "lovedOneName", Value: "Rose"},
		{Name: "questionsCount", Value: "3"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(twiml, "<?xml"))
	assert.Contains(t, twiml, "<Response>")
	assert.Contains(t, twiml, "<Connect>")
	assert.Contains(t, twiml, `<Stream url="wss://calls.example.com/media-stream?callId=abc">`)
	assert.Contains(t, twiml, `<Parameter name="lovedOneName" value="Rose">`)
	assert.Contains(t, twiml, `<Parameter name="questionsCount" value="3">`)
}

func TestRenderConnectStreamEscapesValues(t *testing.T) {
	twiml, err := RenderConnectStream("wss://calls.example.com/media-stream", []StreamParameter{
		{Name: "favoriteThings", Value: `["tea & biscuits"]`},
	})
	require.NoError(t, err)

	assert.Contains(t, twiml, "&amp;")
	assert.NotContains(t, twiml, `["tea & biscuits"]`)
}

func TestRenderConnectStreamNoParameters(t *testing.T) {
	twiml, err := RenderConnectStream("wss://calls.example.com/media-stream", nil)
	require.NoError(t, err)

	assert.Contains(t, twiml, "<Stream")
	assert.NotContains(t, twiml, "<Parameter")
}

func TestRenderFallback(t *testing.T) {
	twiml := RenderFallback()

	assert.Contains(t, twiml, "<Response>")
	assert.Contains(t, twiml, "<Say>")
	assert.Contains(t, twiml, "unable to connect your call")
	assert.Contains(t, twiml, "<Hangup>")
	assert.NotContains(t, twiml, "<Connect>")
}
