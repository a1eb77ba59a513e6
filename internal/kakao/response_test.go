package kakao

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextEnvelopeShape(t *testing.T) {
	data, err := json.Marshal(Text("hi"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"2.0","template":{"outputs":[{"simpleText":{"text":"hi"}}],"quickReplies":[]}}`, string(data))
}

func TestTemplateNeverEmitsNullArrays(t *testing.T) {
	data, err := json.Marshal(&Response{Version: Version, Template: &Template{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"2.0","template":{"outputs":[],"quickReplies":[]}}`, string(data))
}

func TestCompositeKeepsOrder(t *testing.T) {
	resp := Compose(
		ImageOutput("https://x/a.png", "alt"),
		TextOutput("caption"),
		CardOutput("title", "desc", "https://x/b.png"),
	)
	require.Len(t, resp.Template.Outputs, 3)
	assert.Equal(t, "image", resp.Template.Outputs[0].Kind())
	assert.Equal(t, "text", resp.Template.Outputs[1].Kind())
	assert.Equal(t, "card", resp.Template.Outputs[2].Kind())
	assert.Equal(t, "caption", resp.FirstText())

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"basicCard":{"title":"title","description":"desc","thumbnail":{"imageUrl":"https://x/b.png"}}`)
}

func TestTimeoverCarriesFinishedQuickReply(t *testing.T) {
	resp := Timeover()
	require.NotNil(t, resp.Template)
	require.Len(t, resp.Template.QuickReplies, 1)
	qr := resp.Template.QuickReplies[0]
	assert.Equal(t, "message", qr.Action)
	assert.Equal(t, FinishedMarker, qr.MessageText)
	assert.True(t, resp.IsPlaceholder())
	assert.False(t, Text("answer").IsPlaceholder())
}

func TestCallbackAckShape(t *testing.T) {
	data, err := json.Marshal(CallbackAck())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.0", decoded["version"])
	assert.Equal(t, true, decoded["useCallback"])
	assert.NotContains(t, decoded, "template")
	assert.NotEmpty(t, decoded["data"].(map[string]any)["text"])
	assert.True(t, CallbackAck().IsPlaceholder())
}

func TestWithQuickRepliesOnAckIsNoop(t *testing.T) {
	ack := CallbackAck().WithQuickReplies(QuickReply{Action: "message", Label: "x"})
	assert.Nil(t, ack.Template)
}
