package kakao

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSkillRequest(t *testing.T) {
	body := `{"userRequest":{"utterance":"hello","callbackUrl":"https://bot-api.kakao.com/callback/abc","user":{"id":"u1","type":"botUserKey"}},"bot":{"id":"b"}}`
	req, err := DecodeSkillRequest(strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "hello", req.Text())
	assert.Equal(t, "u1", req.UserRequest.User.ID)
	assert.NoError(t, req.Validate(true))
}

func TestDecodeSkillRequestInvalidJSON(t *testing.T) {
	_, err := DecodeSkillRequest(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		requireCallback bool
		want            error
	}{
		{"missing utterance", `{"userRequest":{"callbackUrl":"https://cb"}}`, true, ErrMissingUtterance},
		{"null utterance", `{"userRequest":{"utterance":null,"callbackUrl":"https://cb"}}`, true, ErrMissingUtterance},
		{"blank utterance", `{"userRequest":{"utterance":"  ","callbackUrl":"https://cb"}}`, true, ErrMissingUtterance},
		{"missing callback required", `{"userRequest":{"utterance":"hi"}}`, true, ErrMissingCallbackURL},
		{"missing callback optional", `{"userRequest":{"utterance":"hi"}}`, false, nil},
		{"relative callback", `{"userRequest":{"utterance":"hi","callbackUrl":"/callback"}}`, false, ErrInvalidCallbackURL},
		{"non http callback", `{"userRequest":{"utterance":"hi","callbackUrl":"ftp://host/x"}}`, true, ErrInvalidCallbackURL},
		{"valid", `{"userRequest":{"utterance":"hi","callbackUrl":"http://localhost:9000/cb"}}`, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeSkillRequest(strings.NewReader(tt.body))
			require.NoError(t, err)
			err = req.Validate(tt.requireCallback)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNilRequestValidate(t *testing.T) {
	var req *SkillRequest
	assert.ErrorIs(t, req.Validate(false), ErrMissingUtterance)
	assert.Equal(t, "", req.Text())
}
