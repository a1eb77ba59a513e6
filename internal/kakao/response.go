// Package kakao models the Kakao i Open Builder skill protocol: the inbound
// skill request, the versioned response envelope, and the outbound callback.
package kakao

import "encoding/json"

const (
	// Version is the envelope version every skill response carries.
	Version = "2.0"

	// FinishedMarker is the utterance the timeover quick reply sends back.
	FinishedMarker = "생각 다 끝났나요?"

	timeoverText  = "아직 제가 생각이 끝나지 않았어요 🙏🙏 \n잠시 후 아래 말풍선을 눌러주세요 👆"
	timeoverLabel = "생각 다 끝났나요? 🙋‍♂️"
	thinkingText  = "생각하고 있는 중이에요 🤔 잠시만 기다려 주세요!"
)

// SimpleText is a plain text bubble.
type SimpleText struct {
	Text string `json:"text"`
}

// SimpleImage is an image bubble.
type SimpleImage struct {
	ImageURL string `json:"imageUrl"`
	AltText  string `json:"altText,omitempty"`
}

// Thumbnail is the image shown on a basic card.
type Thumbnail struct {
	ImageURL string `json:"imageUrl"`
}

// BasicCard is a titled card with a thumbnail.
type BasicCard struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Thumbnail   Thumbnail `json:"thumbnail"`
}

// Output is one entry of template.outputs. Exactly one field is set.
type Output struct {
	SimpleText  *SimpleText  `json:"simpleText,omitempty"`
	SimpleImage *SimpleImage `json:"simpleImage,omitempty"`
	BasicCard   *BasicCard   `json:"basicCard,omitempty"`
}

// Kind reports which variant the output holds.
func (o Output) Kind() string {
	switch {
	case o.SimpleText != nil:
		return "text"
	case o.SimpleImage != nil:
		return "image"
	case o.BasicCard != nil:
		return "card"
	default:
		return ""
	}
}

// QuickReply is a suggestion button under the bubbles.
type QuickReply struct {
	Action      string `json:"action"`
	Label       string `json:"label"`
	MessageText string `json:"messageText,omitempty"`
}

// Template carries the ordered outputs of a reply.
type Template struct {
	Outputs      []Output     `json:"outputs"`
	QuickReplies []QuickReply `json:"quickReplies"`
}

// MarshalJSON always emits arrays, never null, for outputs and quickReplies.
func (t Template) MarshalJSON() ([]byte, error) {
	type alias Template
	out := alias(t)
	if out.Outputs == nil {
		out.Outputs = []Output{}
	}
	if out.QuickReplies == nil {
		out.QuickReplies = []QuickReply{}
	}
	return json.Marshal(out)
}

// CallbackData is the body of a useCallback acknowledgement.
type CallbackData struct {
	Text string `json:"text"`
}

// Response is the single top-level envelope returned for a skill request.
// It is either a template reply or a callback acknowledgement.
type Response struct {
	Version     string        `json:"version"`
	Template    *Template     `json:"template,omitempty"`
	UseCallback bool          `json:"useCallback,omitempty"`
	Data        *CallbackData `json:"data,omitempty"`
}

// Compose wraps outputs, in order, into a template envelope.
func Compose(outputs ...Output) *Response {
	return &Response{
		Version:  Version,
		Template: &Template{Outputs: outputs, QuickReplies: []QuickReply{}},
	}
}

// Text builds a single simpleText reply.
func Text(text string) *Response {
	return Compose(TextOutput(text))
}

// Image builds a single simpleImage reply.
func Image(imageURL, altText string) *Response {
	return Compose(ImageOutput(imageURL, altText))
}

// Card builds a single basicCard reply.
func Card(title, description, imageURL string) *Response {
	return Compose(CardOutput(title, description, imageURL))
}

// TextOutput builds a simpleText output.
func TextOutput(text string) Output {
	return Output{SimpleText: &SimpleText{Text: text}}
}

// ImageOutput builds a simpleImage output.
func ImageOutput(imageURL, altText string) Output {
	return Output{SimpleImage: &SimpleImage{ImageURL: imageURL, AltText: altText}}
}

// CardOutput builds a basicCard output.
func CardOutput(title, description, imageURL string) Output {
	return Output{BasicCard: &BasicCard{
		Title:       title,
		Description: description,
		Thumbnail:   Thumbnail{ImageURL: imageURL},
	}}
}

// WithQuickReplies appends quick replies to a template response.
func (r *Response) WithQuickReplies(replies ...QuickReply) *Response {
	if r == nil || r.Template == nil {
		return r
	}
	r.Template.QuickReplies = append(r.Template.QuickReplies, replies...)
	return r
}

// Timeover is the placeholder sent when the deadline elapses before the answer is ready.
// Its quick reply re-sends FinishedMarker.
func Timeover() *Response {
	return Text(timeoverText).WithQuickReplies(QuickReply{
		Action:      "message",
		Label:       timeoverLabel,
		MessageText: FinishedMarker,
	})
}

// CallbackAck tells the platform the answer will follow on the callback URL.
func CallbackAck() *Response {
	return &Response{
		Version:     Version,
		UseCallback: true,
		Data:        &CallbackData{Text: thinkingText},
	}
}

// IsPlaceholder reports whether r is a timeover placeholder or callback ack rather than an answer.
func (r *Response) IsPlaceholder() bool {
	if r == nil {
		return false
	}
	if r.UseCallback {
		return true
	}
	return r.Template != nil && len(r.Template.Outputs) == 1 &&
		r.Template.Outputs[0].SimpleText != nil &&
		r.Template.Outputs[0].SimpleText.Text == timeoverText
}

// FirstText returns the text of the first simpleText output, if any.
func (r *Response) FirstText() string {
	if r == nil || r.Template == nil {
		return ""
	}
	for _, out := range r.Template.Outputs {
		if out.SimpleText != nil {
			return out.SimpleText.Text
		}
	}
	return ""
}
