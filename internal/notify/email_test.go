package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossterm/marketbot/pkg/logging"
)

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSendGrid struct {
	message *mail.SGMailV3
	status  int
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.message = email
	return &rest.Response{StatusCode: f.status}, nil
}

func TestNewEmailSenderSelection(t *testing.T) {
	ses := &fakeSES{}

	assert.Nil(t, NewEmailSender(Config{}, nil, nil))
	assert.Nil(t, NewEmailSender(Config{SendGridAPIKey: "k"}, nil, nil))

	sg := NewEmailSender(Config{SendGridAPIKey: "k", FromEmail: "a@example.com", SESFromEmail: "b@example.com"}, ses, nil)
	assert.IsType(t, &SendGridSender{}, sg)

	viaSES := NewEmailSender(Config{SESFromEmail: "b@example.com"}, ses, nil)
	require.IsType(t, &SESSender{}, viaSES)
	assert.Equal(t, "Market Bot <b@example.com>", viaSES.(*SESSender).from)
}

func TestSESSenderSend(t *testing.T) {
	ses := &fakeSES{}
	sender := &SESSender{client: ses, from: "Bot <bot@example.com>", logger: logging.Default()}

	err := sender.Send(context.Background(), EmailMessage{To: "me@example.com", Subject: "리포트", Body: "a < b\nline"})
	require.NoError(t, err)
	require.NotNil(t, ses.input)
	assert.Equal(t, []string{"me@example.com"}, ses.input.Destination.ToAddresses)
	assert.Equal(t, "리포트", aws.ToString(ses.input.Content.Simple.Subject.Data))
	assert.Equal(t, "a < b\nline", aws.ToString(ses.input.Content.Simple.Body.Text.Data))
	assert.Contains(t, aws.ToString(ses.input.Content.Simple.Body.Html.Data), "a &lt; b<br>")
}

func TestSESSenderError(t *testing.T) {
	sender := &SESSender{client: &fakeSES{err: errors.New("throttled")}, logger: logging.Default()}
	err := sender.Send(context.Background(), EmailMessage{To: "me@example.com"})
	require.ErrorContains(t, err, "throttled")
}

func TestSendGridSenderStatus(t *testing.T) {
	fake := &fakeSendGrid{status: 202}
	sender := &SendGridSender{client: fake, from: mail.NewEmail("Bot", "bot@example.com"), logger: logging.Default()}

	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "me@example.com", Subject: "s", Body: "b"}))
	require.NotNil(t, fake.message)
	assert.Equal(t, "s", fake.message.Subject)

	fake.status = 401
	require.Error(t, sender.Send(context.Background(), EmailMessage{To: "me@example.com"}))
}

func TestSendRequiresRecipient(t *testing.T) {
	sender := &SESSender{client: &fakeSES{}, logger: logging.Default()}
	require.Error(t, sender.Send(context.Background(), EmailMessage{}))
}
