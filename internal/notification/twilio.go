package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the slice of the Twilio REST API used for SMS.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends notifications as SMS through Twilio.
type TwilioNotifier struct {
	api      messageCreator
	from     string
	fallback *LoggerNotifier
}

// NewTwilioNotifier builds an SMS notifier. Without a sender number messages
// are logged instead of sent.
func NewTwilioNotifier(accountSID, authToken, from string, logger *slog.Logger) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{api: client.Api, from: from, fallback: NewLoggerNotifier(logger)}
}

// Send implements Notifier.
func (n *TwilioNotifier) Send(ctx context.Context, message Message) error {
	if n.from == "" {
		return n.fallback.Send(ctx, message)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(message.Destination)
	params.SetFrom(n.from)
	params.SetBody(message.Body)

	if _, err := n.api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}
