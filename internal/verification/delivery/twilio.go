package delivery

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	memberModels "unionvote/internal/member/models"
	"unionvote/internal/verification/models"
)

// MessageCreator is the subset of the Twilio messages API used here.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMSSender delivers codes through Twilio.
type SMSSender struct {
	api  MessageCreator
	from string
}

func NewSMSSender(accountSID, authToken, from string) *SMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return NewSMSSenderWithAPI(client.Api, from)
}

func NewSMSSenderWithAPI(api MessageCreator, from string) *SMSSender {
	return &SMSSender{api: api, from: from}
}

func (s *SMSSender) Deliver(ctx context.Context, contact memberModels.Contact, code string, purpose models.Purpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(contact.Address)
	params.SetFrom(s.from)
	params.SetBody(messageBody(code, purpose))

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms via twilio: %w", err)
	}
	if msg != nil && msg.ErrorCode != nil {
		return fmt.Errorf("%w: twilio error code %d", ErrDeliveryFailed, *msg.ErrorCode)
	}
	return nil
}
