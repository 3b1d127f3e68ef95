// internal/notify/email.go
package notify

import (
	"context"
	"fmt"

	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// EmailNotifier mails a lead summary to the operations inbox via SES.
type EmailNotifier struct {
	client sesAPI
	from   string
	to     string
	logger logger.Logger
}

func NewEmailNotifier(client sesAPI, from, to string, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		client: client,
		from:   from,
		to:     to,
		logger: log.WithFields(map[string]interface{}{"component": "email-notifier"}),
	}
}

func (n *EmailNotifier) NotifyClosing(ctx context.Context, lead *models.Lead) error {
	subject := fmt.Sprintf("New priority lead: %s (%s)", lead.Contact.Name, lead.Description())

	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(n.from),
		Destination: &types.Destination{
			ToAddresses: []string{n.to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(summarize(lead))},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send lead email: %w", err)
	}

	n.logger.Info("lead email sent", map[string]interface{}{
		"leadId": lead.ID,
		"to":     n.to,
	})
	return nil
}
