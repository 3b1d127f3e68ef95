// internal/notify/sms.go
package notify

import (
	"context"
	"fmt"

	"kaya-concierge/internal/common/logger"
	"kaya-concierge/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type snsAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SMSNotifier pings the on-duty agent's phone via SNS.
type SMSNotifier struct {
	client      snsAPI
	phoneNumber string
	logger      logger.Logger
}

func NewSMSNotifier(client snsAPI, phoneNumber string, log logger.Logger) *SMSNotifier {
	return &SMSNotifier{
		client:      client,
		phoneNumber: phoneNumber,
		logger:      log.WithFields(map[string]interface{}{"component": "sms-notifier"}),
	}
}

func (n *SMSNotifier) NotifyClosing(ctx context.Context, lead *models.Lead) error {
	message := fmt.Sprintf("KAYA lead #%d: %s, %s, %s", lead.ID, lead.Contact.Name, lead.Contact.Mobile, lead.Description())

	_, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.phoneNumber),
		Message:     aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("send lead sms: %w", err)
	}

	n.logger.Info("lead sms sent", map[string]interface{}{
		"leadId": lead.ID,
	})
	return nil
}
