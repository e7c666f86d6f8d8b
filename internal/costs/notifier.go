package costs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/geoschem-cloud/simulation-workflow/internal/awsclient"
)

// Notifier publishes budget alerts to the notification topic.
type Notifier struct {
	sns      awsclient.SNSAPI
	topicARN string
}

func NewNotifier(api awsclient.SNSAPI, topicARN string) *Notifier {
	return &Notifier{sns: api, topicARN: topicARN}
}

// BudgetAlert publishes one alert for a breached budget.
func (n *Notifier) BudgetAlert(ctx context.Context, b Budget, spend float64) error {
	pct := spend / b.Amount * 100
	subject := fmt.Sprintf("Budget alert: %s at %.0f%%", b.Name, pct)
	message := fmt.Sprintf(
		"Budget %q for user %s has reached $%.2f of its $%.2f limit (%.1f%%, alert threshold %.0f%%).",
		b.Name, b.UserID, spend, b.Amount, pct, b.AlertThreshold,
	)

	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: &n.topicARN,
		Subject:  &subject,
		Message:  &message,
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"userId": {
				DataType:    strPtr("String"),
				StringValue: &b.UserID,
			},
			"budgetId": {
				DataType:    strPtr("String"),
				StringValue: &b.BudgetID,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish budget alert: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
