package sns

import (
	"context"
	"encoding/json"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-auth-api/internal/config"
)

// Account lifecycle events published to the configured topic.
const (
	EventVerified        = "account.verified"
	EventResetRequested  = "account.reset_requested"
	EventPasswordChanged = "account.password_changed"
)

// EventPublisher publishes account lifecycle events. Consumers are external
// (audit, alerting); publishing is always best-effort for the core.
type EventPublisher interface {
	PublishAccountEvent(ctx context.Context, event, accountID string) error
}

type publisher struct {
	client   *sns.Client
	topicARN string
}

func NewPublisher(cfg *config.Config) (EventPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &publisher{client: sns.NewFromConfig(awsCfg), topicARN: cfg.SNSTopicARN}, nil
}

type eventMessage struct {
	Event     string    `json:"event"`
	AccountID string    `json:"account_id"`
	At        time.Time `json:"at"`
}

func (p *publisher) PublishAccountEvent(ctx context.Context, event, accountID string) error {
	body, err := json.Marshal(eventMessage{Event: event, AccountID: accountID, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	msg := string(body)
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &p.topicARN,
		Message:  &msg,
	})
	return err
}
