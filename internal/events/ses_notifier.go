package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailAddressResolver maps a user id to a deliverable address.
type EmailAddressResolver interface {
	EmailForUser(ctx context.Context, userID string) (string, error)
}

// SESNotifier emails affected users when their account standing changes.
// It subscribes to the event bus; trust decisions never wait on it.
type SESNotifier struct {
	sesClient   *ses.Client
	resolver    EmailAddressResolver
	fromAddress string
	logger      *slog.Logger
}

// NewSESNotifier creates an SES-backed notifier.
func NewSESNotifier(region, fromAddress string, resolver EmailAddressResolver, logger *slog.Logger) (*SESNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		resolver:    resolver,
		fromAddress: fromAddress,
		logger:      logger,
	}, nil
}

// Handle sends a notification for account standing transitions and ignores
// everything else.
func (n *SESNotifier) Handle(ctx context.Context, event SecurityEvent) {
	var subject, body string

	switch event.Type {
	case TypeAccountSuspended:
		subject = "Your account has been temporarily suspended"
		body = "Unusual activity was detected on your account and it has been suspended for 24 hours. " +
			"You will be able to sign in again once the suspension ends. " +
			"If you believe this is a mistake, please contact support."
	case TypeAccountBanned:
		subject = "Your account has been suspended permanently"
		body = "Your account has been closed following repeated policy violations detected by our " +
			"automated systems. If you believe this is a mistake, please contact support."
	case TypeAccountUnbanned:
		subject = "Your account has been restored"
		body = "Following a review, your account has been restored and you can sign in again."
	default:
		return
	}

	email, err := n.resolver.EmailForUser(ctx, event.UserID)
	if err != nil {
		n.logger.Error("failed to resolve user email for notification",
			slog.String("user_id", event.UserID),
			slog.Any("error", err))
		return
	}

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body),
				},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send notification via SES",
			slog.String("event_type", event.Type),
			slog.String("user_id", event.UserID),
			slog.Any("error", err))
		return
	}

	n.logger.Info("account notification sent",
		slog.String("event_type", event.Type),
		slog.String("user_id", event.UserID),
		slog.String("message_id", *result.MessageId))
}
