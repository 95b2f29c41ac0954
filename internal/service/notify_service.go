package service

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"wordwatch/internal/logger"
)

// sesAPI is the part of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// NotificationService emails the experimenter when a participant finishes,
// with the bonus payment owed, via Amazon SES
type NotificationService struct {
	client    sesAPI
	fromEmail string
	fromName  string
	toEmail   string
	enabled   bool
	log       *logger.Logger
}

// NewNotificationService creates the notifier. It is disabled when either
// address is missing.
func NewNotificationService(ctx context.Context, log *logger.Logger, awsRegion, fromEmail, fromName, toEmail string) (*NotificationService, error) {
	log = log.With("service", "NotificationService")
	if fromEmail == "" || toEmail == "" {
		log.Info("completion emails disabled: SES_FROM_EMAIL or NOTIFY_EMAIL not configured")
		return &NotificationService{log: log}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("completion emails enabled", "region", awsRegion)
	return newNotificationService(sesv2.NewFromConfig(cfg), log, fromEmail, fromName, toEmail), nil
}

func newNotificationService(client sesAPI, log *logger.Logger, fromEmail, fromName, toEmail string) *NotificationService {
	return &NotificationService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   toEmail,
		enabled:   true,
		log:       log,
	}
}

// IsEnabled returns whether emails are sent
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

// NotifyCompletion reports a finished session
func (s *NotificationService) NotifyCompletion(ctx context.Context, sessionID string, reward, payment float64) error {
	if !s.enabled {
		s.log.Debug("skipping completion email", "session", sessionID)
		return nil
	}

	subject, htmlBody, textBody := completionEmail(sessionID, reward, payment)
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send completion email for %s: %w", sessionID, err)
	}
	if result != nil && result.MessageId != nil {
		s.log.Debug("completion email sent", "session", sessionID, "message_id", *result.MessageId)
	}
	return nil
}

func completionEmail(sessionID string, reward, payment float64) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("Word Watch session %s completed", sessionID)
	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>Session completed</h2>
	<table>
		<tr><td>Session</td><td>%s</td></tr>
		<tr><td>Points</td><td>%.1f</td></tr>
		<tr><td>Bonus owed</td><td>$%.2f</td></tr>
	</table>
</body>
</html>
`, html.EscapeString(sessionID), reward, payment)
	textBody = fmt.Sprintf("Session %s completed.\n\nPoints: %.1f\nBonus owed: $%.2f\n", sessionID, reward, payment)
	return subject, htmlBody, textBody
}
