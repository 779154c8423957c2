package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// SQSAPI is the subset of the SQS client used by the publishers.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// WishMessage is the body handed to the delivery queue.
type WishMessage struct {
	WishID       string `json:"wish_id"`
	SenderID     string `json:"sender_id,omitempty"`
	RecipientID  string `json:"recipient_id"`
	Kind         string `json:"kind"`
	TextContent  string `json:"text_content,omitempty"`
	CardTemplate string `json:"card_template,omitempty"`
	MediaRef     string `json:"media_ref,omitempty"`
}

// QueueNotifier hands wishes to an external delivery service through SQS.
// For FIFO queues the wish id is the deduplication id, so a redelivered
// dispatch within the dedup window does not produce a second message.
type QueueNotifier struct {
	client   SQSAPI
	queueURL string
	log      *logger.Logger
}

// NewQueueNotifier returns a notifier publishing to queueURL.
func NewQueueNotifier(client SQSAPI, queueURL string) *QueueNotifier {
	return &QueueNotifier{client: client, queueURL: queueURL, log: logger.With("component", "sqs-notifier")}
}

// Send publishes the wish. Anonymous wishes carry no sender id.
func (q *QueueNotifier) Send(ctx context.Context, w *domain.Wish) error {
	msg := WishMessage{
		WishID:       w.ID,
		RecipientID:  w.RecipientID,
		Kind:         string(w.Kind),
		TextContent:  w.TextContent,
		CardTemplate: w.CardTemplate,
		MediaRef:     w.MediaRef,
	}
	if !w.IsAnonymous {
		msg.SenderID = w.SenderID
	}
	id, err := publish(ctx, q.client, q.queueURL, msg, w.ID, map[string]string{"kind": string(w.Kind)})
	if err != nil {
		return err
	}
	q.log.Info("wish handed off", "wish_id", w.ID, "message_id", id)
	return nil
}

// IntentPublisher publishes notification intents to SQS.
type IntentPublisher struct {
	client   SQSAPI
	queueURL string
}

// NewIntentPublisher returns a publisher for queueURL.
func NewIntentPublisher(client SQSAPI, queueURL string) *IntentPublisher {
	return &IntentPublisher{client: client, queueURL: queueURL}
}

// Publish sends the intent. The dedup id is the intent's natural key.
func (p *IntentPublisher) Publish(ctx context.Context, in domain.Intent) error {
	key := fmt.Sprintf("%s:%s:%s", in.Kind, in.ProfileID, in.OccursOn)
	_, err := publish(ctx, p.client, p.queueURL, in, key, map[string]string{"kind": string(in.Kind)})
	return err
}

func publish(ctx context.Context, client SQSAPI, queueURL string, body any, dedupID string, attrs map[string]string) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", domain.Permanent(fmt.Errorf("marshal message: %w", err))
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(string(data)),
		MessageAttributes: make(map[string]types.MessageAttributeValue, len(attrs)),
	}
	for k, v := range attrs {
		input.MessageAttributes[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	if strings.HasSuffix(queueURL, ".fifo") {
		input.MessageGroupId = aws.String(dedupID)
		input.MessageDeduplicationId = aws.String(dedupID)
	}

	out, err := client.SendMessage(ctx, input)
	if err != nil {
		return "", Classify(fmt.Errorf("sqs send: %w", err))
	}
	return aws.ToString(out.MessageId), nil
}
