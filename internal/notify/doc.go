// Package notify holds the outbound delivery adapters: an SES email
// notifier, an SQS hand-off notifier, and the intent sink that records
// birthday intents and publishes them for downstream consumers.
//
// Every adapter classifies failures with Classify so the dispatcher can
// tell a permanently bad recipient (no retry) from a transport hiccup.
package notify
