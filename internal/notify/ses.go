package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/osteele/liquid"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
	"github.com/akashvim3/Birthday-Wishes-System/internal/pkg/logger"
)

// SESAPI is the subset of the SES v2 client the notifier uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// ProfileGetter resolves a user id to a profile.
type ProfileGetter interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

// Default Liquid templates for wish emails.
const (
	DefaultSubjectTemplate = `{{ sender }} sent you a birthday wish`
	DefaultHTMLTemplate    = `<p>Happy birthday, {{ recipient | escape }}!</p>
{% if text != "" %}<p>{{ text | escape }}</p>{% endif %}
{% if media %}<p>{{ sender | escape }} recorded a {{ kind }} message for you.</p>{% endif %}
<p>From {{ sender | escape }}</p>`
	DefaultTextTemplate = `Happy birthday, {{ recipient }}!

{{ text }}
{% if media %}{{ sender }} recorded a {{ kind }} message for you.
{% endif %}
From {{ sender }}`
)

// EmailConfig configures the SES notifier.
type EmailConfig struct {
	FromEmail        string
	FromName         string
	ConfigurationSet string
	SubjectTemplate  string
	HTMLTemplate     string
	TextTemplate     string
}

// EmailNotifier delivers wishes as SES emails rendered from Liquid
// templates.
type EmailNotifier struct {
	client   SESAPI
	profiles ProfileGetter
	cfg      EmailConfig

	subject *liquid.Template
	html    *liquid.Template
	text    *liquid.Template
	log     *logger.Logger
}

// NewEmailNotifier parses the templates and returns the notifier.
func NewEmailNotifier(client SESAPI, profiles ProfileGetter, cfg EmailConfig) (*EmailNotifier, error) {
	if cfg.FromEmail == "" {
		return nil, domain.Validationf("ses: from email is required")
	}
	if cfg.SubjectTemplate == "" {
		cfg.SubjectTemplate = DefaultSubjectTemplate
	}
	if cfg.HTMLTemplate == "" {
		cfg.HTMLTemplate = DefaultHTMLTemplate
	}
	if cfg.TextTemplate == "" {
		cfg.TextTemplate = DefaultTextTemplate
	}

	engine := liquid.NewEngine()
	n := &EmailNotifier{client: client, profiles: profiles, cfg: cfg, log: logger.With("component", "ses-notifier")}
	for _, t := range []struct {
		name string
		src  string
		dst  **liquid.Template
	}{
		{"subject", cfg.SubjectTemplate, &n.subject},
		{"html", cfg.HTMLTemplate, &n.html},
		{"text", cfg.TextTemplate, &n.text},
	} {
		tpl, err := engine.ParseString(t.src)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", t.name, err)
		}
		*t.dst = tpl
	}
	return n, nil
}

// Send emails the wish to its recipient.
func (n *EmailNotifier) Send(ctx context.Context, w *domain.Wish) error {
	recipient, err := n.profiles.Get(ctx, w.RecipientID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Permanent(err)
	}
	if err != nil {
		return domain.Transport(err)
	}
	if recipient.Email == "" {
		return domain.Permanent(fmt.Errorf("recipient %s has no email address", w.RecipientID))
	}

	senderName, err := n.senderName(ctx, w)
	if err != nil {
		return domain.Transport(err)
	}

	bindings := liquid.Bindings{
		"recipient": recipient.Name(),
		"sender":    senderName,
		"text":      w.TextContent,
		"kind":      string(w.Kind),
		"card":      w.CardTemplate,
		"media":     w.HasMedia(),
	}
	subject, err := n.render(n.subject, bindings)
	if err != nil {
		return domain.Permanent(err)
	}
	html, err := n.render(n.html, bindings)
	if err != nil {
		return domain.Permanent(err)
	}
	text, err := n.render(n.text, bindings)
	if err != nil {
		return domain.Permanent(err)
	}

	from := n.cfg.FromEmail
	if n.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", n.cfg.FromName, n.cfg.FromEmail)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{recipient.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(html), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("wish_id"), Value: aws.String(w.ID)},
			{Name: aws.String("kind"), Value: aws.String(string(w.Kind))},
		},
	}
	if n.cfg.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(n.cfg.ConfigurationSet)
	}

	out, err := n.client.SendEmail(ctx, input)
	if err != nil {
		err = Classify(err)
		n.log.Warn("send failed", "wish_id", w.ID, "email", recipient.Email,
			"permanent", errors.Is(err, domain.ErrPermanent), "error", err)
		return err
	}
	n.log.Info("wish emailed", "wish_id", w.ID, "email", recipient.Email, "message_id", aws.ToString(out.MessageId))
	return nil
}

func (n *EmailNotifier) senderName(ctx context.Context, w *domain.Wish) (string, error) {
	if w.IsAnonymous {
		return "Someone", nil
	}
	sender, err := n.profiles.Get(ctx, w.SenderID)
	if errors.Is(err, domain.ErrNotFound) {
		return "A friend", nil
	}
	if err != nil {
		return "", err
	}
	return sender.Name(), nil
}

func (n *EmailNotifier) render(tpl *liquid.Template, b liquid.Bindings) (string, error) {
	out, err := tpl.RenderString(b)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}
