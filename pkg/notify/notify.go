package notify

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

const sendTimeout = 30 * time.Second

// LogNotifier writes the summary to the process log. It is used when no mail
// transport is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(subject, body string) error {
	log.Printf("%s\n%s\n", subject, body)
	return nil
}

type SMTPNotifier struct {
	Server   string
	Port     int
	User     string
	Password string
	// From defaults to User.
	From string
	// To is a comma separated recipient list.
	To string
}

// Notify sends a plain text mail, upgrading to TLS when the server offers
// STARTTLS and authenticating when a user is configured.
func (n *SMTPNotifier) Notify(subject, body string) error {
	msg, err := n.message(subject, body)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(n.Server, n.clientOptions()...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err = client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", client.ServerAddr(), err)
	}
	return nil
}

func (n *SMTPNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(n.Port),
		mail.WithTimeout(sendTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	if n.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.User),
			mail.WithPassword(n.Password),
		)
	}
	return opts
}

func (n *SMTPNotifier) message(subject, body string) (*mail.Msg, error) {
	recipients := n.recipients()
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipient configured")
	}

	from := n.From
	if from == "" {
		from = n.User
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", from, err)
	}
	if err := msg.To(recipients...); err != nil {
		return nil, fmt.Errorf("recipients %q: %w", n.To, err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func (n *SMTPNotifier) recipients() []string {
	var recipients []string
	for _, to := range strings.Split(n.To, ",") {
		if to = strings.TrimSpace(to); to != "" {
			recipients = append(recipients, to)
		}
	}
	return recipients
}
