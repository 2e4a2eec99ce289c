/*
Package mail sends workflow notifications over SMTP.

PURPOSE:
  Implements vacation.Mailer. Notification delivery is best effort: the
  engine treats a failed send as a warning attached to the operation
  result, never as a transaction error, so Send reports failures inside
  the Delivery value instead of an error return.

SEE ALSO:
  - vacation/notify.go: message composition
  - vacation/engine.go: where deliveries become warnings
*/
package mail

import (
	"context"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/warp/vacation-engine/vacation"
)

// SMTP sends messages through a single SMTP relay.
type SMTP struct {
	client *gomail.Client
	from   string
	log    *zap.Logger
}

// Options configures the relay connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewSMTP builds a mailer for the given relay. Credentials are optional;
// without them the client connects unauthenticated.
func NewSMTP(opts Options, log *zap.Logger) (*SMTP, error) {
	if log == nil {
		log = zap.NewNop()
	}

	clientOpts := []gomail.Option{
		gomail.WithPort(opts.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(opts.Username),
			gomail.WithPassword(opts.Password),
		)
	}

	client, err := gomail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, err
	}
	return &SMTP{client: client, from: opts.From, log: log}, nil
}

// Send delivers msg. Failures are logged and reported in the Delivery;
// Send itself never surfaces an error to the caller.
func (s *SMTP) Send(ctx context.Context, msg vacation.Message) vacation.Delivery {
	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return s.failed(msg, err)
	}
	if err := m.To(msg.To); err != nil {
		return s.failed(msg, err)
	}
	if len(msg.CC) > 0 {
		if err := m.Cc(msg.CC...); err != nil {
			return s.failed(msg, err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return s.failed(msg, err)
	}

	s.log.Debug("mail sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return vacation.Delivery{Delivered: true}
}

func (s *SMTP) failed(msg vacation.Message, err error) vacation.Delivery {
	s.log.Warn("mail delivery failed",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Error(err))
	return vacation.Delivery{Err: err}
}
