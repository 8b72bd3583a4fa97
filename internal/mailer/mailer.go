// Package mailer renders dashboard emails and hands them to a delivery
// backend: SendGrid when an API key is configured, the log otherwise.
package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/iliyamo/balance-dashboard/internal/logging"
)

// Message is a rendered email.
type Message struct {
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// SendGrid delivers through the SendGrid v3 API.
type SendGrid struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	api        func(*sendgridRequest) (int, string, error)
}

type sendgridRequest struct {
	key  string
	body []byte
}

var _ Sender = (*SendGrid)(nil)

func NewSendGrid(key, from, appName string) *SendGrid {
	return &SendGrid{
		key:        key,
		from:       sgmail.NewEmail(appName, from),
		subjPrefix: "[" + appName + "] ",
		api:        callSendGrid,
	}
}

func callSendGrid(r *sendgridRequest) (int, string, error) {
	req := sendgrid.GetRequest(r.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = r.body
	res, err := sendgrid.API(req)
	if err != nil {
		return 0, "", err
	}
	return res.StatusCode, res.Body, nil
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.Name, msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (s *SendGrid) Send(_ context.Context, msg Message) error {
	code, body, err := s.api(&sendgridRequest{key: s.key, body: sgmail.GetRequestBody(s.prepare(msg))})
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if code >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", code, body)
	}
	return nil
}

// Console writes messages to the log instead of sending them.
type Console struct {
	log logging.Logger
}

func NewConsole(log logging.Logger) *Console { return &Console{log: log} }

func (c *Console) Send(ctx context.Context, msg Message) error {
	c.log.Info(ctx, "email (console delivery)", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

// New picks SendGrid when key is set and Console otherwise.
func New(key, from, appName string, log logging.Logger) Sender {
	if key == "" {
		return NewConsole(log)
	}
	return NewSendGrid(key, from, appName)
}
