package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

// Email kinds.
const (
	KindVerificationCode = "verification_code"
	KindPasswordReset    = "password_reset"
	KindWelcome          = "welcome"
	KindSupportResponse  = "support_response"
)

type tmpl struct {
	subject string
	text    *template.Template
	html    *htmltemplate.Template
}

func mustTmpl(kind, subject, text, html string) tmpl {
	return tmpl{
		subject: subject,
		text:    template.Must(template.New(kind).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(kind).Parse(html)),
	}
}

var templates = map[string]tmpl{
	KindVerificationCode: mustTmpl(KindVerificationCode,
		"Your verification code",
		"Hello {{.Name}},\n\nYour verification code is {{.Data.code}}. It expires in {{.Data.ttl}} minutes.\n",
		`<p>Hello {{.Name}},</p><p>Your verification code is <strong>{{.Data.code}}</strong>. It expires in {{.Data.ttl}} minutes.</p>`),
	KindPasswordReset: mustTmpl(KindPasswordReset,
		"Password reset code",
		"Hello {{.Name}},\n\nUse {{.Data.code}} to reset your password. It expires in {{.Data.ttl}} minutes.\nIf you did not ask for this, ignore this email.\n",
		`<p>Hello {{.Name}},</p><p>Use <strong>{{.Data.code}}</strong> to reset your password. It expires in {{.Data.ttl}} minutes.</p><p>If you did not ask for this, ignore this email.</p>`),
	KindWelcome: mustTmpl(KindWelcome,
		"Welcome",
		"Hello {{.Name}},\n\nYour dashboard account {{.Data.username}} is ready.\n",
		`<p>Hello {{.Name}},</p><p>Your dashboard account <strong>{{.Data.username}}</strong> is ready.</p>`),
	KindSupportResponse: mustTmpl(KindSupportResponse,
		"New reply to your support request",
		"Hello {{.Name}},\n\nThere is a new reply to \"{{.Data.subject}}\" ({{.Data.reference}}):\n\n{{.Data.message}}\n",
		`<p>Hello {{.Name}},</p><p>There is a new reply to "{{.Data.subject}}" ({{.Data.reference}}):</p><blockquote>{{.Data.message}}</blockquote>`),
}

// Render builds the message of the given kind for one recipient.
func Render(kind, to, name string, data map[string]string) (Message, error) {
	t, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("unknown email kind %q", kind)
	}
	if name == "" {
		name = to
	}
	vars := struct {
		Name string
		Data map[string]string
	}{name, data}

	var text, html bytes.Buffer
	if err := t.text.Execute(&text, vars); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", kind, err)
	}
	if err := t.html.Execute(&html, vars); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", kind, err)
	}
	return Message{To: to, Name: name, Subject: t.subject, Text: text.String(), HTML: html.String()}, nil
}
