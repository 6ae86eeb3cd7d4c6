package mailer

import (
	"fmt"
	"net/smtp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Template ids for transactional mail. Bodies live with the mail
// provider; we only address templates and hand over a payload.
const (
	TemplateUploadLater = "request-upload-later"
)

var templateSubjects = map[string]string{
	TemplateUploadLater: "Your moving request: add photos when you're ready",
}

// Mailer dispatches a templated message. Implementations are
// fire-and-forget: callers log failures and move on.
type Mailer interface {
	Send(templateID, recipient string, payload map[string]string) error
}

// SMTPMailer sends templated mail over plain SMTP with AUTH.
type SMTPMailer struct {
	host     string
	port     uint
	username string
	password string
	from     string
	logger   *logrus.Logger
}

func NewSMTPMailer(host string, port uint, username, password, from string, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		logger:   logger,
	}
}

func (m *SMTPMailer) Send(templateID, recipient string, payload map[string]string) error {
	subject, ok := templateSubjects[templateID]
	if !ok {
		return fmt.Errorf("unknown mail template %q", templateID)
	}

	var body strings.Builder
	body.WriteString(fmt.Sprintf("Template: %s\r\n", templateID))

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		body.WriteString(fmt.Sprintf("%s: %s\r\n", k, payload[k]))
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, recipient, subject, body.String())

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)

	if err := smtp.SendMail(addr, auth, m.from, []string{recipient}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send %s mail to %s: %w", templateID, recipient, err)
	}

	m.logger.WithFields(logrus.Fields{
		"template":  templateID,
		"recipient": recipient,
	}).Info("transactional mail sent")

	return nil
}
