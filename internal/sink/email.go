package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"ccranking/internal/components/assert"
	"ccranking/internal/ranking"

	"github.com/jordan-wright/email"
)

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
}

// Email mails the batch as a csv attachment.
type Email struct {
	smtp   SmtpConfig
	to     []string
	prefix string
	// send is swapped out in tests.
	send func(mail *email.Email, addr string, auth smtp.Auth) error
}

func NewEmail(cfg SmtpConfig, to []string, prefix string) Email {
	assert.NotEmptyStr(cfg.Server)
	assert.NotEmptyStr(cfg.EmailAddress)
	assert.NotEmptyStr(prefix)
	return Email{
		smtp:   cfg,
		to:     to,
		prefix: prefix,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

func (s Email) Name() string {
	return "email"
}

func (s Email) compose(batch ranking.Batch, run RunInfo) (*email.Email, error) {
	var buff bytes.Buffer
	err := EncodeCSV(&buff, batch)
	if err != nil {
		return nil, err
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Crystalline Conflict Rankings <%s>", s.smtp.EmailAddress)
	mail.To = s.to
	mail.Subject = fmt.Sprintf("Rankings for %s", run.Time.Format("2006-01-02"))
	mail.Text = []byte(fmt.Sprintf(`%d players were recorded in run %s at %s.

The full table is attached.`, batch.Len(), run.ID, run.Time.Format("15:04 MST")))

	_, err = mail.Attach(&buff, FileName(s.prefix, run.Time, "csv"), "text/csv")
	if err != nil {
		return nil, fmt.Errorf("attach csv: %w", err)
	}
	return mail, nil
}

func (s Email) Write(ctx context.Context, batch ranking.Batch, run RunInfo) (string, error) {
	if len(s.to) == 0 {
		return "", fmt.Errorf("send email: no recipients")
	}
	mail, err := s.compose(batch, run)
	if err != nil {
		return "", err
	}

	addr := fmt.Sprintf("%s:%d", s.smtp.Server, s.smtp.Port)
	err = s.send(mail, addr, smtp.PlainAuth("", s.smtp.EmailAddress, s.smtp.Password, s.smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = s.send(mail, addr, nil)
	}
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	return strings.Join(s.to, ", "), nil
}
