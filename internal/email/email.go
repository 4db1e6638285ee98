package email

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"

	"cyberchat/internal/config"
)

// Sender delivers verification mail over SMTP. With no host configured the
// message is logged instead of sent, which keeps local development working
// without a mail account.
type Sender struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	}
}

const verificationTemplate = `
<!DOCTYPE html>
<html>
<body>
    <h1>Welcome to CyberChat!</h1>
    <p>Your verification code is: <strong>{{.Code}}</strong></p>
    <p>This code will expire in 10 minutes.</p>
</body>
</html>
`

// SendVerificationCode mails the code to the address. Failures propagate so
// registration can report the delivery problem.
func (s *Sender) SendVerificationCode(to, code string) error {
	t, err := template.New("verification").Parse(verificationTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	var body bytes.Buffer
	if err := t.Execute(&body, map[string]string{"Code": code}); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	subject := "Verify your CyberChat account"
	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.From, to, subject, body.String())

	if s.Host == "" {
		log.Printf("mock email to %s: %s", to, subject)
		log.Printf("verification code for %s: %s", to, code)
		return nil
	}

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%s", s.Host, s.Port)
	if err := smtp.SendMail(addr, auth, s.From, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
