// Package mailer is the minimal mail transport the auth/OTP workflow
// dispatches through. No third-party mail library appears anywhere in
// the retrieval pack, so this wraps net/smtp directly (see DESIGN.md).
package mailer

import (
	"fmt"
	"net/smtp"
	"os"
)

type Mailer struct {
	host, port, from, user, pass string
}

func New() *Mailer {
	return &Mailer{
		host: os.Getenv("SMTP_HOST"),
		port: os.Getenv("SMTP_PORT"),
		from: os.Getenv("SMTP_FROM"),
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASSWORD"),
	}
}

// SendOTP dispatches the six-digit reset code to email. When SMTP_HOST is
// unset the send is a deliberate no-op (local/dev mode) rather than an
// error, mirroring the teacher's pattern of tolerating unset optional env
// vars at startup.
func (m *Mailer) SendOTP(to string, otp int) error {
	if m.host == "" {
		return nil
	}
	addr := fmt.Sprintf("%s:%s", m.host, m.port)
	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your password reset code\r\n\r\nYour code is %06d. It expires in 10 minutes.\r\n", m.from, to, otp)
	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(body))
}
