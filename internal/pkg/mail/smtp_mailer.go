package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/gigfolio/gigfolio/internal/pkg/env"
)

// SendMail sends an email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// verificationLink builds the confirmation URL for an email token. The
// fallback base matches the server's default listen port.
func verificationLink(token string) string {
	baseURL := env.GetEnv("PUBLIC_BASE_URL", "http://localhost:4000")
	return fmt.Sprintf("%s/api/v1/connections/verify-email?token=%s", baseURL, token)
}

// SendVerificationMail sends the email-variant verification link for a
// pending platform connection.
func SendVerificationMail(to string, platformName string, token string) error {
	link := verificationLink(token)

	subject := fmt.Sprintf("Confirm your %s connection", platformName)
	body := fmt.Sprintf(
		"<p>You asked to connect your %s account.</p>"+
			"<p>Please confirm that this email address belongs to you:</p>"+
			"<p><a href=\"%s\">Confirm email address</a></p>"+
			"<p>If you did not request this, you can ignore this message.</p>",
		platformName, link,
	)

	return SendMail(to, subject, body)
}
