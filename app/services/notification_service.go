// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"crypto/tls"
	"fmt"
	"log"
	"strings"

	"gopkg.in/gomail.v2"
)

// NotificationService sends outbound account emails
type NotificationService interface {
	SendEmail(email, subject, text, html string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, text, html string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
	}
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(email, subject, text, html string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(email, subject, text, html)
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, text, html string) error {
	log.Printf("Email sent to %s [%s]: %s", email, subject, text)
	return nil
}

// SMTPEmailProvider delivers mail through an SMTP relay
type SMTPEmailProvider struct {
	dialer    *gomail.Dialer
	fromEmail string
}

// NewSMTPEmailProvider builds a provider. secure selects implicit TLS (port 465);
// otherwise STARTTLS is used when the server offers it.
func NewSMTPEmailProvider(host string, port int, secure bool, username, password, fromEmail string) EmailProvider {
	d := gomail.NewDialer(host, port, username, password)
	d.SSL = secure
	d.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}

	return &SMTPEmailProvider{
		dialer:    d,
		fromEmail: fromEmail,
	}
}

func (p *SMTPEmailProvider) SendEmail(email, subject, text, html string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", p.fromEmail)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	if html != "" {
		m.AddAlternative("text/html", html)
	}

	if err := p.dialer.DialAndSend(m); err != nil {
		log.Printf("Email send failed to %s: %v", email, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("Email sent to %s [%s]", email, subject)
	return nil
}
