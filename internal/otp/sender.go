package otp

import (
	"fmt"
	"log"
	"net/smtp"
)

// Sender delivers transactional mail to the user.
type Sender interface {
	Send(email, purpose, code string) error
	SendWelcome(email string) error
}

// SMTPSender mails codes through a plain SMTP relay.
type SMTPSender struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (s *SMTPSender) Send(email, purpose, code string) error {
	subject := subjectFor(purpose)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\nYour verification code is %s. It expires in 5 minutes.\r\n",
		s.From, email, subject, code)

	addr := s.Host + ":" + s.Port
	var a smtp.Auth
	if s.User != "" {
		a = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	if err := smtp.SendMail(addr, a, s.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendWelcome(email string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Welcome to FoodBook\r\n\r\nYour restaurant is ready. Set up your menu and share your shop link to start taking orders.\r\n",
		s.From, email)

	addr := s.Host + ":" + s.Port
	var a smtp.Auth
	if s.User != "" {
		a = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	if err := smtp.SendMail(addr, a, s.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func subjectFor(purpose string) string {
	switch purpose {
	case "signup":
		return "Welcome to FoodBook - verify your email"
	case "delete_account":
		return "Confirm account deletion"
	case "security":
		return "Security verification code"
	default:
		return "Your FoodBook login code"
	}
}

// LogSender writes codes to the server log instead of mailing them, for
// local development without an SMTP relay.
type LogSender struct{}

func (LogSender) Send(email, purpose, code string) error {
	log.Printf("otp for %s (%s): %s", email, purpose, code)
	return nil
}

func (LogSender) SendWelcome(email string) error {
	log.Printf("welcome mail for %s", email)
	return nil
}
