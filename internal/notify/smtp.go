package notify

import (
	"fmt"
	"net/smtp"
)

type Sender interface {
	Send(to, name, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Pass     string
	From     string
	FromName string
}

type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(to, name, subject, body string) error {
	msg := s.message(to, name, subject, body)

	var auth smtp.Auth
	if s.cfg.User != "" && s.cfg.Pass != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}

	return smtp.SendMail(s.cfg.Host+":"+s.cfg.Port, auth, s.cfg.From, []string{to}, msg)
}

func (s *SMTPSender) message(to, name, subject, body string) []byte {
	msg := fmt.Sprintf("From: %s <%s>\r\n", s.cfg.FromName, s.cfg.From)
	if name != "" {
		msg += fmt.Sprintf("To: %s <%s>\r\n", name, to)
	} else {
		msg += fmt.Sprintf("To: %s\r\n", to)
	}
	msg += fmt.Sprintf("Subject: %s\r\n", subject)
	msg += "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n"
	msg += "\r\n" + body
	return []byte(msg)
}
