package imap

import (
	"fmt"
	"net/smtp"

	"github.com/jhillyerd/enmime"

	"courierval/internal/config"
)

func newSMTPSender(cfg config.Config) enmime.Sender {
	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return enmime.NewSMTP(addr, auth)
}
