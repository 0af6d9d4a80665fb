package logging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/mkoziy/harvester/internal/config"
)

// SMTPNotifier mails alerts through a relay.
type SMTPNotifier struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewNotifier returns an SMTP notifier for cfg, or NopNotifier when no mail
// host or recipient is configured.
func NewNotifier(cfg config.Mail) Notifier {
	if cfg.Host == "" || len(cfg.To) == 0 {
		return NopNotifier{}
	}
	n := &SMTPNotifier{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from: cfg.From,
		to:   cfg.To,
		send: smtp.SendMail,
	}
	if cfg.Username != "" {
		n.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return n
}

func (n *SMTPNotifier) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.from == "" {
		return errors.New("mail from address is empty")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		n.from, strings.Join(n.to, ", "), subject, strings.ReplaceAll(body, "\n", "\r\n"))
	return n.send(n.addr, n.auth, n.from, n.to, []byte(msg))
}
