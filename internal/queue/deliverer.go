package queue

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SMTPDeliverer sends mail through an SMTP relay with PLAIN auth when a
// user is configured.
type SMTPDeliverer struct {
	Host        string
	Port        int
	User        string
	Pass        string
	DefaultFrom string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPDeliverer(host string, port int, user, pass, from string) *SMTPDeliverer {
	return &SMTPDeliverer{Host: host, Port: port, User: user, Pass: pass, DefaultFrom: from, send: smtp.SendMail}
}

func (s *SMTPDeliverer) Deliver(ctx context.Context, m EmailMessage) error {
	from := m.From
	if from == "" {
		from = s.DefaultFrom
	}
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	// smtp.SendMail takes no context; run it aside so cancellation still
	// returns promptly.
	done := make(chan error, 1)
	go func() { done <- s.send(addr, auth, from, []string{m.To}, buildMIME(from, m)) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func buildMIME(from string, m EmailMessage) []byte {
	date := m.CreatedAt
	if date.IsZero() {
		date = time.Now().UTC()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(m.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	if m.ID != "" {
		fmt.Fprintf(&b, "Message-ID: <%s@credit-repair-platform>\r\n", m.ID)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(m.HTML)
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogDeliverer writes messages to the log instead of sending them. It is
// used when no SMTP host is configured.
type LogDeliverer struct{ Log *zap.Logger }

func (l LogDeliverer) Deliver(_ context.Context, m EmailMessage) error {
	l.Log.Info("email (not sent, SMTP disabled)",
		zap.String("id", m.ID), zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}
