package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"classbook"
)

// SMTPNotifier mails the outcome as plain text.
type SMTPNotifier struct {
	Host string
	Port int
	From string
	To   []string

	// Username and Password turn on PLAIN auth when the username is set.
	Username string
	Password string
}

func (n *SMTPNotifier) Notify(_ context.Context, res *classbook.RunResult) error {
	addr := fmt.Sprintf("%s:%d", n.Host, n.Port)

	var auth smtp.Auth
	if n.Username != "" {
		auth = smtp.PlainAuth("", n.Username, n.Password, n.Host)
	}

	if err := smtp.SendMail(addr, auth, n.From, n.To, n.message(res)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

// message renders the full payload. Relay hosts want CRLF line endings and
// an explicit charset.
func (n *SMTPNotifier) message(res *classbook.RunResult) []byte {
	headers := []string{
		"From: " + n.From,
		"To: " + strings.Join(n.To, ", "),
		"Subject: " + Subject(res),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}

	body := strings.Join([]string{
		Summary(res),
		"",
		"Stage reached: " + string(res.Stage),
		"Elapsed: " + res.Elapsed().Round(time.Millisecond).String(),
		"Run id: " + res.ID.String(),
	}, "\r\n")

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body + "\r\n")
}
