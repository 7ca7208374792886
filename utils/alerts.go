package utils

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

// AlertMailer emails reconciliation anomalies to an operator. Every anomaly
// is also written to the error log, so a missing SMTP configuration degrades
// to log-only alerting rather than dropping the signal.
type AlertMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	to       string
}

func NewAlertMailer(host string, port int, username, password, from, to string) *AlertMailer {
	return &AlertMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
	}
}

// NotifyAnomaly reports a reconciliation anomaly. The email is sent in the
// background so the reconciliation path never blocks on SMTP.
func (m *AlertMailer) NotifyAnomaly(subject, detail string) {
	LogError("Reconciliation anomaly: %s - %s", subject, detail)

	if m == nil || m.host == "" || m.to == "" {
		return
	}

	go func() {
		msg := gomail.NewMessage()
		msg.SetHeader("From", m.from)
		msg.SetHeader("To", m.to)
		msg.SetHeader("Subject", "[BookNest] Payment reconciliation: "+subject)
		msg.SetBody("text/plain", fmt.Sprintf("%s\n\nReported at: %s\n", detail, time.Now().Format(time.RFC3339)))

		dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
		if err := dialer.DialAndSend(msg); err != nil {
			LogError("Failed to send anomaly alert %q: %v", subject, err)
		}
	}()
}
