package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	To       string
}

type SMTPNotifier struct {
	cfg SMTPConfig
}

func NewSMTP(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg}
}

func (n *SMTPNotifier) Notify(ctx context.Context, event Event) error {
	subject := subjectFor(event)
	body := fmt.Sprintf(
		"business: %s\r\nschedule: %s\r\njob: %s\r\noccurred: %s\r\n\r\n%s\r\n",
		event.BusinessID, event.ScheduleID, event.JobID,
		event.OccurredAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		event.Message,
	)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s", n.cfg.To, subject, body))
	addr := fmt.Sprintf("%s:%s", n.cfg.Host, n.cfg.Port)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}
	return smtp.SendMail(addr, auth, n.cfg.From, strings.Split(n.cfg.To, ","), msg)
}

func subjectFor(event Event) string {
	switch event.Type {
	case EventInsufficientFunds:
		return "Disbursement blocked: insufficient escrow funds"
	case EventRailFailure:
		return "Disbursement failed: payment rail error"
	default:
		return "Disbursement schedule failed"
	}
}
