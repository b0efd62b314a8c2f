// Package notify sends best-effort start and exit mails around a mirror
// run. Nothing here may fail the run: send errors are logged and dropped.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/MGXlab/cirtap/config"
	"github.com/MGXlab/cirtap/logger"
	"github.com/MGXlab/cirtap/model"
)

// Notifier announces run boundaries to whoever is configured to care.
type Notifier interface {
	RunStarted(dbDir string, targets int)
	RunFinished(outcome *model.RunOutcome)
}

// Create returns an SMTP notifier when recipients are configured and a
// no-op otherwise.
func Create(cfg *config.NotifyConfig, log logger.Logger) Notifier {
	if !cfg.Enabled() {
		return NewNoOp()
	}
	return NewMailer(cfg, log)
}

// Mailer sends notifications over plain SMTP, matching what a cron-driven
// mirror host typically has available.
type Mailer struct {
	cfg  *config.NotifyConfig
	log  logger.Logger
	send func(addr, from string, to []string, msg []byte) error
}

// NewMailer creates an SMTP-backed notifier.
func NewMailer(cfg *config.NotifyConfig, log logger.Logger) *Mailer {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Mailer{
		cfg: cfg,
		log: log,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

func (m *Mailer) RunStarted(dbDir string, targets int) {
	body := fmt.Sprintf("Mirror run started at %s.\n\nDestination: %s\nDirectories to check: %d\n",
		time.Now().Format(time.RFC1123), dbDir, targets)
	m.deliver("mirror run started", body)
}

func (m *Mailer) RunFinished(outcome *model.RunOutcome) {
	var b strings.Builder
	fmt.Fprintf(&b, "Mirror run finished at %s.\n\n%s\n", time.Now().Format(time.RFC1123), outcome)
	if outcome.HasFailures() {
		fmt.Fprintf(&b, "\nFailed directories:\n")
		for _, id := range outcome.SortedFailedIDs() {
			fmt.Fprintf(&b, "  %s\n", id)
		}
	}
	subject := "mirror run succeeded"
	if outcome.HasFailures() {
		subject = fmt.Sprintf("mirror run finished with %d failure(s)", outcome.Failed)
	}
	m.deliver(subject, b.String())
}

func (m *Mailer) deliver(subject, body string) {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: [cirtap] %s\r\n\r\n%s",
		m.cfg.From, strings.Join(m.cfg.Recipients, ", "), subject, body)
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)

	if err := m.send(addr, m.cfg.From, m.cfg.Recipients, []byte(msg)); err != nil {
		m.log.Warn("failed to send notification mail: %v", err)
	}
}

// NoOpNotifier drops all notifications.
type NoOpNotifier struct{}

// NewNoOp creates a notifier that does nothing.
func NewNoOp() Notifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) RunStarted(dbDir string, targets int)  {}
func (n *NoOpNotifier) RunFinished(outcome *model.RunOutcome) {}
