// Package smtp implements the smtp job: render the run report as plain text
// and mail it.
package smtp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nestbackup/nestbackup/internal/models"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// Service defines the interface for the smtp report job.
type Service interface {
	Send(ctx context.Context, spec models.JobSpec, report *models.Report) error
}

// Mailer allows mocking mail delivery in tests.
type Mailer interface {
	Send(ctx context.Context, settings models.SMTPSettings, subject, body string) error
}

// Impl implements the smtp Service.
type Impl struct {
	mailer Mailer
	logger zerolog.Logger
}

// New creates a new smtp service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{mailer: &goMailer{}, logger: logger}
}

// NewWithMailer creates an smtp service with a custom mailer (for testing).
func NewWithMailer(logger zerolog.Logger, mailer Mailer) *Impl {
	return &Impl{mailer: mailer, logger: logger}
}

// Send renders the report and mails it. The report is always sent, even when
// no job produced anything noteworthy: silence from a backup system is
// indistinguishable from a dead one.
func (s *Impl) Send(ctx context.Context, spec models.JobSpec, report *models.Report) error {
	settings := spec.SMTP
	subject := s.subject(settings, report)
	body := Render(report)

	s.logger.Info().
		Str("section", spec.Name).
		Str("server", settings.Server).
		Strs("recipients", settings.Recipients).
		Msg("sending report email")

	if err := s.mailer.Send(ctx, *settings, subject, body); err != nil {
		return fmt.Errorf("sending report email: %w", err)
	}

	s.logger.Info().Msg("report email sent")
	return nil
}

func (s *Impl) subject(settings *models.SMTPSettings, report *models.Report) string {
	outcome := "Success"
	if report.Failed() {
		outcome = "Error"
	}
	return fmt.Sprintf("%s: %s", settings.Subject, outcome)
}

// Render produces the plain-text report body: one block per job with its
// summary lines, and the last captured error for failed jobs.
func Render(report *models.Report) string {
	var b strings.Builder

	outcome := "Success"
	if report.Failed() {
		outcome = "Error"
	}
	fmt.Fprintf(&b, "Backup report for %s: %s\n", report.Hostname, outcome)
	fmt.Fprintf(&b, "%s\n", report.StartTime.Format(time.RFC1123))

	for _, result := range report.Results {
		status := "ok"
		if !result.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "\n[%s] %s: %s\n", result.Section, result.Kind, status)
		for _, line := range result.Lines {
			fmt.Fprintf(&b, "  %s\n", line)
		}
		if !result.Success {
			fmt.Fprintf(&b, "  error: %s\n", result.LastError())
		}
	}

	return b.String()
}

// goMailer delivers mail over SMTP using go-mail.
type goMailer struct{}

func (g *goMailer) Send(ctx context.Context, settings models.SMTPSettings, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(settings.Sender); err != nil {
		return fmt.Errorf("invalid sender %q: %w", settings.Sender, err)
	}
	if err := msg.To(settings.Recipients...); err != nil {
		return fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(settings.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(settings.Username),
		mail.WithPassword(settings.Password),
	}
	if settings.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(settings.Server, opts...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", settings.Server, err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}
