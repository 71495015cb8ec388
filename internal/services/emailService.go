package services

import (
	"bytes"
	"context"
	"html/template"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"studynotes/internal/apperr"
	"studynotes/internal/config"
	"studynotes/internal/models"
)

// Mailer delivers a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

type smtpMailer struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg config.EmailConfig) Mailer {
	from := cfg.From
	if from == "" {
		from = cfg.SMTPUsername
	}
	return &smtpMailer{
		from:   from,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

func (e *smtpMailer) Send(ctx context.Context, to, subject, html string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", html)

	return e.dialer.DialAndSend(m)
}

// Notifier sends OTP codes to users.
type Notifier interface {
	SendOTPEmail(ctx context.Context, email, code string, purpose models.OTPPurpose) error
}

var otpEmailTemplate = template.Must(template.New("otp").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #3b82f6;">{{.Subject}}</h2>
  <p>Your OTP code is:</p>
  <div style="font-size: 32px; font-weight: bold; color: #3b82f6; letter-spacing: 8px; margin: 20px 0;">
    {{.Code}}
  </div>
  <p>This code will expire in {{.Minutes}} minutes.</p>
  <p>If you didn't request this, please ignore this email.</p>
</div>
`))

type emailNotifier struct {
	mailer Mailer
	otpCfg config.OTPConfig
}

func NewEmailNotifier(mailer Mailer, otpCfg config.OTPConfig) Notifier {
	return &emailNotifier{mailer: mailer, otpCfg: otpCfg}
}

func otpSubject(purpose models.OTPPurpose) string {
	if purpose == models.OTPPurposeRegister {
		return "Verify Your Email - OTP Code"
	}
	return "Password Reset OTP"
}

func (n *emailNotifier) SendOTPEmail(ctx context.Context, email, code string, purpose models.OTPPurpose) error {
	subject := otpSubject(purpose)

	var body bytes.Buffer
	err := otpEmailTemplate.Execute(&body, struct {
		Subject string
		Code    string
		Minutes int
	}{subject, code, int(n.otpCfg.TTL.Minutes())})
	if err != nil {
		log.Error().Err(err).Msg("Failed to render OTP email")
		return apperr.ErrDeliveryFailed.With(err)
	}

	if err := n.mailer.Send(ctx, email, subject, body.String()); err != nil {
		log.Error().Err(err).Str("email", email).Str("purpose", string(purpose)).Msg("Failed to send OTP email")
		return apperr.ErrDeliveryFailed.With(err)
	}

	log.Info().Str("email", email).Str("purpose", string(purpose)).Msg("OTP email sent")
	return nil
}
