package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/auto-trigger/internal/lib/smtp"
	"github.com/magabrotheeeer/auto-trigger/internal/models"
)

// Mailer обрабатывает очередь auth.confirmation.
type Mailer struct {
	transport smtp.Dialer
	log       *slog.Logger
}

// NewMailer создает Mailer.
func NewMailer(transport smtp.Dialer, log *slog.Logger) *Mailer {
	return &Mailer{
		transport: transport,
		log:       log,
	}
}

// HandleConfirmation отправляет письмо со ссылкой подтверждения регистрации.
func (m *Mailer) HandleConfirmation(_ context.Context, body []byte) error {
	const op = "dispatch.HandleConfirmation"

	var c models.Confirmation
	if err := json.Unmarshal(body, &c); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	name := c.Name
	if name == "" {
		name = c.Email
	}
	text := fmt.Sprintf("Olá, %s!\n\nConfirme seu email para acessar o Auto Trigger:\n%s\n\n"+
		"Se você não criou uma conta, ignore esta mensagem.", name, c.Link)

	if err := m.send(c.Email, "Confirme seu cadastro no Auto Trigger", text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m.log.Info("confirmation email sent", slog.String("op", op), slog.String("to", c.Email))
	return nil
}

func (m *Mailer) send(to, subject, text string) error {
	from := m.transport.GetSMTPUser()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		text,
	}, "\r\n")

	client, err := m.transport.Connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}
	return client.Quit()
}
