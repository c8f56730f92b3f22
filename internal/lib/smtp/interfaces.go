// Package smtp отправляет письма через SMTP-сервер с STARTTLS.
package smtp

import "io"

// Client — сеанс SMTP после аутентификации.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает сеанс SMTP. Реализуется Transport.
type Dialer interface {
	Connect() (Client, error)
	GetSMTPUser() string
}
