// Package mailer はパスワードリセットコードなどのメール送信を提供します。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"social_backend/internal/feature/auth/usecase"
)

const (
	EnvKeySMTPHost     = "SMTP_HOST"
	EnvKeySMTPPort     = "SMTP_PORT"
	EnvKeySMTPUsername = "SMTP_USERNAME"
	EnvKeySMTPPassword = "SMTP_PASSWORD"
	EnvKeyMailFrom     = "MAIL_FROM"

	defaultSMTPPort = 587
	defaultFrom     = "no-reply@localhost"

	// DefaultTimeout は SMTP セッション全体（接続から送信完了まで）の上限です。
	DefaultTimeout = 10 * time.Second
)

// Config は SMTP 接続設定を保持します。
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Timeout が 0 以下の場合は DefaultTimeout を使います。
	Timeout time.Duration
}

// LoadConfigFromEnv は SMTP_* と MAIL_FROM を読み込みます。
func LoadConfigFromEnv() Config {
	cfg := Config{
		Host:     os.Getenv(EnvKeySMTPHost),
		Port:     defaultSMTPPort,
		Username: os.Getenv(EnvKeySMTPUsername),
		Password: os.Getenv(EnvKeySMTPPassword),
		From:     os.Getenv(EnvKeyMailFrom),
	}
	if v := os.Getenv(EnvKeySMTPPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		} else {
			slog.Warn("invalid SMTP_PORT, using default", "value", v, "default", defaultSMTPPort)
		}
	}
	if cfg.From == "" {
		cfg.From = defaultFrom
	}
	return cfg
}

// Enabled は SMTP ホストが設定されているかを返します。
func (c Config) Enabled() bool {
	return c.Host != ""
}

// sendFunc は組み立て済みのメッセージを配送します（テストで差し替え）。
type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPSender は SMTP サーバー経由でメールを送信します。
type SMTPSender struct {
	cfg  Config
	send sendFunc
}

var _ usecase.EmailSender = (*SMTPSender)(nil)

// NewSMTPSender は SMTPSender を生成します。
func NewSMTPSender(cfg Config) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	s := &SMTPSender{cfg: cfg}
	s.send = s.dialAndSend
	return s
}

// Send はメールを1通送信します。
func (s *SMTPSender) Send(ctx context.Context, email usecase.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(email.Recipient, "\r\n") {
		return fmt.Errorf("invalid recipient %q", email.Recipient)
	}

	msg, err := s.newMessage(email)
	if err != nil {
		return err
	}
	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", email.Recipient, err)
	}
	return nil
}

func (s *SMTPSender) newMessage(email usecase.Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := msg.To(email.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", email.Recipient, err)
	}
	msg.Subject(sanitizeHeader(email.Subject))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, email.Body)
	return msg, nil
}

func (s *SMTPSender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(dialWithDeadline),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// dialWithDeadline は ctx の期限を接続のI/O期限にも設定します。
// 挨拶を返さないサーバーでもリクエストが期限内に失敗します。
func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// LogSender はメールを送信せずにログへ出力します（開発用）。
type LogSender struct{}

var _ usecase.EmailSender = LogSender{}

// Send はメール内容を slog に出力します。
func (LogSender) Send(_ context.Context, email usecase.Email) error {
	slog.Info("email (log sender)",
		"email", email.Recipient,
		"subject", email.Subject,
		"body", email.Body,
	)
	return nil
}
