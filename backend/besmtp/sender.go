package besmtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

type Credential struct {
	ServerHost   string `yaml:"serverHost" validate:"required"`
	ServerPort   int    `yaml:"serverPort" validate:"required"`
	AuthIdentity string `yaml:"authIdentity" validate:"-"` //  Authorization identity may be left blank to indicate that it is the same as the username.
	Username     string `yaml:"username" validate:"required"`
	Password     string `yaml:"password" validate:"required"`

	// From is the envelope and header sender, default to Username.
	From string `yaml:"from" validate:"omitempty,simplemail"`

	// ImplicitTLS dial using TLS from the start (port 465), otherwise STARTTLS is used when offered.
	ImplicitTLS bool `yaml:"implicitTLS"`
}

type Config struct {
	Credential *Credential `validate:"required"`
}

// BE is the SMTP transport. The connection is lazily made on first Send and reused.
type BE struct {
	conf *Config
	smtp *smtp.Client
	lock sync.Mutex
}

var _ backend.Sender = (*BE)(nil)

// NewBE will return new smtp client without any real connection is made.
func NewBE(conf *Config) (*BE, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("smtp backend validation error: %w", err)
		return nil, err
	}

	return &BE{
		conf: conf,
	}, nil
}

// Identity on SMTP is the configured account, credential are checked on first send.
func (b *BE) Identity(_ context.Context) (identity backend.Identity, err error) {
	email := strings.TrimSpace(b.conf.Credential.From)
	if email == "" {
		email = strings.TrimSpace(b.conf.Credential.Username)
	}

	if !validator.IsEmail(email) {
		err = fmt.Errorf("%w: smtp sender '%s' is not an email address", backend.ErrNoIdentity, email)
		return
	}

	identity = backend.Identity{Email: email}
	return
}

func (b *BE) Send(ctx context.Context, msg *backend.Message) (report *backend.Report, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "besmtp.Send")
	defer span.End()

	err = validator.Validate(msg)
	if err != nil {
		err = fmt.Errorf("smtp message malformed: %w", err)
		return
	}

	raw, err := backend.DecodeRaw(msg.Raw)
	if err != nil {
		return
	}

	identity, err := b.Identity(ctx)
	if err != nil {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	if b.smtp == nil {
		b.smtp, err = initClient(ctx, b.conf.Credential)
		if err != nil {
			err = fmt.Errorf("failed to init smtp client: %w", err)
			return
		}
	}

	err = sendEmail(b.smtp, identity.Email, msg.To, raw)
	if err != nil {
		// drop broken connection, the next Send will dial again
		if _err := b.closeClient(); _err != nil {
			err = multierr.Append(err, _err)
		}

		return
	}

	report = &backend.Report{
		ReferenceID: msg.ReferenceID,
		SentAt:      time.Now().UTC(),
	}
	return
}

// Close .
// https://stackoverflow.com/questions/2468851/when-should-i-send-quit-to-smtp-server-and-how-long-should-i-keep-a-session
func (b *BE) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.closeClient()
}

func (b *BE) closeClient() error {
	if b.smtp == nil {
		return nil
	}

	c := b.smtp
	b.smtp = nil

	_err := c.Quit()
	if _err == nil {
		return nil
	}

	var err error
	err = multierr.Append(err, fmt.Errorf("quit command error: %w", _err))
	if _err = c.Close(); _err != nil {
		err = multierr.Append(err, fmt.Errorf("close command error: %w", _err))
	}

	return err
}

// ----- Function here is intended to have simple function (not as method handler in a struct),
// because it will be easier to debug and test.

func sendEmail(c *smtp.Client, from, to string, raw []byte) (err error) {
	// NOOP command to check if connection still ok
	err = c.Noop()
	if err != nil {
		err = fmt.Errorf("smtp connection is not ok: %w", err)
		return
	}

	// RSET command is for aborting already started mail transaction (tools.ietf.org/html/rfc5321#section-4.1.1.5).
	err = c.Reset()
	if err != nil {
		err = fmt.Errorf("RSET cmd failed: %w", err)
		return
	}

	err = c.Mail(from, nil)
	if err != nil {
		err = fmt.Errorf("MAIL cmd failed: %w", err)
		return
	}

	err = c.Rcpt(to)
	if err != nil {
		err = fmt.Errorf("error recipient %s: %w", to, err)
		return
	}

	var wc io.WriteCloser
	wc, err = c.Data()
	if err != nil {
		err = fmt.Errorf("error data writer: %w", err)
		return
	}

	_, err = io.Copy(wc, bytes.NewReader(raw))
	if err != nil {
		err = multierr.Append(fmt.Errorf("error data copy: %w", err), wc.Close())
		return
	}

	err = wc.Close()
	if err != nil {
		err = fmt.Errorf("error data close: %w", err)
		return
	}

	return
}

func initClient(ctx context.Context, cred *Credential) (*smtp.Client, error) {
	smtpAddr := net.JoinHostPort(cred.ServerHost, fmt.Sprint(cred.ServerPort))
	tlsConfig := &tls.Config{ServerName: cred.ServerHost}

	var (
		conn net.Conn
		err  error
	)

	if cred.ImplicitTLS {
		dialer := &tls.Dialer{Config: tlsConfig}
		conn, err = dialer.DialContext(ctx, "tcp", smtpAddr)
	} else {
		dialer := net.Dialer{}
		conn, err = dialer.DialContext(ctx, "tcp", smtpAddr)
	}

	if err != nil {
		err = fmt.Errorf("tcp dial error: %w", err)
		return nil, err
	}

	c, err := smtp.NewClient(conn, cred.ServerHost)
	if err != nil {
		err = multierr.Append(fmt.Errorf("error new smtp client: %w", err), conn.Close())
		return nil, err
	}

	if ok, _ := c.Extension("STARTTLS"); ok && !cred.ImplicitTLS {
		err = c.StartTLS(tlsConfig)
		if err != nil {
			err = multierr.Append(fmt.Errorf("error start tls: %w", err), c.Close())
			return nil, err
		}
	}

	err = c.Auth(sasl.NewPlainClient(cred.AuthIdentity, cred.Username, cred.Password))
	if err != nil {
		err = multierr.Append(fmt.Errorf("error auth: %w", err), c.Close())
		return nil, err
	}

	return c, nil
}
