// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

// Package notify emails alert notices to residents and authorities.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/tomtom215/caseledger/internal/config"
)

// ErrInvalidRecipient is returned for addresses net/mail cannot parse.
var ErrInvalidRecipient = errors.New("invalid recipient address")

// Attachment is a file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one email.
type Message struct {
	To         string
	Subject    string
	HTML       string
	Attachment *Attachment
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// SMTPMailer delivers through an SMTP relay. UseTLS selects implicit TLS;
// otherwise STARTTLS is used when the server offers it.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer returns a mailer for cfg.
func NewSMTPMailer(cfg *config.MailConfig) *SMTPMailer {
	c := *cfg
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return &SMTPMailer{cfg: c}
}

// Send implements Mailer.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	if _, err := mail.ParseAddress(msg.To); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	body, err := buildMessage(m.cfg.From, m.cfg.FromName, msg, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	return m.deliver(ctx, msg.To, body)
}

func (m *SMTPMailer) deliver(ctx context.Context, to string, body []byte) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{Timeout: m.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.UseTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12},
		}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // Best effort cleanup

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // Best effort
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // Best effort cleanup

	if !m.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// The message is accepted once Data is closed.
	_ = client.Quit() //nolint:errcheck
	return nil
}

// buildMessage renders headers and body. Messages with an attachment are
// multipart/mixed with the file base64 encoded.
func buildMessage(from, fromName string, msg *Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	sender := (&mail.Address{Name: fromName, Address: from}).String()
	fmt.Fprintf(&buf, "From: %s\r\n", sender)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if msg.Attachment == nil {
		buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		buf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		writeBase64(&buf, []byte(msg.HTML))
		return buf.Bytes(), nil
	}

	var parts bytes.Buffer
	mw := multipart.NewWriter(&parts)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	writeBase64(htmlPart, []byte(msg.HTML))

	contentType := msg.Attachment.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	filePart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": msg.Attachment.Filename})},
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment part: %w", err)
	}
	writeBase64(filePart, msg.Attachment.Data)

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}
	buf.Write(parts.Bytes())
	return buf.Bytes(), nil
}

// writeBase64 writes data base64 encoded in 76 character lines.
func writeBase64(w io.Writer, data []byte) {
	const lineLen = 76
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > lineLen {
		_, _ = w.Write([]byte(enc[:lineLen] + "\r\n")) //nolint:errcheck // in-memory writer
		enc = enc[lineLen:]
	}
	_, _ = w.Write([]byte(enc + "\r\n")) //nolint:errcheck // in-memory writer
}
