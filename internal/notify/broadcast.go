// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/caseledger/internal/alertstore"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/metrics"
	"github.com/tomtom215/caseledger/internal/models"
)

// DefaultSubject is used when a notice has no subject.
const DefaultSubject = "Alert: Important Notification"

// Notice is what gets sent to every recipient of one audience.
type Notice struct {
	Subject    string
	Message    string
	Location   string
	Date       string
	Attachment *Attachment
}

// Result is the outcome for one recipient.
type Result struct {
	Email string `json:"email"`
	Error string `json:"error,omitempty"`
}

// Report summarizes a broadcast.
type Report struct {
	Audience models.RecipientKind `json:"audience"`
	Sent     int                  `json:"sent"`
	Failed   int                  `json:"failed"`
	Results  []Result             `json:"results"`
}

// Broadcaster mails a notice to every recipient of a kind, one at a time
// under a shared rate limit.
type Broadcaster struct {
	dir     alertstore.Directory
	mailer  Mailer
	tmpl    *Template
	limiter *rate.Limiter
	sender  string
}

// NewBroadcaster returns a broadcaster. perSecond <= 0 disables the limit.
func NewBroadcaster(dir alertstore.Directory, mailer Mailer, tmpl *Template, perSecond float64, sender string) *Broadcaster {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if tmpl == nil {
		tmpl = DefaultTemplate()
	}
	return &Broadcaster{
		dir:     dir,
		mailer:  mailer,
		tmpl:    tmpl,
		limiter: rate.NewLimiter(limit, 1),
		sender:  sender,
	}
}

// Broadcast sends n to every recipient of kind. Individual delivery
// failures are reported in the Report; the error is only set when the
// recipient list cannot be read or ctx ends.
func (b *Broadcaster) Broadcast(ctx context.Context, kind models.RecipientKind, n Notice) (*Report, error) {
	recipients, err := b.dir.ListRecipients(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s recipients: %w", kind, err)
	}

	if n.Subject == "" {
		n.Subject = DefaultSubject
	}
	if n.Message == "" {
		n.Message = fmt.Sprintf("This is an important alert message sent to all %ss.", kind)
	}
	if n.Date == "" {
		n.Date = time.Now().UTC().Format("2006-01-02 15:04:05 MST")
	}

	report := &Report{Audience: kind, Results: make([]Result, 0, len(recipients))}
	for _, r := range recipients {
		if err := b.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("broadcast interrupted after %d messages: %w", report.Sent+report.Failed, err)
		}

		body := b.tmpl.Render(map[string]string{
			"title":    n.Subject,
			"name":     r.Name,
			"message":  n.Message,
			"location": n.Location,
			"date":     n.Date,
			"sender":   b.sender,
		})
		err := b.mailer.Send(ctx, &Message{To: r.Email, Subject: n.Subject, HTML: body, Attachment: n.Attachment})
		metrics.RecordMailDelivery(string(kind), err)

		res := Result{Email: r.Email}
		if err != nil {
			res.Error = err.Error()
			report.Failed++
			logging.Ctx(ctx).Warn().Err(err).
				Str("audience", string(kind)).
				Str("to", logging.MaskEmail(r.Email)).
				Msg("Alert email failed")
		} else {
			report.Sent++
		}
		report.Results = append(report.Results, res)
	}

	logging.Ctx(ctx).Info().
		Str("audience", string(kind)).
		Int("sent", report.Sent).
		Int("failed", report.Failed).
		Bool("attachment", n.Attachment != nil).
		Msg("Alert broadcast finished")
	return report, nil
}
