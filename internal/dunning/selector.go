package dunning

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/logger"
	"greendrake/dunning/internal/models"
	"greendrake/dunning/internal/services"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Selector reads eligible overdue invoices and turns them into candidates.
type Selector struct {
	invoices services.IInvoiceService
	cfg      *config.Config
	clock    Clock
	log      zerolog.Logger
}

// NewSelector creates a Selector. A nil clock means time.Now.
func NewSelector(invoices services.IInvoiceService, cfg *config.Config, clock Clock) *Selector {
	if clock == nil {
		clock = time.Now
	}
	return &Selector{
		invoices: invoices,
		cfg:      cfg,
		clock:    clock,
		log:      logger.Component("selector"),
	}
}

// SelectCandidates returns up to limit candidates, optionally for one org only.
// Read failures are logged and yield an empty list.
func (s *Selector) SelectCandidates(ctx context.Context, orgID string, limit int) []models.Candidate {
	return s.selectAt(ctx, orgID, limit, s.clock())
}

func (s *Selector) selectAt(ctx context.Context, orgID string, limit int, now time.Time) []models.Candidate {
	rows, err := s.invoices.FindOverdue(ctx, orgID, limit, now)
	if err != nil {
		s.log.Error().Err(err).Str("org_id", orgID).Msg("Failed to load overdue invoices, selecting nothing")
		return []models.Candidate{}
	}

	candidates := make([]models.Candidate, 0, len(rows))
	for _, row := range rows {
		if !s.eligible(row, now) {
			s.log.Debug().Str("invoice_id", row.InvoiceID).Msg("Dropping ineligible overdue row")
			continue
		}
		days := row.DaysOverdue
		if days < 0 {
			days = 0
		}
		candidates = append(candidates, models.Candidate{
			InvoiceID:     row.InvoiceID,
			OrgID:         row.OrgID,
			CustomerID:    row.CustomerID,
			CustomerName:  row.CustomerName,
			InvoiceNumber: row.InvoiceNumber,
			TotalCents:    row.TotalCents,
			DueAt:         row.DueAt,
			DaysOverdue:   days,
			WhatsApp:      row.CustomerPhone,
			Email:         row.CustomerEmail,
			Severity:      SeverityFor(days, row.SeverityTag),
			PaymentURL:    row.PaymentURL,
		})
	}
	return candidates
}

// eligible re-checks a read-model row against the dunning rules.
func (s *Selector) eligible(row models.OverdueInvoiceRow, now time.Time) bool {
	if row.PaidAt != nil {
		return false
	}
	switch models.InvoiceStatus(row.Status) {
	case models.InvoiceStatusPaid, models.InvoiceStatusCancelled, models.InvoiceStatusDraft:
		return false
	}
	if row.DunningOptOut {
		return false
	}
	if !row.DueAt.Before(now) {
		return false
	}
	if row.LastReminderAt != nil && now.Sub(*row.LastReminderAt) < s.cfg.DunningMinReminderInterval {
		return false
	}
	if row.ReminderCount >= s.cfg.DunningMaxReminders {
		return false
	}
	if row.NextReminderAt != nil && row.NextReminderAt.After(now) {
		return false
	}
	return true
}
