package dunning

import (
	"context"
	"errors"
	"time"

	"github.com/stretchr/testify/mock"

	"greendrake/dunning/internal/channels"
	"greendrake/dunning/internal/messages"
	"greendrake/dunning/internal/models"
	"greendrake/dunning/internal/services"
)

// fakeInvoices is an in-memory read model. It returns every row for the org so
// the selector's own eligibility checks are exercised.
type fakeInvoices struct {
	rows            []*models.OverdueInvoiceRow
	findErr         error
	failBookkeeping bool
	rescheduled     map[string]time.Time
	sentCalls       int
}

func newFakeInvoices(rows ...models.OverdueInvoiceRow) *fakeInvoices {
	f := &fakeInvoices{rescheduled: make(map[string]time.Time)}
	for i := range rows {
		row := rows[i]
		f.rows = append(f.rows, &row)
	}
	return f
}

func (f *fakeInvoices) FindOverdue(ctx context.Context, orgID string, limit int, now time.Time) ([]models.OverdueInvoiceRow, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.OverdueInvoiceRow
	for _, r := range f.rows {
		if orgID != "" && r.OrgID != orgID {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeInvoices) row(id string) *models.OverdueInvoiceRow {
	for _, r := range f.rows {
		if r.InvoiceID == id {
			return r
		}
	}
	return nil
}

func (f *fakeInvoices) RecordReminderSent(ctx context.Context, invoiceID string, sentAt, nextAt time.Time) error {
	f.sentCalls++
	if f.failBookkeeping {
		return errors.New("write conflict")
	}
	r := f.row(invoiceID)
	if r == nil {
		return services.ErrInvoiceNotFound
	}
	r.LastReminderAt = &sentAt
	r.NextReminderAt = &nextAt
	r.ReminderCount++
	return nil
}

func (f *fakeInvoices) RescheduleReminder(ctx context.Context, invoiceID string, nextAt time.Time) error {
	f.rescheduled[invoiceID] = nextAt
	if r := f.row(invoiceID); r != nil {
		r.NextReminderAt = &nextAt
	}
	return nil
}

type fakeOrgs struct {
	infos map[string]models.OrgContactInfo
	err   error
}

func (f *fakeOrgs) GetContactInfo(ctx context.Context, orgIDs []string) (map[string]models.OrgContactInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.OrgContactInfo)
	for _, id := range orgIDs {
		if info, ok := f.infos[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

// memoryIdempotency is an insert-if-absent key set.
type memoryIdempotency struct {
	keys      map[string]bool
	existsErr error
	// raceOnMark simulates another run writing the key between send and mark.
	raceOnMark bool
	checks     int
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool)}
}

func (m *memoryIdempotency) Exists(ctx context.Context, key string) (bool, error) {
	m.checks++
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.keys[key], nil
}

func (m *memoryIdempotency) MarkProcessed(ctx context.Context, key string) error {
	if m.raceOnMark || m.keys[key] {
		m.keys[key] = true
		return services.ErrAlreadyProcessed
	}
	m.keys[key] = true
	return nil
}

type memoryAudit struct {
	events []models.DunningEvent
}

func (m *memoryAudit) Record(ctx context.Context, event *models.DunningEvent) error {
	event.GenIDIfEmpty()
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryAudit) ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]models.DunningEvent, error) {
	var out []models.DunningEvent
	for _, e := range m.events {
		if e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryAudit) byResult(result models.AuditResult) []models.DunningEvent {
	var out []models.DunningEvent
	for _, e := range m.events {
		if e.Result == result {
			out = append(out, e)
		}
	}
	return out
}

// MockSender is a mock implementation of channels.Sender.
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, recipient string, msg messages.ReminderData) channels.Result {
	args := m.Called(ctx, recipient, msg)
	return args.Get(0).(channels.Result)
}

type fakeLock struct {
	held     bool
	released bool
}

func (l *fakeLock) Acquire(ctx context.Context) (func(), error) {
	if l.held {
		return nil, services.ErrRunInProgress
	}
	l.held = true
	return func() { l.held = false; l.released = true }, nil
}
