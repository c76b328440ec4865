// Package dunning selects overdue invoices and dispatches payment reminders:
// daily cap, send window, WhatsApp with email fallback, per-day dedupe, invoice
// bookkeeping and an audit row for every outcome.
package dunning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"greendrake/dunning/internal/channels"
	"greendrake/dunning/internal/config"
	"greendrake/dunning/internal/logger"
	"greendrake/dunning/internal/messages"
	"greendrake/dunning/internal/metrics"
	"greendrake/dunning/internal/models"
	"greendrake/dunning/internal/services"
	"greendrake/dunning/internal/utils"
)

const errNoReachableChannel = "no reachable channel"

// RunOptions are the per-invocation knobs. BatchSize <= 0 uses DUNNING_BATCH_SIZE.
type RunOptions struct {
	OrgID     string `json:"org_id,omitempty"`
	BatchSize int    `json:"batch_size,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

// Deps are the collaborators of an Engine. RunLock is optional.
type Deps struct {
	Invoices    services.IInvoiceService
	Orgs        services.IOrgService
	Idempotency services.IIdempotencyStore
	Audit       services.IAuditService
	RunLock     services.IRunLock
	WhatsApp    channels.Sender
	Email       channels.Sender
	Clock       Clock
}

// Engine runs dunning passes. It holds no per-run state, so one Engine can
// serve the scheduler and the service API.
type Engine struct {
	cfg         *config.Config
	selector    *Selector
	invoices    services.IInvoiceService
	orgs        services.IOrgService
	idempotency services.IIdempotencyStore
	audit       services.IAuditService
	runLock     services.IRunLock
	whatsapp    channels.Sender
	email       channels.Sender
	clock       Clock
	log         zerolog.Logger
}

// NewEngine creates an Engine.
func NewEngine(cfg *config.Config, deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		cfg:         cfg,
		selector:    NewSelector(deps.Invoices, cfg, clock),
		invoices:    deps.Invoices,
		orgs:        deps.Orgs,
		idempotency: deps.Idempotency,
		audit:       deps.Audit,
		runLock:     deps.RunLock,
		whatsapp:    deps.WhatsApp,
		email:       deps.Email,
		clock:       clock,
		log:         logger.Component("dunning"),
	}
}

// run is the state of one pass.
type run struct {
	id        string
	now       time.Time
	dryRun    bool
	sentToday int
	result    *RunResult
	log       zerolog.Logger
}

// Run executes one dunning pass. Failures are reported in the result, never as
// an error.
func (e *Engine) Run(ctx context.Context, opts RunOptions) RunResult {
	now := e.clock()
	if e.cfg.DunningLocation != nil {
		now = now.In(e.cfg.DunningLocation)
	}
	runID := uuid.NewString()
	result := newRunResult(runID, opts.DryRun, now)
	r := &run{
		id:     runID,
		now:    now,
		dryRun: opts.DryRun,
		result: &result,
		log:    e.log.With().Str("run_id", runID).Bool("dry_run", opts.DryRun).Logger(),
	}

	if e.runLock != nil {
		release, err := e.runLock.Acquire(ctx)
		switch {
		case errors.Is(err, services.ErrRunInProgress):
			r.log.Warn().Msg("Another dunning run holds the lock, skipping")
			result.Errors = append(result.Errors, services.ErrRunInProgress.Error())
			result.FinishedAt = e.clock()
			return result
		case err != nil:
			r.log.Warn().Err(err).Msg("Run lock unavailable, continuing without it")
		default:
			defer release()
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = e.cfg.DunningBatchSize
	}

	candidates := e.selector.selectAt(ctx, opts.OrgID, batchSize, now)
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		r.log.Info().Str("org_id", opts.OrgID).Msg("No dunning candidates")
		return e.finish(r)
	}

	orgs := e.loadOrgs(ctx, r, candidates)
	for _, c := range candidates {
		e.process(ctx, r, c, orgs[c.OrgID])
	}
	return e.finish(r)
}

func (e *Engine) finish(r *run) RunResult {
	r.result.FinishedAt = e.clock()
	metrics.RunsTotal.Inc()
	r.log.Info().
		Int("candidates", r.result.Candidates).
		Int("sent", r.result.Sent).
		Int("skipped", r.result.Skipped).
		Int("failed", r.result.Failed).
		Msg("Dunning run finished")
	return *r.result
}

func (e *Engine) loadOrgs(ctx context.Context, r *run, candidates []models.Candidate) map[string]models.OrgContactInfo {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range candidates {
		if !seen[c.OrgID] {
			seen[c.OrgID] = true
			ids = append(ids, c.OrgID)
		}
	}

	infos, err := e.orgs.GetContactInfo(ctx, ids)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to load org contact info, using defaults")
	}
	if infos == nil {
		infos = make(map[string]models.OrgContactInfo, len(ids))
	}
	for _, id := range ids {
		if _, ok := infos[id]; !ok {
			infos[id] = models.OrgContactInfo{ID: id, Name: e.cfg.DunningDefaultBusinessName}
		}
	}
	return infos
}

// attempt is the outcome of trying one channel.
type attempt struct {
	channel   models.Channel
	template  string
	sent      bool
	duplicate bool
	abort     bool // Failure that must not fall back to another channel
	kind      FailureKind
	detail    string
}

func (e *Engine) process(ctx context.Context, r *run, c models.Candidate, org models.OrgContactInfo) {
	log := r.log.With().Str("invoice_id", c.InvoiceID).Str("org_id", c.OrgID).Logger()

	if r.sentToday >= e.cfg.DunningDailyCap {
		log.Info().Int("cap", e.cfg.DunningDailyCap).Msg("Daily cap reached, skipping")
		e.skip(ctx, r, c, models.ChannelSystem, models.EventManualFollowUp, "", "daily cap reached")
		return
	}

	if !InSendWindow(r.now, e.cfg.DunningWindowStartHour, e.cfg.DunningWindowEndHour) {
		next := NextWindowStart(r.now, e.cfg.DunningWindowStartHour)
		if !r.dryRun {
			if err := e.invoices.RescheduleReminder(ctx, c.InvoiceID, next.UTC()); err != nil {
				log.Error().Err(err).Msg("Failed to reschedule reminder")
			}
		}
		log.Info().Time("next_reminder_at", next).Msg("Outside sending window, rescheduled")
		e.skip(ctx, r, c, models.ChannelSystem, models.EventReminderSent, "", "outside sending window")
		return
	}

	data := messages.ReminderData{
		CustomerName:  c.CustomerName,
		InvoiceNumber: c.InvoiceNumber,
		AmountCents:   c.TotalCents,
		DueAt:         c.DueAt,
		DaysOverdue:   c.DaysOverdue,
		Severity:      c.Severity,
		PaymentURL:    c.PaymentURL,
		OrgName:       org.Name,
		OrgPhone:      org.Phone,
		Locale:        e.cfg.DunningDefaultLocale,
	}

	var last *attempt
	if phone := utils.NormalizeDutchPhone(c.WhatsApp); phone != "" && e.cfg.ChannelEnabled(config.ChannelWhatsApp) && e.whatsapp != nil {
		a := e.try(ctx, r, c, models.ChannelWhatsApp, e.whatsapp, phone, data)
		if e.settle(ctx, r, c, a) {
			return
		}
		last = &a
	}
	if c.Email != "" && e.cfg.ChannelEnabled(config.ChannelEmail) && e.email != nil {
		a := e.try(ctx, r, c, models.ChannelEmail, e.email, c.Email, data)
		if e.settle(ctx, r, c, a) {
			return
		}
		last = &a
	}

	if last == nil {
		last = &attempt{channel: models.ChannelSystem, kind: FailureUnreachable, detail: errNoReachableChannel}
	}
	e.fail(ctx, r, c, *last)
}

// try sends through one channel under that channel's dedupe key.
func (e *Engine) try(ctx context.Context, r *run, c models.Candidate, channel models.Channel, sender channels.Sender, recipient string, data messages.ReminderData) attempt {
	a := attempt{channel: channel, template: string(channel) + "_" + string(c.Severity)}
	log := r.log.With().Str("invoice_id", c.InvoiceID).Str("channel", string(channel)).Logger()

	key := DedupeKey(c.InvoiceID, string(channel), a.template, r.now)
	done, err := e.idempotency.Exists(ctx, key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Dedupe check failed")
		a.abort = true
		a.kind = FailureRetryable
		a.detail = "dedupe check failed: " + err.Error()
		return a
	}
	if done {
		a.duplicate = true
		return a
	}

	// Dry runs read the ledger but never send or write to it.
	if r.dryRun {
		log.Info().Str("recipient", recipient).Str("template", a.template).Msg("Dry run, not sending")
		a.sent = true
		return a
	}

	res := sender.Send(ctx, recipient, data)
	if !res.OK {
		a.kind = FailurePermanent
		if res.Retry {
			a.kind = FailureRetryable
		}
		a.detail = res.Error
		log.Warn().Bool("retry", res.Retry).Int("code", res.Code).Str("error", res.Error).Msg("Reminder send failed")
		return a
	}

	a.sent = true
	if err := e.idempotency.MarkProcessed(ctx, key); err != nil {
		if errors.Is(err, services.ErrAlreadyProcessed) {
			log.Warn().Str("key", key).Msg("Dedupe key taken by a concurrent run after send")
		} else {
			log.Error().Err(err).Str("key", key).Msg("Failed to record dedupe key")
		}
	}
	return a
}

// settle records a terminal attempt and reports whether the candidate is done.
// A failed attempt is not terminal: the caller may fall back.
func (e *Engine) settle(ctx context.Context, r *run, c models.Candidate, a attempt) bool {
	switch {
	case a.sent:
		e.markSent(ctx, r, c, a)
		return true
	case a.duplicate:
		r.log.Info().Str("invoice_id", c.InvoiceID).Str("channel", string(a.channel)).Msg("Already reminded today, skipping")
		e.skip(ctx, r, c, a.channel, models.EventReminderSent, a.template, "already sent today")
		return true
	case a.abort:
		e.fail(ctx, r, c, a)
		return true
	}
	return false
}

func (e *Engine) markSent(ctx context.Context, r *run, c models.Candidate, a attempt) {
	r.result.Sent++
	r.sentToday++
	metrics.RemindersTotal.WithLabelValues(string(a.channel), string(models.ResultSent)).Inc()
	r.log.Info().Str("invoice_id", c.InvoiceID).Str("channel", string(a.channel)).Str("template", a.template).Msg("Reminder sent")

	if r.dryRun {
		return
	}
	sentAt := r.now.UTC()
	if err := e.invoices.RecordReminderSent(ctx, c.InvoiceID, sentAt, sentAt.Add(e.cfg.DunningCooldown)); err != nil {
		r.log.Error().Err(err).Str("invoice_id", c.InvoiceID).Msg("Failed to update reminder bookkeeping")
	}
	e.record(ctx, r, c, &models.DunningEvent{
		Channel:      a.channel,
		EventType:    models.EventReminderSent,
		Result:       models.ResultSent,
		TemplateUsed: a.template,
		DeliveredAt:  &sentAt,
	})
}

func (e *Engine) skip(ctx context.Context, r *run, c models.Candidate, channel models.Channel, eventType models.AuditEventType, template, reason string) {
	r.result.Skipped++
	metrics.RemindersTotal.WithLabelValues(string(channel), string(models.ResultSkipped)).Inc()
	if r.dryRun {
		return
	}
	e.record(ctx, r, c, &models.DunningEvent{
		Channel:      channel,
		EventType:    eventType,
		Result:       models.ResultSkipped,
		TemplateUsed: template,
		Error:        reason,
	})
}

func (e *Engine) fail(ctx context.Context, r *run, c models.Candidate, a attempt) {
	r.result.addFailure(Failure{
		InvoiceID:     c.InvoiceID,
		InvoiceNumber: c.InvoiceNumber,
		Channel:       a.channel,
		Kind:          a.kind,
		Detail:        a.detail,
	})
	metrics.RemindersTotal.WithLabelValues(string(a.channel), string(models.ResultError)).Inc()
	r.log.Warn().Str("invoice_id", c.InvoiceID).Str("channel", string(a.channel)).Str("kind", string(a.kind)).Str("error", a.detail).Msg("Reminder failed")
	if r.dryRun {
		return
	}
	e.record(ctx, r, c, &models.DunningEvent{
		Channel:      a.channel,
		EventType:    models.EventReminderSent,
		Result:       models.ResultError,
		TemplateUsed: a.template,
		Error:        a.detail,
	})
}

func (e *Engine) record(ctx context.Context, r *run, c models.Candidate, event *models.DunningEvent) {
	event.RunID = r.id
	event.InvoiceID = c.InvoiceID
	event.OrgID = c.OrgID
	event.CustomerID = c.CustomerID
	event.CreatedAt = r.now.UTC()
	if err := e.audit.Record(ctx, event); err != nil {
		r.log.Error().Err(err).Str("invoice_id", c.InvoiceID).Str("result", string(event.Result)).Msg("Failed to write audit event")
	}
}
