// Package engine orchestrates outbound mail: immediate and deferred
// composition, the due-scheduled and recurring sweeps, and open tracking.
// It owns the pending -> sent/failed status transitions; persistence and
// transport are injected.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nithindas-k/lazydraft/internal/mailer"
	"github.com/nithindas-k/lazydraft/internal/metrics"
	"github.com/nithindas-k/lazydraft/internal/models"
	"github.com/nithindas-k/lazydraft/internal/schedule"
)

var (
	// ErrValidation marks a request rejected before any state change
	ErrValidation = errors.New("validation failed")

	// ErrAuthRequired means the user has no usable Gmail credential
	ErrAuthRequired = errors.New("gmail authorization required")

	// ErrRateLimited means the user's sending allowance is exhausted
	ErrRateLimited = errors.New("send rate limit exceeded")

	// ErrNotFound means the referenced resource does not exist or belongs
	// to another user
	ErrNotFound = errors.New("not found")
)

// MessageStore is the message persistence the engine needs
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Message, error)
	UpdateStatus(ctx context.Context, id string, status models.MessageStatus, lastError string) error
	MarkOpened(ctx context.Context, id string, at time.Time) error
	MarkReplied(ctx context.Context, id string, at time.Time) error
}

// RecurringStore is the recurring mail persistence the engine needs
type RecurringStore interface {
	Create(ctx context.Context, rm *models.RecurringMail) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.RecurringMail, error)
	Update(ctx context.Context, rm *models.RecurringMail) (bool, error)
	UpdateRunState(ctx context.Context, id string, lastSentAt, nextRunAt time.Time) error
	FindDueActive(ctx context.Context, now time.Time, limit int) ([]models.RecurringMail, error)
}

// CredentialResolver maps a user to their Gmail refresh token. An empty
// token with a nil error means the user never granted offline access.
type CredentialResolver interface {
	RefreshToken(ctx context.Context, userID string) (string, error)
}

// SendLimiter gates immediate sends per user
type SendLimiter interface {
	Allow(userID string) bool
}

// Config wires an Engine
type Config struct {
	Messages    MessageStore
	Recurring   RecurringStore
	Credentials CredentialResolver
	Sender      mailer.Sender
	Limiter     SendLimiter // nil disables rate limiting
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	PublicURL   string // base for tracking pixel URLs
	BatchSize   int    // max items per sweep pass
}

type Engine struct {
	messages  MessageStore
	recurring RecurringStore
	creds     CredentialResolver
	sender    mailer.Sender
	limiter   SendLimiter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	publicURL string
	batchSize int

	now func() time.Time

	scheduledSweeping atomic.Bool
	recurringSweeping atomic.Bool
}

func New(cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Engine{
		messages:  cfg.Messages,
		recurring: cfg.Recurring,
		creds:     cfg.Credentials,
		sender:    cfg.Sender,
		limiter:   cfg.Limiter,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With("component", "engine"),
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

// ComposeRequest carries one compose-and-send call. A future ScheduledAt
// defers delivery to the scheduled sweep; otherwise the send is immediate.
type ComposeRequest struct {
	From        string
	To          string
	Cc          string
	Bcc         string
	Subject     string
	Content     string
	ScheduledAt *time.Time

	// TrackingBaseURL overrides the configured public URL for this
	// message's pixel. Empty means use the configured one.
	TrackingBaseURL string
}

// ComposeAndSend validates, persists and, unless deferred, delivers a
// message. The returned message reflects the final status: deferred
// messages come back pending, immediate ones sent or failed. A failed
// immediate send returns both the message and the delivery error.
func (e *Engine) ComposeAndSend(ctx context.Context, userID string, req *ComposeRequest) (*models.Message, error) {
	if err := validateCompose(req); err != nil {
		return nil, err
	}

	token, err := e.creds.RefreshToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials: %w", err)
	}
	if token == "" {
		return nil, ErrAuthRequired
	}

	now := e.now()
	msg := &models.Message{
		UserID:  userID,
		From:    req.From,
		To:      req.To,
		Cc:      req.Cc,
		Bcc:     req.Bcc,
		Subject: req.Subject,
		Content: req.Content,
	}

	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		msg.ScheduledAt = req.ScheduledAt
		if err := e.messages.Create(ctx, msg); err != nil {
			return nil, err
		}
		e.logger.Info("message deferred", "message_id", msg.ID, "scheduled_at", req.ScheduledAt)
		return msg, nil
	}

	if e.limiter != nil && !e.limiter.Allow(userID) {
		return nil, ErrRateLimited
	}

	if err := e.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if err := e.dispatch(ctx, msg, token, req.TrackingBaseURL); err != nil {
		return msg, err
	}
	return msg, nil
}

// ResendMessage sends a fresh copy of an existing message immediately
func (e *Engine) ResendMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	orig, err := e.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if orig == nil || orig.UserID != userID {
		return nil, ErrNotFound
	}

	return e.ComposeAndSend(ctx, userID, &ComposeRequest{
		From:    orig.From,
		To:      orig.To,
		Cc:      orig.Cc,
		Bcc:     orig.Bcc,
		Subject: orig.Subject,
		Content: orig.Content,
	})
}

// ProcessScheduledEmails runs one due-scheduled sweep: it picks up to the
// batch size of pending messages whose scheduled time has passed and
// delivers them. One failing item never blocks the rest. Returns the
// number of messages delivered. Concurrent calls are collapsed: if a
// sweep is already running the call returns immediately.
func (e *Engine) ProcessScheduledEmails(ctx context.Context) (int, error) {
	if !e.scheduledSweeping.CompareAndSwap(false, true) {
		e.logger.Debug("scheduled sweep already running, skipping")
		return 0, nil
	}
	defer e.scheduledSweeping.Store(false)

	start := e.now()
	defer func() {
		e.metrics.ObserveSweep("scheduled", time.Since(start))
	}()

	due, err := e.messages.FindDueScheduled(ctx, start, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query due messages: %w", err)
	}

	sent := 0
	for i := range due {
		msg := &due[i]

		token, err := e.creds.RefreshToken(ctx, msg.UserID)
		if err != nil || token == "" {
			e.failMessage(ctx, msg.ID, "gmail credentials unavailable")
			continue
		}

		if err := e.dispatch(ctx, msg, token, ""); err != nil {
			e.logger.Warn("scheduled delivery failed", "message_id", msg.ID, "error", err)
			continue
		}
		sent++
	}

	if len(due) > 0 {
		e.logger.Info("scheduled sweep finished", "due", len(due), "sent", sent)
	}
	return sent, nil
}

// ProcessRecurringMails runs one recurring sweep: for every active
// definition whose next run has passed it fans the email out to each
// recipient as an individual message, then advances the run state. A
// definition whose owner has no credential is skipped without advancing,
// so it is retried on the next sweep. Returns the number of definitions
// dispatched. Concurrent calls are collapsed like ProcessScheduledEmails.
func (e *Engine) ProcessRecurringMails(ctx context.Context) (int, error) {
	if !e.recurringSweeping.CompareAndSwap(false, true) {
		e.logger.Debug("recurring sweep already running, skipping")
		return 0, nil
	}
	defer e.recurringSweeping.Store(false)

	start := e.now()
	defer func() {
		e.metrics.ObserveSweep("recurring", time.Since(start))
	}()

	due, err := e.recurring.FindDueActive(ctx, start, e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query due recurring mails: %w", err)
	}

	ran := 0
	for i := range due {
		rm := &due[i]

		token, err := e.creds.RefreshToken(ctx, rm.UserID)
		if err != nil || token == "" {
			e.logger.Warn("recurring mail skipped, credentials unavailable", "recurring_id", rm.ID)
			continue
		}

		e.fanOut(ctx, rm, token)

		next := schedule.NextRun(start, rm.DaysOfWeek, rm.TimeOfDay, rm.Timezone)
		if err := e.recurring.UpdateRunState(ctx, rm.ID, start, next); err != nil {
			e.logger.Error("failed to advance recurring mail", "recurring_id", rm.ID, "error", err)
			continue
		}
		ran++
	}

	if len(due) > 0 {
		e.logger.Info("recurring sweep finished", "due", len(due), "ran", ran)
	}
	return ran, nil
}

// fanOut sends one message per recipient of a recurring mail. Cc and Bcc
// ride along on every copy. Individual failures are recorded on their
// message and do not stop the fan-out.
func (e *Engine) fanOut(ctx context.Context, rm *models.RecurringMail, token string) int {
	sent := 0
	for _, to := range rm.To {
		msg := &models.Message{
			UserID:  rm.UserID,
			From:    rm.From,
			To:      to,
			Cc:      strings.Join(rm.Cc, ", "),
			Bcc:     strings.Join(rm.Bcc, ", "),
			Subject: rm.Subject,
			Content: rm.Content,
		}
		if err := e.messages.Create(ctx, msg); err != nil {
			e.logger.Error("failed to create fan-out message", "recurring_id", rm.ID, "error", err)
			continue
		}
		if err := e.dispatch(ctx, msg, token, ""); err != nil {
			e.logger.Warn("fan-out delivery failed", "recurring_id", rm.ID, "message_id", msg.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// CreateRecurringMail validates and persists a new definition. The first
// run is computed from the current time; new definitions start active.
func (e *Engine) CreateRecurringMail(ctx context.Context, userID string, rm *models.RecurringMail) error {
	if err := validateRecurring(rm); err != nil {
		return err
	}

	rm.UserID = userID
	rm.IsActive = true
	rm.NextRunAt = schedule.NextRun(e.now(), rm.DaysOfWeek, rm.TimeOfDay, rm.Timezone)
	return e.recurring.Create(ctx, rm)
}

// UpdateRecurringMail rewrites an existing definition and recomputes its
// next run from the current time, since the schedule may have changed.
func (e *Engine) UpdateRecurringMail(ctx context.Context, userID string, rm *models.RecurringMail) error {
	if err := validateRecurring(rm); err != nil {
		return err
	}

	existing, err := e.recurring.GetByIDAndUser(ctx, rm.ID, userID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}

	rm.UserID = userID
	rm.IsActive = existing.IsActive
	rm.LastSentAt = existing.LastSentAt
	rm.CreatedAt = existing.CreatedAt
	rm.NextRunAt = schedule.NextRun(e.now(), rm.DaysOfWeek, rm.TimeOfDay, rm.Timezone)

	ok, err := e.recurring.Update(ctx, rm)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ToggleRecurringMail flips a definition's active flag. Reactivating
// recomputes the next run from the current time so a long-paused
// definition does not fire immediately with a stale timestamp.
func (e *Engine) ToggleRecurringMail(ctx context.Context, userID, id string, active bool) (*models.RecurringMail, error) {
	rm, err := e.recurring.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrNotFound
	}
	if rm.IsActive == active {
		return rm, nil
	}

	rm.IsActive = active
	if active {
		rm.NextRunAt = schedule.NextRun(e.now(), rm.DaysOfWeek, rm.TimeOfDay, rm.Timezone)
	}

	ok, err := e.recurring.Update(ctx, rm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return rm, nil
}

// RunRecurringNow fans a definition out immediately and recomputes both
// run timestamps, so a definition that was already due does not fire
// again on the next sweep. Returns the number of messages delivered.
func (e *Engine) RunRecurringNow(ctx context.Context, userID, id string) (int, error) {
	rm, err := e.recurring.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		return 0, err
	}
	if rm == nil {
		return 0, ErrNotFound
	}

	token, err := e.creds.RefreshToken(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve credentials: %w", err)
	}
	if token == "" {
		return 0, ErrAuthRequired
	}

	sent := e.fanOut(ctx, rm, token)

	now := e.now()
	next := schedule.NextRun(now, rm.DaysOfWeek, rm.TimeOfDay, rm.Timezone)
	if err := e.recurring.UpdateRunState(ctx, rm.ID, now, next); err != nil {
		e.logger.Error("failed to record manual run", "recurring_id", rm.ID, "error", err)
	}
	return sent, nil
}

// TrackOpen records a tracking pixel hit. It never fails: the pixel
// response must not leak whether the id was valid.
func (e *Engine) TrackOpen(ctx context.Context, messageID string) {
	e.metrics.ObserveTrackingHit()
	if messageID == "" {
		return
	}
	if err := e.messages.MarkOpened(ctx, messageID, e.now()); err != nil {
		e.logger.Debug("failed to mark message opened", "message_id", messageID, "error", err)
	}
}

// RecordReply marks the first detected reply to a message
func (e *Engine) RecordReply(ctx context.Context, userID, messageID string) error {
	msg, err := e.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil || msg.UserID != userID {
		return ErrNotFound
	}
	return e.messages.MarkReplied(ctx, messageID, e.now())
}

// dispatch delivers one pending message and finalizes its status
func (e *Engine) dispatch(ctx context.Context, msg *models.Message, token, trackingBase string) error {
	err := e.sender.Send(ctx, &mailer.OutgoingEmail{
		From:         msg.From,
		To:           msg.To,
		Cc:           msg.Cc,
		Bcc:          msg.Bcc,
		Subject:      msg.Subject,
		HTML:         e.injectPixel(msg.Content, msg.ID, trackingBase),
		RefreshToken: token,
	})
	if err != nil {
		e.failMessage(ctx, msg.ID, err.Error())
		msg.Status = models.StatusFailed
		msg.LastError = err.Error()
		return fmt.Errorf("delivery failed: %w", err)
	}

	if err := e.messages.UpdateStatus(ctx, msg.ID, models.StatusSent, ""); err != nil {
		e.logger.Error("delivered but failed to mark sent", "message_id", msg.ID, "error", err)
	}
	msg.Status = models.StatusSent
	e.metrics.ObserveSend("sent")
	e.logger.Info("message sent", "message_id", msg.ID, "to", msg.To)
	return nil
}

func (e *Engine) failMessage(ctx context.Context, id, reason string) {
	e.metrics.ObserveSend("failed")
	if err := e.messages.UpdateStatus(ctx, id, models.StatusFailed, reason); err != nil {
		e.logger.Error("failed to mark message failed", "message_id", id, "error", err)
	}
}

// injectPixel appends the open-tracking pixel to an HTML body. Messages
// are stored without the pixel; it is added at dispatch time only. An
// explicit base takes precedence over the configured public URL.
func (e *Engine) injectPixel(html, messageID, base string) string {
	if base == "" {
		base = e.publicURL
	}
	base = strings.TrimRight(base, "/")
	if base == "" || messageID == "" {
		if base == "" && messageID != "" {
			e.logger.Warn("no tracking base available, sending untracked", "message_id", messageID)
		}
		return html
	}
	pixel := fmt.Sprintf(`<img src="%s/track/open?id=%s" width="1" height="1" alt="" style="display:none">`, base, messageID)
	if idx := strings.LastIndex(html, "</body>"); idx >= 0 {
		return html[:idx] + pixel + html[idx:]
	}
	return html + pixel
}

func validateCompose(req *ComposeRequest) error {
	if strings.TrimSpace(req.From) == "" {
		return fmt.Errorf("%w: from is required", ErrValidation)
	}
	if strings.TrimSpace(req.To) == "" {
		return fmt.Errorf("%w: to is required", ErrValidation)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	return nil
}

func validateRecurring(rm *models.RecurringMail) error {
	if strings.TrimSpace(rm.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(rm.From) == "" {
		return fmt.Errorf("%w: from is required", ErrValidation)
	}
	if len(rm.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}
	for _, to := range rm.To {
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("%w: recipients must not be empty", ErrValidation)
		}
	}
	if strings.TrimSpace(rm.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(rm.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if err := schedule.Validate(rm.DaysOfWeek, rm.TimeOfDay, rm.Timezone); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
