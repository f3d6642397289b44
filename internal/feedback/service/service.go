// Package service implements feedback triage: priority derivation, trend
// detection, day-scoped ticket allocation, load-balanced reviewer
// assignment, community voting, and the resolution workflow.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/notify"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	platformtx "github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Store persists feedback rows and the per-day ticket sequence.
// Implementations return sentinel errors and must make Execute hold the row
// lock from validate through mutate.
type Store interface {
	Create(ctx context.Context, fb *models.FormFeedback) error
	FindByID(ctx context.Context, feedbackID id.FeedbackID) (*models.FormFeedback, error)
	Execute(ctx context.Context, feedbackID id.FeedbackID, validate func(*models.FormFeedback) error, mutate func(*models.FormFeedback) error) (*models.FormFeedback, error)
	ListByForm(ctx context.Context, formID id.FormID, filter models.ListFilter) ([]*models.FormFeedback, error)
	CountSimilar(ctx context.Context, formID id.FormID, feedbackType models.FeedbackType, fieldName string) (int, error)
	NextTicket(ctx context.Context, day string) (int, error)
}

// Roster hands out and returns reviewer capacity. ClaimLeastLoaded is an
// atomic read-and-claim; Claim and Release are best-effort counter
// maintenance that no-op on ids missing from the roster.
type Roster interface {
	ClaimLeastLoaded(ctx context.Context) (*models.Reviewer, error)
	Claim(ctx context.Context, reviewerID id.ReviewerID) error
	Release(ctx context.Context, reviewerID id.ReviewerID) error
}

// FormCatalog confirms that a referenced form is in the registry. Any
// status counts; users report defects against rejected copies they found
// cached just as they do against approved ones.
type FormCatalog interface {
	Exists(ctx context.Context, formID id.FormID) (bool, error)
}

// Notifier publishes fire-and-forget events after commit.
type Notifier interface {
	Emit(ctx context.Context, eventType notify.EventType, key string, payload any)
}

// StoreTx runs fn as one transaction across the feedback and roster rows.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service is the feedback triage engine.
type Service struct {
	store    Store
	roster   Roster
	forms    FormCatalog
	notifier Notifier
	tx       StoreTx
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// New constructs the triage engine. A nil tx falls back to the lock-based
// runner, which is the right pairing for the in-memory store.
func New(store Store, roster Roster, forms FormCatalog, tx StoreTx, opts ...Option) *Service {
	if tx == nil {
		tx = platformtx.NewSharded()
	}
	s := &Service{
		store:    store,
		roster:   roster,
		forms:    forms,
		notifier: notify.Noop{},
		tx:       tx,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Receipt is what a reporter gets back: the durable identifiers plus the
// triage outcome.
type Receipt struct {
	Feedback       *models.FormFeedback
	TicketNumber   string
	Priority       models.Priority
	ResponseTarget time.Duration
}

// Submit files a defect report. Ticket allocation, trend counting, and the
// optional reviewer claim commit as one transaction keyed by the report's
// day, so tickets within a day are gapless and never collide.
func (s *Service) Submit(ctx context.Context, report models.Report) (*Receipt, error) {
	report, err := report.Normalize()
	if err != nil {
		return nil, err
	}

	exists, err := s.forms.Exists(ctx, report.FormID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check the form registry")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "form not found")
	}

	now := requestcontext.Now(ctx)
	browser := describeBrowser(report.UserAgent)
	day := models.DayKey(now)

	var (
		created  *models.FormFeedback
		assigned *models.Reviewer
		trending bool
	)
	ctx = platformtx.WithLockKey(ctx, day)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		seq, err := s.store.NextTicket(txCtx, day)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate a ticket number")
		}

		similar, err := s.store.CountSimilar(txCtx, report.FormID, report.FeedbackType, report.FieldName)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to scan for similar reports")
		}
		trendCount := similar + 1

		priority := models.PriorityFor(report.FeedbackType, report.Severity)
		if trendCount >= models.TrendThreshold {
			priority = priority.AtLeast(models.PriorityHigh)
			trending = true
		}

		fb := models.NewFormFeedback(id.NewFeedbackID(), models.TicketNumber(now, seq), report, priority, trendCount, browser, now)

		if priority.RequiresAssignment() {
			reviewer, claimErr := s.roster.ClaimLeastLoaded(txCtx)
			switch {
			case errors.Is(claimErr, sentinel.ErrNotFound):
				// Nobody eligible; the report stays in the intake queue.
			case claimErr != nil:
				return dErrors.Wrap(claimErr, dErrors.CodeInternal, "failed to claim a reviewer")
			default:
				fb.ApplyAssignment(reviewer.ID, now)
				assigned = reviewer
			}
		}

		if err := s.store.Create(txCtx, fb); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "ticket number already allocated")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store feedback")
		}
		created = fb
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementSubmission(created.Priority.String())
	if trending {
		s.metrics.IncrementTrending()
		s.notifier.Emit(ctx, notify.EventTrendingIssue, created.FormID.String(), notify.TrendingIssuePayload{
			FormID:       created.FormID.String(),
			FeedbackID:   created.ID.String(),
			FeedbackType: created.FeedbackType.String(),
			ReportCount:  created.TrendCount,
		})
	}
	if assigned != nil {
		s.metrics.IncrementAssignment("submission")
		s.emitAssigned(ctx, created)
	}
	s.logger.InfoContext(ctx, "feedback received",
		"feedback_id", created.ID.String(),
		"form_id", created.FormID.String(),
		"ticket", created.TicketNumber,
		"priority", created.Priority.String(),
		"trend_count", created.TrendCount,
	)

	return &Receipt{
		Feedback:       created,
		TicketNumber:   created.TicketNumber,
		Priority:       created.Priority,
		ResponseTarget: created.Priority.ResponseTarget(),
	}, nil
}

// VoteResult carries the updated tallies and whether this vote tipped the
// report over the escalation threshold.
type VoteResult struct {
	Feedback    *models.FormFeedback
	ImpactScore int
	Escalated   bool
}

// Vote counts one reader verdict. A vote that lifts a normal-priority
// report's impact score past the threshold escalates it to high and routes
// it to a reviewer in the same transaction. Votes on settled reports still
// count; they just no longer escalate anything.
func (s *Service) Vote(ctx context.Context, feedbackID id.FeedbackID, direction models.VoteDirection) (*VoteResult, error) {
	if feedbackID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "feedback id is required")
	}
	if direction != models.VoteUp && direction != models.VoteDown {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown vote direction %q", direction)
	}

	now := requestcontext.Now(ctx)
	var (
		updated   *models.FormFeedback
		escalated bool
		assigned  *models.Reviewer
	)
	ctx = platformtx.WithLockKey(ctx, feedbackID.String())
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		result, execErr := s.store.Execute(txCtx, feedbackID, nil, func(fb *models.FormFeedback) error {
			fb.ApplyVote(direction, now)
			if fb.Status.IsTerminal() || fb.Priority != models.PriorityNormal {
				return nil
			}
			if fb.ImpactScore() < models.ImpactEscalationThreshold {
				return nil
			}
			escalated = fb.ApplyEscalation(models.PriorityHigh, now)
			return nil
		})
		if execErr != nil {
			return storeExecuteErr(execErr)
		}

		if escalated && result.AssignedTo == nil {
			reviewer, claimErr := s.roster.ClaimLeastLoaded(txCtx)
			switch {
			case errors.Is(claimErr, sentinel.ErrNotFound):
			case claimErr != nil:
				return dErrors.Wrap(claimErr, dErrors.CodeInternal, "failed to claim a reviewer")
			default:
				result, execErr = s.store.Execute(txCtx, feedbackID, nil, func(fb *models.FormFeedback) error {
					fb.ApplyAssignment(reviewer.ID, now)
					return nil
				})
				if execErr != nil {
					return storeExecuteErr(execErr)
				}
				assigned = reviewer
			}
		}
		updated = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementVote(direction.String())
	if escalated {
		s.metrics.IncrementEscalation()
		s.logger.InfoContext(ctx, "feedback escalated by impact",
			"feedback_id", updated.ID.String(),
			"impact_score", updated.ImpactScore(),
		)
	}
	if assigned != nil {
		s.metrics.IncrementAssignment("vote")
		s.emitAssigned(ctx, updated)
	}

	return &VoteResult{
		Feedback:    updated,
		ImpactScore: updated.ImpactScore(),
		Escalated:   escalated,
	}, nil
}

// StatusUpdate moves a report through the resolution workflow.
type StatusUpdate struct {
	FeedbackID id.FeedbackID
	NewStatus  models.FeedbackStatus
	ResolverID id.ReviewerID
	Resolution string
}

func (u StatusUpdate) validate() error {
	if u.FeedbackID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "feedback id is required")
	}
	if u.ResolverID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "resolver id is required")
	}
	if !u.NewStatus.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown feedback status %q", u.NewStatus)
	}
	return nil
}

// UpdateStatus applies one workflow move. Taking an unassigned report into
// triage or work claims it for the resolver; settling an assigned report
// returns the reviewer's capacity. Both counter updates commit with the
// status change.
func (s *Service) UpdateStatus(ctx context.Context, cmd StatusUpdate) (*models.FormFeedback, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var (
		updated      *models.FormFeedback
		prevAssignee *id.ReviewerID
	)
	ctx = platformtx.WithLockKey(ctx, cmd.FeedbackID.String())
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		result, execErr := s.store.Execute(txCtx, cmd.FeedbackID,
			func(fb *models.FormFeedback) error {
				if fb.AssignedTo != nil {
					assignee := *fb.AssignedTo
					prevAssignee = &assignee
				}
				return fb.CanUpdateStatus(cmd.NewStatus)
			},
			func(fb *models.FormFeedback) error {
				fb.ApplyStatus(cmd.NewStatus, cmd.Resolution, now)
				if fb.AssignedTo == nil && fb.Status.IsOpen() {
					fb.ApplyAssignment(cmd.ResolverID, now)
				}
				return nil
			})
		if execErr != nil {
			return storeExecuteErr(execErr)
		}

		switch {
		case result.Status.IsTerminal() && prevAssignee != nil:
			if err := s.roster.Release(txCtx, *prevAssignee); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release the reviewer")
			}
		case prevAssignee == nil && result.AssignedTo != nil:
			if err := s.roster.Claim(txCtx, *result.AssignedTo); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim the reviewer")
			}
		}
		updated = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementStatusUpdate(updated.Status.String())
	if prevAssignee == nil && updated.AssignedTo != nil {
		s.metrics.IncrementAssignment("manual")
		s.emitAssigned(ctx, updated)
	}
	s.logger.InfoContext(ctx, "feedback status updated",
		"feedback_id", updated.ID.String(),
		"status", updated.Status.String(),
		"resolver_id", cmd.ResolverID.String(),
	)
	return updated, nil
}

// ListByForm returns a form's reports, newest first.
func (s *Service) ListByForm(ctx context.Context, formID id.FormID, filter models.ListFilter) ([]*models.FormFeedback, error) {
	if formID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "form id is required")
	}

	exists, err := s.forms.Exists(ctx, formID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check the form registry")
	}
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "form not found")
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	reports, err := s.store.ListByForm(ctx, formID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list feedback")
	}
	return reports, nil
}

func (s *Service) emitAssigned(ctx context.Context, fb *models.FormFeedback) {
	if fb.AssignedTo == nil {
		return
	}
	s.notifier.Emit(ctx, notify.EventFeedbackAssigned, fb.ID.String(), notify.FeedbackAssignedPayload{
		FeedbackID:   fb.ID.String(),
		FormID:       fb.FormID.String(),
		ReviewerID:   fb.AssignedTo.String(),
		Priority:     fb.Priority.String(),
		TicketNumber: fb.TicketNumber,
	})
}

func storeExecuteErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "feedback not found")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update feedback")
}

// describeBrowser condenses a User-Agent header into "Name version (OS)".
// Unparseable agents collapse to the empty string instead of failing the
// submission.
func describeBrowser(rawUA string) string {
	rawUA = strings.TrimSpace(rawUA)
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		return ""
	}
	out := name
	if version != "" {
		out += " " + version
	}
	if os := ua.OS(); os != "" {
		out += " (" + os + ")"
	}
	return out
}
