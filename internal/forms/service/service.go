// Package service implements the form lifecycle manager: submission behind
// the duplicate gate, the single-transaction review flow that settles
// contributor rewards with the status change, revision cycles, archival, and
// usage tracking on approved forms.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/content"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/dedup"
	dirmodels "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/notify"
	rewardmodels "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	platformtx "github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// maxContentBytes bounds the textual content of one form version.
	maxContentBytes = 1 << 20
)

// Store persists form aggregates. Implementations return sentinel errors and
// must make Execute hold the row lock from validate through mutate.
type Store interface {
	Create(ctx context.Context, form *models.Form) error
	FindByID(ctx context.Context, formID id.FormID) (*models.Form, error)
	Execute(ctx context.Context, formID id.FormID, validate func(*models.Form) error, mutate func(*models.Form) error) (*models.Form, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Form, error)
	IncrementUsage(ctx context.Context, formID id.FormID, kind models.UsageKind) error
}

// Detector is the duplicate gate consulted before a form enters review.
type Detector interface {
	Detect(ctx context.Context, sub dedup.Submission) (*dedup.Result, error)
}

// ContentStore archives raw form bytes and hands back the storage handle.
type ContentStore interface {
	Put(ctx context.Context, data []byte) (content.Handle, error)
}

// Directory resolves jurisdiction references against the registry directory.
type Directory interface {
	Get(ctx context.Context, jurisdictionID id.JurisdictionID) (*dirmodels.Jurisdiction, error)
}

// Rewards is the contributor ledger engine. Calls made inside the review
// transaction join it, so counters and grants commit with the status change.
type Rewards interface {
	OnSubmission(ctx context.Context, contributorID id.ContributorID) error
	OnResubmission(ctx context.Context, contributorID id.ContributorID) error
	OnApproval(ctx context.Context, contributorID id.ContributorID, formID id.FormID, pageCount int, score *int) (*rewardmodels.GrantSummary, error)
	OnRejection(ctx context.Context, contributorID id.ContributorID) error
	OnRevisionRequest(ctx context.Context, contributorID id.ContributorID) error
}

// Notifier publishes fire-and-forget events after commit.
type Notifier interface {
	Emit(ctx context.Context, eventType notify.EventType, key string, payload any)
}

// StoreTx runs fn as one transaction across the form and rewards stores.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service is the form lifecycle manager.
type Service struct {
	store     Store
	detector  Detector
	contents  ContentStore
	directory Directory
	rewards   Rewards
	notifier  Notifier
	tx        StoreTx
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

// New constructs the lifecycle manager. A nil tx falls back to the
// lock-based runner, which is the right pairing for the in-memory stores.
func New(store Store, detector Detector, contents ContentStore, directory Directory, rewards Rewards, tx StoreTx, opts ...Option) *Service {
	if tx == nil {
		tx = platformtx.NewSharded()
	}
	s := &Service{
		store:     store,
		detector:  detector,
		contents:  contents,
		directory: directory,
		rewards:   rewards,
		notifier:  notify.Noop{},
		tx:        tx,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitCommand carries a new submission: the descriptor, the raw content
// bytes, and whether a prior duplicate verdict is being overridden.
type SubmitCommand struct {
	Draft             models.Draft
	Content           []byte
	OverrideDuplicate bool
}

// ResubmitCommand carries a revision of a form sent back by a reviewer.
type ResubmitCommand struct {
	Draft             models.Draft
	Content           []byte
	OverrideDuplicate bool
}

// ReviewCommand carries one review decision.
type ReviewCommand struct {
	FormID           id.FormID
	ReviewerID       id.ReviewerID
	Decision         models.ReviewDecision
	Checklist        models.ReviewChecklist
	Score            *int
	RequestedChanges []models.RequestedChange
	RevisionDeadline *time.Time
}

func (cmd *ReviewCommand) validate(now time.Time) error {
	if cmd.FormID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "form id is required")
	}
	if cmd.ReviewerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "reviewer id is required")
	}
	if !cmd.Decision.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown review decision %q", cmd.Decision)
	}
	if err := models.ValidateScore(cmd.Score); err != nil {
		return err
	}
	if cmd.Decision == models.DecisionRequestRevision {
		changes, err := models.NormalizeChanges(cmd.RequestedChanges)
		if err != nil {
			return err
		}
		cmd.RequestedChanges = changes
		if cmd.RevisionDeadline != nil && !cmd.RevisionDeadline.After(now) {
			return dErrors.New(dErrors.CodeValidation, "revision deadline must be in the future")
		}
		return nil
	}
	if len(cmd.RequestedChanges) > 0 {
		return dErrors.New(dErrors.CodeValidation, "requested changes only apply to revision requests")
	}
	if cmd.RevisionDeadline != nil {
		return dErrors.New(dErrors.CodeValidation, "a revision deadline only applies to revision requests")
	}
	return nil
}

// SubmitResult is either an accepted form or the duplicate verdict that
// blocked it.
type SubmitResult struct {
	Form      *models.Form
	Duplicate *dedup.Result
}

// ReviewResult is the recorded decision plus the reward grant an approval
// produced. Grant is nil for rejections and revision requests.
type ReviewResult struct {
	Form  *models.Form
	Grant *rewardmodels.GrantSummary
}

// Submit runs the duplicate gate and creates the form in pending. A flagged
// duplicate is not an error: the verdict rides back in the result so the
// caller can decide whether to override.
func (s *Service) Submit(ctx context.Context, contributorID id.ContributorID, cmd SubmitCommand) (*SubmitResult, error) {
	if contributorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}
	draft, err := cmd.Draft.Normalize()
	if err != nil {
		return nil, err
	}
	if err := validateContent(cmd.Content); err != nil {
		return nil, err
	}
	if err := s.checkJurisdiction(ctx, draft.JurisdictionID); err != nil {
		return nil, err
	}

	contentHash := content.Hash(cmd.Content)
	verdict, err := s.detector.Detect(ctx, dedup.Submission{
		Title:          draft.Title,
		FormNumber:     draft.FormNumber,
		FormType:       draft.FormType.String(),
		JurisdictionID: draft.JurisdictionID,
		ContentHash:    contentHash,
	})
	if err != nil {
		return nil, err
	}
	if verdict.IsDuplicate && !cmd.OverrideDuplicate {
		s.metrics.IncrementSubmission("duplicate")
		s.logger.InfoContext(ctx, "submission flagged as duplicate",
			"contributor_id", contributorID.String(),
			"matches", len(verdict.Matches),
		)
		return &SubmitResult{Duplicate: verdict}, nil
	}

	handle, err := s.contents.Put(ctx, cmd.Content)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive form content")
	}

	now := requestcontext.Now(ctx)
	form, err := models.NewForm(id.NewFormID(), contributorID, draft, contentHash, handle.String(), now)
	if err != nil {
		return nil, err
	}

	ctx = platformtx.WithLockKey(ctx, contributorID.String())
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, form); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "form already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create form")
		}
		return s.rewards.OnSubmission(txCtx, contributorID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementSubmission("accepted")
	s.notifier.Emit(ctx, notify.EventFormPendingReview, form.ID.String(), notify.FormPendingReviewPayload{
		FormID:         form.ID.String(),
		ContributorID:  contributorID.String(),
		JurisdictionID: form.JurisdictionID.String(),
		Title:          form.Title,
		Version:        form.Version,
	})
	s.logger.InfoContext(ctx, "form submitted",
		"form_id", form.ID.String(),
		"contributor_id", contributorID.String(),
		"jurisdiction_id", form.JurisdictionID.String(),
	)
	return &SubmitResult{Form: form}, nil
}

// Review records one decision on a pending form. The claim, the decision,
// and the contributor's counter and reward updates commit as one
// transaction keyed by the contributor, so concurrent reviews of the same
// form serialize and the loser fails the pending check.
func (s *Service) Review(ctx context.Context, cmd ReviewCommand) (*ReviewResult, error) {
	now := requestcontext.Now(ctx)
	if err := cmd.validate(now); err != nil {
		return nil, err
	}

	// The pre-read pins the contributor shard; status is re-checked under
	// the row lock inside the transaction.
	form, err := s.findForm(ctx, cmd.FormID)
	if err != nil {
		return nil, err
	}

	var (
		updated *models.Form
		grant   *rewardmodels.GrantSummary
	)
	ctx = platformtx.WithLockKey(ctx, form.ContributorID.String())
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		result, execErr := s.store.Execute(txCtx, cmd.FormID,
			func(f *models.Form) error { return f.CanReview() },
			func(f *models.Form) error {
				f.ApplyClaim(cmd.ReviewerID, now)
				switch cmd.Decision {
				case models.DecisionApprove:
					f.ApplyApproval(cmd.Checklist, cmd.Score, now)
				case models.DecisionReject:
					f.ApplyRejection(cmd.Checklist, cmd.Score, now)
				case models.DecisionRequestRevision:
					f.ApplyRevisionRequest(cmd.Checklist, cmd.RequestedChanges, cmd.RevisionDeadline, now)
				}
				return nil
			})
		if execErr != nil {
			return storeExecuteErr(execErr)
		}
		updated = result

		switch cmd.Decision {
		case models.DecisionApprove:
			grant, execErr = s.rewards.OnApproval(txCtx, updated.ContributorID, updated.ID, updated.PageCount, cmd.Score)
		case models.DecisionReject:
			execErr = s.rewards.OnRejection(txCtx, updated.ContributorID)
		case models.DecisionRequestRevision:
			execErr = s.rewards.OnRevisionRequest(txCtx, updated.ContributorID)
		}
		return execErr
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementReview(cmd.Decision.String())
	s.notifier.Emit(ctx, notify.EventFormReviewed, updated.ID.String(), notify.FormReviewedPayload{
		FormID:        updated.ID.String(),
		ContributorID: updated.ContributorID.String(),
		ReviewerID:    cmd.ReviewerID.String(),
		Decision:      cmd.Decision.String(),
		Score:         cmd.Score,
	})
	if grant != nil && grant.Granted {
		rewardTypes := make([]string, 0, len(grant.Entries))
		for _, entry := range grant.Entries {
			rewardTypes = append(rewardTypes, entry.RewardType.String())
		}
		s.notifier.Emit(ctx, notify.EventRewardGranted, updated.ContributorID.String(), notify.RewardGrantedPayload{
			ContributorID: updated.ContributorID.String(),
			FormID:        updated.ID.String(),
			WeeksGranted:  grant.WeeksGranted,
			RewardTypes:   rewardTypes,
			Tier:          grant.Tier.String(),
			TierChanged:   grant.TierChanged,
		})
	}
	s.logger.InfoContext(ctx, "review recorded",
		"form_id", updated.ID.String(),
		"reviewer_id", cmd.ReviewerID.String(),
		"decision", cmd.Decision.String(),
	)
	return &ReviewResult{Form: updated, Grant: grant}, nil
}

// Resubmit replaces the content of a form sent back for revision and starts
// a new review cycle. The duplicate gate runs again with the form itself
// excluded so it never collides with its own earlier version.
func (s *Service) Resubmit(ctx context.Context, formID id.FormID, contributorID id.ContributorID, cmd ResubmitCommand) (*SubmitResult, error) {
	if formID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "form id is required")
	}
	if contributorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}
	draft, err := cmd.Draft.Normalize()
	if err != nil {
		return nil, err
	}
	if err := validateContent(cmd.Content); err != nil {
		return nil, err
	}

	form, err := s.findForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form.ContributorID != contributorID {
		return nil, dErrors.New(dErrors.CodeForbidden, "only the submitting contributor can resubmit a form")
	}
	if err := form.CanResubmit(); err != nil {
		return nil, err
	}
	if draft.FormType != form.FormType {
		return nil, dErrors.New(dErrors.CodeValidation, "form type cannot change on resubmission")
	}
	if draft.JurisdictionID != form.JurisdictionID {
		return nil, dErrors.New(dErrors.CodeValidation, "jurisdiction cannot change on resubmission")
	}

	contentHash := content.Hash(cmd.Content)
	verdict, err := s.detector.Detect(ctx, dedup.Submission{
		Title:          draft.Title,
		FormNumber:     draft.FormNumber,
		FormType:       draft.FormType.String(),
		JurisdictionID: draft.JurisdictionID,
		ContentHash:    contentHash,
		ExcludeFormID:  formID,
	})
	if err != nil {
		return nil, err
	}
	if verdict.IsDuplicate && !cmd.OverrideDuplicate {
		s.metrics.IncrementSubmission("duplicate")
		s.logger.InfoContext(ctx, "resubmission flagged as duplicate",
			"form_id", formID.String(),
			"matches", len(verdict.Matches),
		)
		return &SubmitResult{Duplicate: verdict}, nil
	}

	handle, err := s.contents.Put(ctx, cmd.Content)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive form content")
	}

	now := requestcontext.Now(ctx)
	var updated *models.Form
	ctx = platformtx.WithLockKey(ctx, contributorID.String())
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		result, execErr := s.store.Execute(txCtx, formID,
			func(f *models.Form) error { return f.CanResubmit() },
			func(f *models.Form) error {
				f.ApplyResubmission(draft, contentHash, handle.String(), now)
				return nil
			})
		if execErr != nil {
			return storeExecuteErr(execErr)
		}
		updated = result
		return s.rewards.OnResubmission(txCtx, contributorID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementResubmission()
	s.notifier.Emit(ctx, notify.EventFormPendingReview, updated.ID.String(), notify.FormPendingReviewPayload{
		FormID:         updated.ID.String(),
		ContributorID:  contributorID.String(),
		JurisdictionID: updated.JurisdictionID.String(),
		Title:          updated.Title,
		Version:        updated.Version,
	})
	s.logger.InfoContext(ctx, "form resubmitted",
		"form_id", updated.ID.String(),
		"version", updated.Version,
	)
	return &SubmitResult{Form: updated}, nil
}

// Archive retires an approved form, optionally recording its replacement.
func (s *Service) Archive(ctx context.Context, formID id.FormID, supersededBy *id.FormID) (*models.Form, error) {
	if formID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "form id is required")
	}
	if supersededBy != nil {
		if supersededBy.IsNil() {
			return nil, dErrors.New(dErrors.CodeValidation, "superseding form id cannot be nil")
		}
		if *supersededBy == formID {
			return nil, dErrors.New(dErrors.CodeValidation, "a form cannot supersede itself")
		}
		if _, err := s.findForm(ctx, *supersededBy); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "superseding form is not in the registry")
			}
			return nil, err
		}
	}

	form, err := s.findForm(ctx, formID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *models.Form
	ctx = platformtx.WithLockKey(ctx, form.ContributorID.String())
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		result, execErr := s.store.Execute(txCtx, formID,
			func(f *models.Form) error { return f.CanArchive() },
			func(f *models.Form) error {
				f.ApplyArchive(supersededBy, now)
				return nil
			})
		if execErr != nil {
			return storeExecuteErr(execErr)
		}
		updated = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementArchived()
	s.logger.InfoContext(ctx, "form archived",
		"form_id", updated.ID.String(),
	)
	return updated, nil
}

// RecordUsage bumps one usage counter on an approved form. The increment is
// a single conditional write; there is nothing else to roll back.
func (s *Service) RecordUsage(ctx context.Context, formID id.FormID, kind models.UsageKind) error {
	if formID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "form id is required")
	}
	if _, ok := models.ParseUsageKind(kind.String()); !ok {
		return dErrors.Newf(dErrors.CodeValidation, "unknown usage kind %q", kind)
	}

	if err := s.store.IncrementUsage(ctx, formID, kind); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "form not found")
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeInvalidState, "usage is tracked on approved forms only")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record usage")
		}
	}

	s.metrics.IncrementUsage(kind.String())
	return nil
}

// Get returns one form, subject to visibility: public forms for everyone,
// private ones for their contributor, reviewers, and admins.
func (s *Service) Get(ctx context.Context, formID id.FormID) (*models.Form, error) {
	if formID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "form id is required")
	}
	form, err := s.findForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	if !form.VisibleTo(requestcontext.CallerID(ctx), requestcontext.CallerRole(ctx)) {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller cannot view this form")
	}
	return form, nil
}

// List returns catalog entries matching the filter. Callers without the
// reviewer or admin role see the public catalog plus their own forms.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Form, error) {
	role := requestcontext.CallerRole(ctx)
	if role != "reviewer" && role != "admin" {
		switch {
		case filter.ContributorID == nil:
			filter.PublicOnly = true
		case filter.ContributorID.String() != requestcontext.CallerID(ctx):
			return nil, dErrors.New(dErrors.CodeForbidden, "caller cannot list another contributor's forms")
		}
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

	forms, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list forms")
	}
	return forms, nil
}

func (s *Service) findForm(ctx context.Context, formID id.FormID) (*models.Form, error) {
	form, err := s.store.FindByID(ctx, formID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "form not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load form")
	}
	return form, nil
}

func (s *Service) checkJurisdiction(ctx context.Context, jurisdictionID id.JurisdictionID) error {
	if _, err := s.directory.Get(ctx, jurisdictionID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeValidation, "jurisdiction is not in the directory")
		}
		return err
	}
	return nil
}

func validateContent(data []byte) error {
	if len(data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "form content is required")
	}
	if len(data) > maxContentBytes {
		return dErrors.Newf(dErrors.CodeValidation, "form content exceeds %d bytes", maxContentBytes)
	}
	return nil
}

// storeExecuteErr translates Execute failures: sentinels become coded errors,
// model guard errors pass through already coded.
func storeExecuteErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "form not found")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update form")
}
