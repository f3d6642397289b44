package models

import (
	"strings"
	"time"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

const (
	maxTitleLen      = 200
	maxFormNumberLen = 64
	maxPageCount     = 1000
)

// Draft carries the contributor-supplied descriptor of a form. Content bytes
// are handled by the content store; the aggregate only sees their digest and
// storage handle.
type Draft struct {
	Title          string
	FormNumber     string
	FormType       FormType
	JurisdictionID id.JurisdictionID
	PageCount      int
	Fields         []FormField
}

// Normalize trims and canonicalizes draft inputs and validates the whole
// descriptor. Form numbers are uppercased so the duplicate probe compares
// like with like. Normalizing twice is harmless.
func (d Draft) Normalize() (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.FormNumber = strings.ToUpper(strings.TrimSpace(d.FormNumber))

	if d.Title == "" {
		return d, dErrors.New(dErrors.CodeValidation, "form title is required")
	}
	if len(d.Title) > maxTitleLen {
		return d, dErrors.Newf(dErrors.CodeValidation, "form title exceeds %d characters", maxTitleLen)
	}
	if len(d.FormNumber) > maxFormNumberLen {
		return d, dErrors.Newf(dErrors.CodeValidation, "form number exceeds %d characters", maxFormNumberLen)
	}
	if !d.FormType.IsValid() {
		return d, dErrors.Newf(dErrors.CodeValidation, "unknown form type %q", d.FormType)
	}
	if d.JurisdictionID.IsNil() {
		return d, dErrors.New(dErrors.CodeValidation, "jurisdiction id is required")
	}
	if d.PageCount < 1 {
		return d, dErrors.New(dErrors.CodeValidation, "page count must be at least 1")
	}
	if d.PageCount > maxPageCount {
		return d, dErrors.Newf(dErrors.CodeValidation, "page count exceeds %d", maxPageCount)
	}

	fields, err := normalizeFields(d.Fields)
	if err != nil {
		return d, err
	}
	d.Fields = fields
	return d, nil
}

// Form is a crowdsourced legal form moving through the review lifecycle.
//
// Invariants:
//   - Status only changes along the lifecycle DAG; rejected and archived are
//     terminal
//   - Approval locks content: title, fields, hash, and handle never change
//     afterwards; only the usage counters keep moving
//   - IsPublic is true exactly while the form is approved
//   - Version counts review cycles and only increments on resubmission
//   - FormType and JurisdictionID are fixed at submission
//   - ViewCount and DownloadCount never decrease
type Form struct {
	ID               id.FormID
	Title            string
	FormNumber       string
	FormType         FormType
	Status           FormStatus
	ContributorID    id.ContributorID
	ReviewerID       *id.ReviewerID
	JurisdictionID   id.JurisdictionID
	ContentHash      string
	StorageHandle    string
	Version          int
	PageCount        int
	Fields           []FormField
	ReviewScore      *int
	ReviewChecklist  *ReviewChecklist
	RequestedChanges []RequestedChange
	RevisionDeadline *time.Time
	IsPublic         bool
	ViewCount        int64
	DownloadCount    int64
	SupersededBy     *id.FormID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewForm validates the draft and creates the aggregate in pending, the entry
// state of the review lifecycle.
func NewForm(formID id.FormID, contributorID id.ContributorID, draft Draft, contentHash, storageHandle string, now time.Time) (*Form, error) {
	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}
	if contributorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "contributor id is required")
	}
	if contentHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "form content hash cannot be empty")
	}
	if storageHandle == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "form storage handle cannot be empty")
	}

	return &Form{
		ID:             formID,
		Title:          draft.Title,
		FormNumber:     draft.FormNumber,
		FormType:       draft.FormType,
		Status:         StatusPending,
		ContributorID:  contributorID,
		JurisdictionID: draft.JurisdictionID,
		ContentHash:    contentHash,
		StorageHandle:  storageHandle,
		Version:        1,
		PageCount:      draft.PageCount,
		Fields:         draft.Fields,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanReview reports whether a review decision may be recorded.
func (f *Form) CanReview() error {
	if f.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvalidState, "form is %s; only pending forms can be reviewed", f.Status)
	}
	return nil
}

// ApplyClaim moves the form under review and records the reviewer. The
// review flow claims and decides in one transaction.
func (f *Form) ApplyClaim(reviewerID id.ReviewerID, now time.Time) {
	f.Status = StatusUnderReview
	f.ReviewerID = &reviewerID
	f.UpdatedAt = now
}

// ApplyApproval publishes the form and locks its content.
func (f *Form) ApplyApproval(checklist ReviewChecklist, score *int, now time.Time) {
	f.Status = StatusApproved
	f.IsPublic = true
	f.ReviewChecklist = &checklist
	f.ReviewScore = score
	f.RequestedChanges = nil
	f.RevisionDeadline = nil
	f.UpdatedAt = now
}

// ApplyRejection closes the review cycle without publishing.
func (f *Form) ApplyRejection(checklist ReviewChecklist, score *int, now time.Time) {
	f.Status = StatusRejected
	f.ReviewChecklist = &checklist
	f.ReviewScore = score
	f.UpdatedAt = now
}

// ApplyRevisionRequest sends the form back to the contributor with the
// changes the reviewer wants.
func (f *Form) ApplyRevisionRequest(checklist ReviewChecklist, changes []RequestedChange, deadline *time.Time, now time.Time) {
	f.Status = StatusNeedsRevision
	f.ReviewChecklist = &checklist
	f.RequestedChanges = changes
	f.RevisionDeadline = deadline
	f.UpdatedAt = now
}

// CanResubmit reports whether a new revision may be submitted.
func (f *Form) CanResubmit() error {
	if f.Status != StatusNeedsRevision {
		return dErrors.Newf(dErrors.CodeInvalidState, "form is %s; only forms awaiting revision can be resubmitted", f.Status)
	}
	return nil
}

// ApplyResubmission replaces the content fields and starts a new review
// cycle. FormType and JurisdictionID stay fixed; the prior cycle's review
// artifacts are cleared.
func (f *Form) ApplyResubmission(draft Draft, contentHash, storageHandle string, now time.Time) {
	f.Title = draft.Title
	f.FormNumber = draft.FormNumber
	f.PageCount = draft.PageCount
	f.Fields = draft.Fields
	f.ContentHash = contentHash
	f.StorageHandle = storageHandle
	f.Version++
	f.Status = StatusPending
	f.ReviewerID = nil
	f.ReviewScore = nil
	f.ReviewChecklist = nil
	f.RequestedChanges = nil
	f.RevisionDeadline = nil
	f.UpdatedAt = now
}

// CanArchive reports whether the form may be superseded.
func (f *Form) CanArchive() error {
	if f.Status != StatusApproved {
		return dErrors.Newf(dErrors.CodeInvalidState, "form is %s; only approved forms can be archived", f.Status)
	}
	return nil
}

// ApplyArchive retires the form, optionally pointing at its replacement.
// Archived forms leave the public catalog.
func (f *Form) ApplyArchive(supersededBy *id.FormID, now time.Time) {
	f.Status = StatusArchived
	f.SupersededBy = supersededBy
	f.IsPublic = false
	f.UpdatedAt = now
}

// CanRecordUsage reports whether usage counters may move.
func (f *Form) CanRecordUsage() error {
	if f.Status != StatusApproved {
		return dErrors.Newf(dErrors.CodeInvalidState, "form is %s; usage is tracked on approved forms only", f.Status)
	}
	return nil
}

// ApplyUsage bumps one usage counter. UpdatedAt is left alone: usage is not
// a content mutation.
func (f *Form) ApplyUsage(kind UsageKind) {
	switch kind {
	case UsageView:
		f.ViewCount++
	case UsageDownload:
		f.DownloadCount++
	}
}

// VisibleTo reports whether a caller may read this form: public forms are
// open to any authenticated caller, the contributor always sees their own,
// and reviewers and admins see everything.
func (f *Form) VisibleTo(callerID, callerRole string) bool {
	if f.IsPublic {
		return true
	}
	if callerRole == "reviewer" || callerRole == "admin" {
		return true
	}
	return callerID == f.ContributorID.String()
}

// ListFilter narrows a catalog listing. Nil members are not applied.
type ListFilter struct {
	JurisdictionID *id.JurisdictionID
	FormType       *FormType
	Status         *FormStatus
	ContributorID  *id.ContributorID
	PublicOnly     bool
	Limit          int
	Offset         int
}
