// Package models defines the form aggregate and its lifecycle rules: a
// submission moves through a strict status DAG, and every mutation is guarded
// by a Can/Apply pair so stores can hold the row lock across both.
package models

// FormStatus is the lifecycle state of a form.
type FormStatus string

const (
	StatusDraft         FormStatus = "draft"
	StatusPending       FormStatus = "pending"
	StatusUnderReview   FormStatus = "under_review"
	StatusApproved      FormStatus = "approved"
	StatusRejected      FormStatus = "rejected"
	StatusNeedsRevision FormStatus = "needs_revision"
	StatusArchived      FormStatus = "archived"
)

var validStatuses = map[FormStatus]bool{
	StatusDraft:         true,
	StatusPending:       true,
	StatusUnderReview:   true,
	StatusApproved:      true,
	StatusRejected:      true,
	StatusNeedsRevision: true,
	StatusArchived:      true,
}

// statusTransitions is the full lifecycle DAG. Approval locks content; the
// only edge out of approved is the explicit supersede into archived.
var statusTransitions = map[FormStatus][]FormStatus{
	StatusDraft:         {StatusPending},
	StatusPending:       {StatusUnderReview, StatusApproved, StatusRejected, StatusNeedsRevision},
	StatusUnderReview:   {StatusApproved, StatusRejected, StatusNeedsRevision},
	StatusNeedsRevision: {StatusPending},
	StatusApproved:      {StatusArchived},
	StatusRejected:      {},
	StatusArchived:      {},
}

// ParseFormStatus validates and converts a string to a FormStatus.
func ParseFormStatus(s string) (FormStatus, bool) {
	status := FormStatus(s)
	return status, validStatuses[status]
}

func (s FormStatus) IsValid() bool { return validStatuses[s] }

func (s FormStatus) String() string { return string(s) }

// CanTransitionTo reports whether the DAG has an edge from s to next.
func (s FormStatus) CanTransitionTo(next FormStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edges leave this status.
func (s FormStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// FormType categorizes a legal form. The set is fixed configuration, not
// contributor input.
type FormType string

const (
	TypeMotion    FormType = "motion"
	TypePetition  FormType = "petition"
	TypeAffidavit FormType = "affidavit"
	TypeNotice    FormType = "notice"
	TypeOrder     FormType = "order"
	TypeComplaint FormType = "complaint"
	TypeWaiver    FormType = "waiver"
	TypeOther     FormType = "other"
)

var validFormTypes = map[FormType]bool{
	TypeMotion:    true,
	TypePetition:  true,
	TypeAffidavit: true,
	TypeNotice:    true,
	TypeOrder:     true,
	TypeComplaint: true,
	TypeWaiver:    true,
	TypeOther:     true,
}

// ParseFormType validates and converts a string to a FormType.
func ParseFormType(s string) (FormType, bool) {
	formType := FormType(s)
	return formType, validFormTypes[formType]
}

func (t FormType) IsValid() bool { return validFormTypes[t] }

func (t FormType) String() string { return string(t) }

// UsageKind distinguishes the two usage counters on an approved form.
type UsageKind string

const (
	UsageView     UsageKind = "view"
	UsageDownload UsageKind = "download"
)

// ParseUsageKind validates and converts a string to a UsageKind.
func ParseUsageKind(s string) (UsageKind, bool) {
	kind := UsageKind(s)
	return kind, kind == UsageView || kind == UsageDownload
}

func (k UsageKind) String() string { return string(k) }
