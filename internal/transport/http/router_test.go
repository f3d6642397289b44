package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/content"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/dedup"
	dirhandler "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/handler"
	dirservice "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/service"
	dirstore "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/store"
	feedbackhandler "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/handler"
	feedbackservice "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/service"
	feedbackstore "github.com/Ghostmonday/Goldleaves-sub001/internal/feedback/store"
	formshandler "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/handler"
	formservice "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/service"
	formstore "github.com/Ghostmonday/Goldleaves-sub001/internal/forms/store"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/logger"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/metrics"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/platform/middleware"
	rewardshandler "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/handler"
	rewardservice "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/service"
	rewardstore "github.com/Ghostmonday/Goldleaves-sub001/internal/rewards/store"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/throttle"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	platformtx "github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/tx"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// testMetrics registers the HTTP metrics once for the whole test binary;
// promauto panics on duplicate registration in the default registry.
var testMetrics = metrics.New()

// testEnv is the whole service assembled on in-memory stores, exercised
// through the public router exactly as a deployment would be.
type testEnv struct {
	router       http.Handler
	verifier     *middleware.JWTVerifier
	jurisdiction id.JurisdictionID
}

func newTestEnv(t *testing.T, submitLimit int, ready ...ReadyCheck) *testEnv {
	t.Helper()
	log := logger.Discard()
	verifier := middleware.NewJWTVerifier("test-signing-key", "goldleaves", "goldleaves-api")

	sharedTx := platformtx.NewSharded()
	formStore := formstore.NewInMemory()
	feedbackStore := feedbackstore.NewInMemory()
	directory := dirservice.New(dirstore.NewInMemory())
	rewards := rewardservice.New(rewardstore.NewMemoryStats(), rewardstore.NewMemoryLedger(), sharedTx)
	forms := formservice.New(formStore, dedup.New(formStore), content.NewInMemory(), directory, rewards, sharedTx)
	feedback := feedbackservice.New(feedbackStore, feedbackStore, formStore, sharedTx)

	limiter := throttle.New(throttle.NewMemory(), log)
	submitMW := limiter.Limit(throttle.Rule{Name: "form_submit", Limit: submitLimit, Window: time.Hour})
	feedbackMW := limiter.Limit(throttle.Rule{Name: "feedback_submit", Limit: submitLimit, Window: time.Hour})

	router := NewRouter(Deps{
		Logger:  log,
		Metrics: testMetrics,
		Handlers: []Handler{
			formshandler.New(forms, log, verifier, formshandler.WithSubmitLimiter(submitMW)),
			feedbackhandler.New(feedback, log, verifier, feedbackhandler.WithSubmitLimiter(feedbackMW)),
			rewardshandler.New(rewards, log, verifier),
			dirhandler.New(directory, log, verifier),
		},
		Ready: ready,
	})

	seedCtx := requestcontext.WithTime(context.Background(), time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))
	j, err := directory.LookupOrCreate(seedCtx, "CA", "Alameda", "superior", nil)
	require.NoError(t, err)

	return &testEnv{router: router, verifier: verifier, jurisdiction: j.ID}
}

func (e *testEnv) bearer(t *testing.T, subject, role string) string {
	t.Helper()
	token, err := e.verifier.Sign(subject, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *testEnv) do(t *testing.T, method, target, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func submitPayload(jurisdictionID id.JurisdictionID, title, contentText string) map[string]any {
	return map[string]any{
		"title":           title,
		"form_type":       "petition",
		"jurisdiction_id": jurisdictionID.String(),
		"page_count":      3,
		"content":         contentText,
		"fields": []map[string]any{
			{"name": "petitioner_name", "label": "Petitioner Name", "field_type": "text", "required": true},
		},
	}
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, 100)

	rr := env.do(t, http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestReadyz_ReportsEachCheck(t *testing.T) {
	env := newTestEnv(t, 100,
		ReadyCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
		ReadyCheck{Name: "redis", Check: func(context.Context) error { return nil }},
	)

	rr := env.do(t, http.MethodGet, "/readyz", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody[map[string]any](t, rr)
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "ok", checks["redis"])
}

func TestReadyz_FailingDependencyIs503(t *testing.T) {
	env := newTestEnv(t, 100,
		ReadyCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	rr := env.do(t, http.MethodGet, "/readyz", "", nil)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 100)

	rr := env.do(t, http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "goldleaves_")
}

func TestSubmitReviewCatalogFlow(t *testing.T) {
	env := newTestEnv(t, 100)
	contributor := id.NewContributorID()
	reviewer := id.NewReviewerID()

	submitted := env.do(t, http.MethodPost, "/forms",
		env.bearer(t, contributor.String(), "contributor"),
		submitPayload(env.jurisdiction, "Petition for Name Change", "A petition to change a legal name in Alameda County."),
	)
	require.Equal(t, http.StatusCreated, submitted.Code, submitted.Body.String())
	form := decodeBody[map[string]any](t, submitted)
	formID, _ := form["id"].(string)
	require.NotEmpty(t, formID)
	assert.Equal(t, "pending", form["status"])
	assert.Equal(t, false, form["is_public"])

	reviewed := env.do(t, http.MethodPost, "/forms/"+formID+"/review",
		env.bearer(t, reviewer.String(), "reviewer"),
		map[string]any{
			"decision": "approve",
			"checklist": map[string]any{
				"content_verified":       true,
				"fields_validated":       true,
				"jurisdiction_confirmed": true,
				"citations_checked":      true,
			},
		},
	)
	require.Equal(t, http.StatusOK, reviewed.Code, reviewed.Body.String())
	review := decodeBody[map[string]any](t, reviewed)
	approvedForm, ok := review["form"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "approved", approvedForm["status"])
	assert.Equal(t, true, approvedForm["is_public"])

	// Anonymous catalog read sees the approved form.
	fetched := env.do(t, http.MethodGet, "/forms/"+formID, "", nil)
	require.Equal(t, http.StatusOK, fetched.Code)

	listed := env.do(t, http.MethodGet, "/forms?status=approved", "", nil)
	require.Equal(t, http.StatusOK, listed.Code)
	catalog := decodeBody[map[string]any](t, listed)
	forms, ok := catalog["forms"].([]any)
	require.True(t, ok)
	require.Len(t, forms, 1)

	// The approval landed on the contributor's ledger in the same flow.
	rewards := env.do(t, http.MethodGet, "/contributors/"+contributor.String()+"/rewards",
		env.bearer(t, contributor.String(), "contributor"), nil)
	require.Equal(t, http.StatusOK, rewards.Code)
	snapshot := decodeBody[map[string]any](t, rewards)
	stats, ok := snapshot["stats"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, stats["forms_approved"])
}

func TestSubmitDuplicateIs409(t *testing.T) {
	env := newTestEnv(t, 100)
	contributor := env.bearer(t, id.NewContributorID().String(), "contributor")
	payload := submitPayload(env.jurisdiction, "Petition for Name Change", "Identical content both times.")

	first := env.do(t, http.MethodPost, "/forms", contributor, payload)
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.do(t, http.MethodPost, "/forms", contributor, payload)
	require.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "duplicate_detected")
	assert.Contains(t, second.Body.String(), "override_duplicate")
}

func TestFeedbackFlow(t *testing.T) {
	env := newTestEnv(t, 100)
	contributor := env.bearer(t, id.NewContributorID().String(), "contributor")
	user := env.bearer(t, id.NewUserID().String(), "user")
	reviewerID := id.NewReviewerID()

	submitted := env.do(t, http.MethodPost, "/forms", contributor,
		submitPayload(env.jurisdiction, "Notice of Hearing", "Notice content."))
	require.Equal(t, http.StatusCreated, submitted.Code)
	form := decodeBody[map[string]any](t, submitted)
	formID, _ := form["id"].(string)

	filed := env.do(t, http.MethodPost, "/forms/"+formID+"/feedback", user, map[string]any{
		"feedback_type": "content_issue",
		"severity":      3,
		"content":       "The hearing date format is wrong for this county.",
	})
	require.Equal(t, http.StatusCreated, filed.Code, filed.Body.String())
	receipt := decodeBody[map[string]any](t, filed)
	ticket, _ := receipt["ticket_number"].(string)
	assert.True(t, strings.HasPrefix(ticket, "GL-"), "got ticket %q", ticket)
	feedbackBody, ok := receipt["feedback"].(map[string]any)
	require.True(t, ok)
	feedbackID, _ := feedbackBody["id"].(string)
	require.NotEmpty(t, feedbackID)

	voted := env.do(t, http.MethodPost, "/feedback/"+feedbackID+"/vote", user, map[string]any{"direction": "up"})
	require.Equal(t, http.StatusOK, voted.Code)
	vote := decodeBody[map[string]any](t, voted)
	votedFeedback, ok := vote["feedback"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, votedFeedback["upvotes"])

	resolved := env.do(t, http.MethodPatch, "/feedback/"+feedbackID+"/status",
		env.bearer(t, reviewerID.String(), "reviewer"),
		map[string]any{"status": "resolved", "resolution": "Corrected the date format."})
	require.Equal(t, http.StatusOK, resolved.Code, resolved.Body.String())
	assert.Contains(t, resolved.Body.String(), `"status":"resolved"`)

	listed := env.do(t, http.MethodGet, "/forms/"+formID+"/feedback", "", nil)
	require.Equal(t, http.StatusOK, listed.Code)
	assert.Contains(t, listed.Body.String(), ticket)
}

func TestSubmissionThrottle(t *testing.T) {
	env := newTestEnv(t, 1)
	contributor := env.bearer(t, id.NewContributorID().String(), "contributor")

	first := env.do(t, http.MethodPost, "/forms", contributor,
		submitPayload(env.jurisdiction, "Motion to Continue", "First submission."))
	require.Equal(t, http.StatusCreated, first.Code)

	second := env.do(t, http.MethodPost, "/forms", contributor,
		submitPayload(env.jurisdiction, "Motion to Compel", "Second submission, different content."))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "rate_limit_exceeded")

	// Another contributor is not affected by the first one's window.
	other := env.do(t, http.MethodPost, "/forms",
		env.bearer(t, id.NewContributorID().String(), "contributor"),
		submitPayload(env.jurisdiction, "Motion to Dismiss", "Third submission by someone else."))
	assert.Equal(t, http.StatusCreated, other.Code)
}

func TestJurisdictionDirectoryEndpoints(t *testing.T) {
	env := newTestEnv(t, 100)

	listed := env.do(t, http.MethodGet, "/jurisdictions", "", nil)
	require.Equal(t, http.StatusOK, listed.Code)
	assert.Contains(t, listed.Body.String(), "CA-ALAMEDA-SUPERIOR")

	created := env.do(t, http.MethodPost, "/jurisdictions",
		env.bearer(t, id.NewUserID().String(), "admin"),
		map[string]any{"state": "NY", "county": "Kings"})
	require.Equal(t, http.StatusOK, created.Code)
	assert.Contains(t, created.Body.String(), "NY-KINGS")

	forbidden := env.do(t, http.MethodPost, "/jurisdictions",
		env.bearer(t, id.NewUserID().String(), "user"),
		map[string]any{"state": "TX"})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t, 100)

	rr := env.do(t, http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNonJSONBodyRejected(t *testing.T) {
	env := newTestEnv(t, 100)

	req := httptest.NewRequest(http.MethodPost, "/forms", strings.NewReader("title=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", env.bearer(t, id.NewContributorID().String(), "contributor"))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "application/json")
}
