// Package e2e drives a running registry over HTTP with godog scenarios.
// The target server is addressed by GOLDLEAVES_E2E_BASE_URL and must share
// GOLDLEAVES_JWT_SIGNING_KEY with the harness so scenarios can mint caller
// tokens for the roles they play.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTTL = time.Hour

// TestContext carries scenario state and the HTTP plumbing shared by every
// step package. Reset gives each scenario fresh caller identities and a
// nonce, so scenarios stay independent of each other and of earlier runs
// against the same database.
type TestContext struct {
	baseURL    string
	signingKey string
	issuer     string
	audience   string
	client     *http.Client

	nonce         string
	contributorID string
	reviewerID    string
	adminID       string
	userID        string
	currentToken  string

	lastStatus int
	lastBody   []byte

	jurisdictionID string
	formID         string
	feedbackID     string
	ticketNumber   string
}

// NewTestContext builds a context from the environment, falling back to the
// server's own defaults so an unconfigured harness works against an
// unconfigured local server.
func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    envOr("GOLDLEAVES_E2E_BASE_URL", "http://localhost:8080"),
		signingKey: envOr("GOLDLEAVES_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		issuer:     envOr("GOLDLEAVES_JWT_ISSUER", "goldleaves"),
		audience:   envOr("GOLDLEAVES_JWT_AUDIENCE", "goldleaves-api"),
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// BaseURL reports the server the harness targets.
func (tc *TestContext) BaseURL() string { return tc.baseURL }

// Reset starts a scenario from a clean slate.
func (tc *TestContext) Reset() {
	tc.nonce = strings.Split(uuid.NewString(), "-")[0]
	tc.contributorID = uuid.NewString()
	tc.reviewerID = uuid.NewString()
	tc.adminID = uuid.NewString()
	tc.userID = uuid.NewString()
	tc.currentToken = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.jurisdictionID = ""
	tc.formID = ""
	tc.feedbackID = ""
	tc.ticketNumber = ""
}

// Nonce is a per-scenario marker steps fold into titles and content so
// repeated runs never collide with records left by earlier ones.
func (tc *TestContext) Nonce() string { return tc.nonce }

// WaitForServer polls the health endpoint until the server answers or the
// deadline passes.
func (tc *TestContext) WaitForServer(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := tc.client.Get(tc.baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("healthz returned %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		time.Sleep(250 * time.Millisecond)
	}
	return lastErr
}

type apiClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (tc *TestContext) signToken(subject, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, apiClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    tc.issuer,
			Audience:  []string{tc.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	return token.SignedString([]byte(tc.signingKey))
}

// AuthenticateAs switches the current caller to the scenario's identity for
// the named role. Each role maps to one stable subject per scenario, so
// re-authenticating as a contributor returns to the same contributor.
func (tc *TestContext) AuthenticateAs(role string) error {
	var subject string
	switch role {
	case "contributor":
		subject = tc.contributorID
	case "reviewer":
		subject = tc.reviewerID
	case "admin", "administrator":
		subject = tc.adminID
		role = "admin"
	case "user":
		subject = tc.userID
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	token, err := tc.signToken(subject, role)
	if err != nil {
		return err
	}
	tc.currentToken = token
	return nil
}

// ClearAuth drops the current token so subsequent requests go out anonymous.
func (tc *TestContext) ClearAuth() { tc.currentToken = "" }

// AuthHeader returns the Authorization header for the current caller, or nil
// when no one is authenticated.
func (tc *TestContext) AuthHeader() map[string]string {
	if tc.currentToken == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + tc.currentToken}
}

// POST sends a JSON request as the current caller.
func (tc *TestContext) POST(path string, body interface{}) error {
	return tc.do(http.MethodPost, path, body, tc.AuthHeader())
}

// PATCH sends a JSON request as the current caller.
func (tc *TestContext) PATCH(path string, body interface{}) error {
	return tc.do(http.MethodPatch, path, body, tc.AuthHeader())
}

// GET sends a request with exactly the given headers; pass nil to go out
// anonymous regardless of who is authenticated.
func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) do(method, path string, body interface{}, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	tc.lastStatus = resp.StatusCode
	tc.lastBody = data
	return nil
}

// GetLastResponseStatus returns the status code of the most recent request.
func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

// GetLastResponseBody returns the raw body of the most recent request.
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField walks a dotted path ("form.status") through the last JSON
// response and returns the value it lands on.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("last response is not a JSON object: %w", err)
	}

	var current interface{} = doc
	for _, segment := range strings.Split(field, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, segment)
		}
		current, ok = obj[segment]
		if !ok {
			return nil, fmt.Errorf("field %q: %q not present in response", field, segment)
		}
	}
	return current, nil
}

// EnsureJurisdiction idempotently creates the scenario's jurisdiction using
// a one-off administrator token, leaving the current caller untouched.
func (tc *TestContext) EnsureJurisdiction() error {
	token, err := tc.signToken(tc.adminID, "admin")
	if err != nil {
		return err
	}

	body := map[string]interface{}{
		"state":      "CA",
		"county":     "Alameda",
		"court_type": "superior",
	}
	if err := tc.do(http.MethodPost, "/jurisdictions", body, map[string]string{
		"Authorization": "Bearer " + token,
	}); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusOK {
		return fmt.Errorf("jurisdiction setup returned %d: %s", tc.lastStatus, tc.lastBody)
	}

	id, err := tc.GetResponseField("id")
	if err != nil {
		return err
	}
	tc.jurisdictionID = fmt.Sprintf("%v", id)
	return nil
}

// Saved scenario state, set by steps as the flow under test produces it.

func (tc *TestContext) GetJurisdictionID() string   { return tc.jurisdictionID }
func (tc *TestContext) SetJurisdictionID(id string) { tc.jurisdictionID = id }
func (tc *TestContext) GetFormID() string           { return tc.formID }
func (tc *TestContext) SetFormID(id string)         { tc.formID = id }
func (tc *TestContext) GetFeedbackID() string       { return tc.feedbackID }
func (tc *TestContext) SetFeedbackID(id string)     { tc.feedbackID = id }
func (tc *TestContext) GetTicketNumber() string     { return tc.ticketNumber }
func (tc *TestContext) SetTicketNumber(tn string)   { tc.ticketNumber = tn }
func (tc *TestContext) GetContributorID() string    { return tc.contributorID }
