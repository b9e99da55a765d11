package botcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Result mirrors the siteverify response. Local failures (missing secret,
// unreachable verifier) are reported through the same shape with a
// synthetic error code so callers have a single path.
type Result struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	Action     string   `json:"action,omitempty"`
}

// Verifier checks Turnstile challenge tokens against Cloudflare.
type Verifier struct {
	secret    string
	verifyURL string
	http      *http.Client
}

func NewVerifier(secret, verifyURL string) *Verifier {
	return &Verifier{
		secret:    secret,
		verifyURL: verifyURL,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether verification is configured. When disabled the
// caller decides whether to accept or reject submissions.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) Result {
	if v.secret == "" {
		return Result{Success: false, ErrorCodes: []string{"missing-secret"}}
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Success: false, ErrorCodes: []string{"verify-failed"}}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.http.Do(req)
	if err != nil {
		return Result{Success: false, ErrorCodes: []string{"verify-failed"}}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{Success: false, ErrorCodes: []string{"verify-failed"}}
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{Success: false, ErrorCodes: []string{"verify-failed"}}
	}
	return out
}

// String summarizes the error codes for log lines.
func (r Result) String() string {
	if r.Success {
		return "ok"
	}
	return fmt.Sprintf("denied (%s)", strings.Join(r.ErrorCodes, ","))
}
