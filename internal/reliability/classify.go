package reliability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Category is the failure taxonomy shared by the retry engine and the
// degradation controller.
type Category string

const (
	CategoryNetwork            Category = "network"
	CategoryRateLimit          Category = "rate_limit"
	CategoryAuthentication     Category = "authentication"
	CategoryDataQuality        Category = "data_quality"
	CategoryServiceUnavailable Category = "service_unavailable"
	CategoryTimeout            Category = "timeout"
	CategoryQuotaExceeded      Category = "quota_exceeded"
	CategoryUnknown            Category = "unknown"
)

// CategorizedError wraps a raw failure with its category, retryability and a
// correlation id for log correlation. Not persisted beyond logging.
type CategorizedError struct {
	Category        Category
	Retryable       bool
	SuggestedAction string
	CorrelationID   string
	Err             error
}

func (e *CategorizedError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Category, e.CorrelationID, e.Err)
}

func (e *CategorizedError) Unwrap() error { return e.Err }

// categoryRule owns the keyword tags of one category. Matching is by
// substring intersection against the uppercased error text; rules are checked
// in order and the first hit wins.
type categoryRule struct {
	category  Category
	retryable bool
	action    string
	tags      []string
}

// Quota is checked before rate limit so that QUOTA_EXCEEDED lands in the
// non-retryable category rather than the retryable rate-limit one.
var categoryRules = []categoryRule{
	{CategoryTimeout, true, "retry with a longer timeout or fail over",
		[]string{"TIMEOUT", "TIMED OUT", "DEADLINE_EXCEEDED", "CONTEXT DEADLINE"}},
	{CategoryAuthentication, false, "check API credentials; do not retry",
		[]string{"UNAUTHORIZED", "PERMISSION_DENIED", "FORBIDDEN", "API KEY", "API_KEY_INVALID", "401", "403"}},
	{CategoryQuotaExceeded, false, "switch source set; quota resets later",
		[]string{"QUOTA_EXCEEDED", "QUOTA", "DAILY_LIMIT", "BILLING"}},
	{CategoryRateLimit, true, "back off and retry",
		[]string{"OVER_QUERY_LIMIT", "RATE_LIMIT_EXCEEDED", "RATE LIMIT", "TOO_MANY_REQUESTS", "TOO MANY REQUESTS", "429"}},
	{CategoryServiceUnavailable, true, "retry; consider degrading service level",
		[]string{"SERVICE_UNAVAILABLE", "UNAVAILABLE", "BAD GATEWAY", "502", "503", "504", "MAINTENANCE"}},
	{CategoryNetwork, true, "retry; check connectivity",
		[]string{"CONNECTION", "NETWORK", "NO SUCH HOST", "DNS", "EOF", "RESET", "REFUSED", "BROKEN PIPE"}},
	{CategoryDataQuality, true, "inspect upstream payload; fall through to next source",
		[]string{"PARSE", "MALFORMED", "UNMARSHAL", "INVALID CHARACTER", "INVALID_RESPONSE", "UNEXPECTED END"}},
}

// Classify maps a raw error to a CategorizedError. No match falls back to
// unknown, which is retryable by default.
func Classify(err error) *CategorizedError {
	ce := &CategorizedError{
		Category:        CategoryUnknown,
		Retryable:       true,
		SuggestedAction: "retry with caution",
		CorrelationID:   uuid.NewString(),
		Err:             err,
	}
	if err == nil {
		return ce
	}

	// Context errors carry their own meaning regardless of message text.
	if errors.Is(err, context.DeadlineExceeded) {
		ce.Category = CategoryTimeout
		ce.SuggestedAction = "retry with a longer timeout or fail over"
		return ce
	}

	text := strings.ToUpper(err.Error())
	for _, rule := range categoryRules {
		for _, tag := range rule.tags {
			if strings.Contains(text, tag) {
				ce.Category = rule.category
				ce.Retryable = rule.retryable
				ce.SuggestedAction = rule.action
				return ce
			}
		}
	}
	return ce
}
