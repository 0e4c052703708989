package internaldefs

import (
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goSession.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "gosession_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: goSession.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Accepted email and password pairs."},
	{ID: goSession.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Rejected email and password pairs."},
	{ID: goSession.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Login attempts refused by the throttle."},
	{ID: goSession.MetricSessionIssued, Name: "gosession_session_issued_total", Help: "Access and refresh token pairs issued."},
	{ID: goSession.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: goSession.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: goSession.MetricLogout, Name: "gosession_logout_total", Help: "Logout requests."},
	{ID: goSession.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Accounts created."},
	{ID: goSession.MetricRegisterDuplicate, Name: "gosession_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: goSession.MetricVerificationSent, Name: "gosession_verification_sent_total", Help: "Verification emails delivered to the mailer."},
	{ID: goSession.MetricVerificationMailFailure, Name: "gosession_verification_mail_failure_total", Help: "Verification emails the mailer failed to send."},
	{ID: goSession.MetricVerificationSuccess, Name: "gosession_verification_success_total", Help: "Verification tokens redeemed."},
	{ID: goSession.MetricVerificationFailure, Name: "gosession_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: goSession.MetricVerificationRateLimited, Name: "gosession_verification_rate_limited_total", Help: "Verification emails refused by the throttle."},
	{ID: goSession.MetricIdentityAnonymous, Name: "gosession_identity_anonymous_total", Help: "Requests with credentials that resolved anonymous."},
	{ID: goSession.MetricStaleIdentity, Name: "gosession_stale_identity_total", Help: "Valid credentials naming a deleted user."},
	{ID: goSession.MetricPasswordChanged, Name: "gosession_password_changed_total", Help: "Password changes."},
	{ID: goSession.MetricAccountUpdated, Name: "gosession_account_updated_total", Help: "Email and username changes."},
}

var HistogramDefs = []HistogramDef{
	{ID: goSession.MetricResolveLatency, Name: "gosession_resolve_latency_seconds", Help: "Identity resolution latency."},
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(goSession.HistogramBounds) + 1

// HistogramBoundSuffix renders each bound for use in instrument names,
// e.g. "0_005", ending with "inf".
func HistogramBoundSuffix() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range goSession.HistogramBounds {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
