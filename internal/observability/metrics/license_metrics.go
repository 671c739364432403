package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/licensehub/internal/licensecrypto"
	"github.com/smallbiznis/licensehub/internal/licensekey"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonCanceled             = "canceled"
	ReasonUniqueViolation      = "unique_violation"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonNotFound             = "not_found"
	ReasonDecryptionFailure    = "decryption_failure"
	ReasonKeyGenExhausted      = "key_generation_exhausted"
	ReasonUnknown              = "unknown"
)

const (
	IssueResultIssued    = "issued"
	IssueResultRetried   = "retried"
	IssueResultConflict  = "conflict"
	IssueResultExhausted = "exhausted"
)

const (
	CacheResultHit  = "hit"
	CacheResultMiss = "miss"
)

// LicenseMetrics captures license issuance and verification signals.
type LicenseMetrics struct {
	issued         *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	verifyDuration prometheus.Observer
	keyAttempts    prometheus.Observer
	errors         *prometheus.CounterVec
	policyCache    *prometheus.CounterVec
}

var (
	licenseMetricsOnce sync.Once
	licenseMetrics     *LicenseMetrics
)

// License returns the process-wide license metrics registered on the default registerer.
func License() *LicenseMetrics {
	return LicenseWithConfig(Config{})
}

// LicenseWithConfig is License with service and env const labels taken from cfg.
func LicenseWithConfig(cfg Config) *LicenseMetrics {
	licenseMetricsOnce.Do(func() {
		licenseMetrics = newLicenseMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return licenseMetrics
}

// ResetLicenseMetricsForTest resets the singleton.
func ResetLicenseMetricsForTest() {
	licenseMetricsOnce = sync.Once{}
	licenseMetrics = nil
}

func newLicenseMetrics(registerer prometheus.Registerer, cfg Config) *LicenseMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "licensehub"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	issued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "licensehub_license_issue_total",
		Help:        "License issuance outcomes.",
		ConstLabels: constLabels,
	}, []string{"result"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "licensehub_license_verifications_total",
		Help:        "License verifications by result code.",
		ConstLabels: constLabels,
	}, []string{"code"})
	verifyDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "licensehub_license_verify_duration_seconds",
		Help:        "License verification latency.",
		Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	})
	keyAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "licensehub_license_key_generation_attempts",
		Help:        "Candidates drawn per generated license key.",
		Buckets:     []float64{1, 2, 3, 5, 8, 10},
		ConstLabels: constLabels,
	})
	errorsVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "licensehub_license_errors_total",
		Help:        "License operation errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	policyCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "licensehub_returned_fields_cache_total",
		Help:        "Returned-fields policy cache lookups.",
		ConstLabels: constLabels,
	}, []string{"result"})

	registerer.MustRegister(issued, verifications, verifyDuration, keyAttempts, errorsVec, policyCache)

	return &LicenseMetrics{
		issued:         issued,
		verifications:  verifications,
		verifyDuration: verifyDuration,
		keyAttempts:    keyAttempts,
		errors:         errorsVec,
		policyCache:    policyCache,
	}
}

// IncIssued counts an issuance outcome.
func (m *LicenseMetrics) IncIssued(result string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(result).Inc()
}

// IncVerification counts a verification by its result code.
func (m *LicenseMetrics) IncVerification(code string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(code).Inc()
}

func (m *LicenseMetrics) ObserveVerifyDuration(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.verifyDuration.Observe(d.Seconds())
}

func (m *LicenseMetrics) ObserveKeyAttempts(attempts int) {
	if m == nil || attempts <= 0 {
		return
	}
	m.keyAttempts.Observe(float64(attempts))
}

// IncError counts a failed operation, classified by ClassifyReason.
func (m *LicenseMetrics) IncError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(operation, ClassifyReason(err)).Inc()
}

func (m *LicenseMetrics) IncPolicyCache(result string) {
	if m == nil {
		return
	}
	m.policyCache.WithLabelValues(result).Inc()
}

// ClassifyReason maps an error to a bounded reason label.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, licensecrypto.ErrDecryptionFailure):
		return ReasonDecryptionFailure
	case errors.Is(err, licensekey.ErrKeyGenerationExhausted):
		return ReasonKeyGenExhausted
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ReasonUniqueViolation
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ReasonNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ReasonUniqueViolation
		case "55P03":
			return ReasonDBLockTimeout
		case "40001":
			return ReasonSerializationFailure
		}
	}
	return ReasonUnknown
}
