package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "IdentityService"

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal      metric.Int64Counter
	RegisterDurationSeconds    metric.Float64Histogram
	LoginAttemptsTotal         metric.Int64Counter
	PasswordResetRequestsTotal metric.Int64Counter
	EmailDeliveriesTotal       metric.Int64Counter
	DbQueryDurationSeconds     metric.Float64Histogram
	DbQueryErrorsTotal         metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once, from the global MeterProvider.
// Call it after the provider is installed so the Prometheus exporter sees them.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		var err error
		m := &AppMetrics{}

		m.RegisterRequestsTotal, err = meter.Int64Counter(
			"register_requests_total",
			metric.WithDescription("Total number of register requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_requests_total: %v", err)
		}

		m.RegisterDurationSeconds, err = meter.Float64Histogram(
			"register_duration_seconds",
			metric.WithDescription("Duration of register requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create register_duration_seconds: %v", err)
		}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"login_attempts_total",
			metric.WithDescription("Login attempts by outcome"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_attempts_total: %v", err)
		}

		m.PasswordResetRequestsTotal, err = meter.Int64Counter(
			"password_reset_requests_total",
			metric.WithDescription("Total number of password reset requests"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create password_reset_requests_total: %v", err)
		}

		m.EmailDeliveriesTotal, err = meter.Int64Counter(
			"email_deliveries_total",
			metric.WithDescription("Verification and reset emails handed to the mail gateway"),
			metric.WithUnit("{email}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create email_deliveries_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, creating them on first use. Before a real
// provider is installed the global one is a no-op, which is what tests get.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// ObserveQuery records how long a query took and whether it failed.
func (m *AppMetrics) ObserveQuery(ctx context.Context, operation string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// CountLogin records a login attempt with its outcome.
func (m *AppMetrics) CountLogin(ctx context.Context, outcome string) {
	m.LoginAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
