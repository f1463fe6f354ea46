package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", fmt.Errorf("sweep: %w", context.DeadlineExceeded), SchedulerJobReasonDeadlineExceeded},
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, SchedulerJobReasonDBLockTimeout},
		{"serialization", &pgconn.PgError{Code: "40001"}, SchedulerJobReasonSerializationFailure},
		{"unique", &pgconn.PgError{Code: "23505"}, SchedulerJobReasonUniqueViolation},
		{"other pg", &pgconn.PgError{Code: "42P01"}, SchedulerJobReasonDB},
		{"plain", errors.New("boom"), SchedulerJobReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	m := NewSchedulerMetrics(prometheus.NewRegistry(), Config{ServiceName: "storefront", Environment: "test"})

	m.IncJobRun("expire_stale_orders")
	m.IncJobRun("expire_stale_orders")
	m.IncJobTimeout("expire_stale_orders")
	m.AddBatchProcessed("expire_stale_orders", "failed", 3)
	m.AddBatchProcessed("expire_stale_orders", "failed", 0)
	m.ObserveJobDuration("expire_stale_orders", 250*time.Millisecond)

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("expire_stale_orders")); got != 2 {
		t.Fatalf("expected 2 runs, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobTimeouts.WithLabelValues("expire_stale_orders")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("expire_stale_orders", "failed")); got != 3 {
		t.Fatalf("expected 3 processed, got %v", got)
	}
}
