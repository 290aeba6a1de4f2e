package membership

import "time"

// MetricsCollector receives membership operation metrics.
type MetricsCollector interface {
	RecordOperation(operation, result string)
	RecordOperationDuration(operation string, d time.Duration)
	RecordError(operation, errType string)
	RecordConsolidation(consolidated, deleted int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOperation(string, string)                {}
func (NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (NoopMetricsCollector) RecordError(string, string)                    {}
func (NoopMetricsCollector) RecordConsolidation(int, int)                  {}
