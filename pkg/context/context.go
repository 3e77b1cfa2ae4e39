package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Context keys for render-job tracing and correlation.
// Using unexported struct pointers prevents key collisions.
var (
	jobIDKey     = &struct{}{}
	batchIDKey   = &struct{}{}
	documentKey  = &struct{}{}
	operationKey = &struct{}{}
	startTimeKey = &struct{}{}
)

// WithJobID adds a render job ID to the context
func WithJobID(parent context.Context, jobID string) context.Context {
	if jobID == "" {
		jobID = GenerateJobID()
	}
	return context.WithValue(parent, jobIDKey, jobID)
}

// GetJobID retrieves the render job ID from context
func GetJobID(ctx context.Context) string {
	if id, ok := ctx.Value(jobIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-job"
}

// WithBatchID adds a batch ID to the context so all jobs of one
// generation run can be correlated
func WithBatchID(parent context.Context, batchID string) context.Context {
	if batchID == "" {
		batchID = GenerateBatchID()
	}
	return context.WithValue(parent, batchIDKey, batchID)
}

// GetBatchID retrieves the batch ID from context
func GetBatchID(ctx context.Context) string {
	if id, ok := ctx.Value(batchIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-batch"
}

// WithDocument adds the document name to the context
func WithDocument(parent context.Context, document string) context.Context {
	return context.WithValue(parent, documentKey, document)
}

// GetDocument retrieves the document name from context
func GetDocument(ctx context.Context) string {
	if doc, ok := ctx.Value(documentKey).(string); ok && doc != "" {
		return doc
	}
	return "unknown-document"
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return "unknown-operation"
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the operation start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	return time.Since(startTime)
}

// GenerateJobID creates a new unique render job ID
func GenerateJobID() string {
	return "job_" + uuid.New().String()
}

// GenerateBatchID creates a new unique batch ID
func GenerateBatchID() string {
	return "batch_" + uuid.New().String()
}

// EnrichContext adds common tracing information to a context
func EnrichContext(parent context.Context) context.Context {
	ctx := parent

	// Add job ID if not present
	if GetJobID(ctx) == "unknown-job" {
		ctx = WithJobID(ctx, GenerateJobID())
	}

	// Add batch ID if not present
	if GetBatchID(ctx) == "unknown-batch" {
		ctx = WithBatchID(ctx, GenerateBatchID())
	}

	// Add start time
	ctx = WithStartTime(ctx, time.Now())

	return ctx
}

// TracingFields returns common tracing fields for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"job_id":      GetJobID(ctx),
		"batch_id":    GetBatchID(ctx),
		"document":    GetDocument(ctx),
		"operation":   GetOperation(ctx),
		"duration_ms": GetDuration(ctx).Milliseconds(),
	}
}
