package log

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWithTraceID_UsesRequestID(t *testing.T) {
	logger, hook := test.NewNullLogger()

	traceID := ErrorWithTraceID(logger, Fields{RequestIDKey: "req-7"}, "boom")

	assert.Equal(t, "req-7", traceID)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "req-7", hook.LastEntry().Data["trace_id"])
}

func TestErrorWithTraceID_GeneratesWhenUnknown(t *testing.T) {
	logger, hook := test.NewNullLogger()

	traceID := ErrorWithTraceID(logger, Fields{RequestIDKey: "unknown"}, "boom")

	_, err := uuid.Parse(traceID)
	assert.NoError(t, err)
	assert.Equal(t, traceID, hook.LastEntry().Data["trace_id"])

	traceID = ErrorWithTraceID(logger, nil, "boom")
	_, err = uuid.Parse(traceID)
	assert.NoError(t, err)
}

func TestWithContext(t *testing.T) {
	logger, _ := test.NewNullLogger()

	entry := WithContext(logger, context.Background())
	assert.Equal(t, "unknown", entry.Data[RequestIDKey])
	assert.NotContains(t, entry.Data, SubjectIDKey)

	ctx := context.WithValue(context.WithValue(context.Background(), RequestIDKey, "req-1"), SubjectIDKey, "42")
	entry = WithContext(logger, ctx)
	assert.Equal(t, "req-1", entry.Data[RequestIDKey])
	assert.Equal(t, "42", entry.Data[SubjectIDKey])
}
