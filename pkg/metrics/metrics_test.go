package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrack_CountsErrorsByKind(t *testing.T) {
	before := testutil.ToFloat64(OperationErrors.WithLabelValues("test_op", "validation"))

	err := errors.New("boom")
	done := Track("test_op", &err, func(error) string { return "validation" })
	done()

	after := testutil.ToFloat64(OperationErrors.WithLabelValues("test_op", "validation"))
	assert.Equal(t, before+1, after)
}

func TestTrack_SuccessRecordsNoError(t *testing.T) {
	before := testutil.ToFloat64(OperationErrors.WithLabelValues("ok_op", "unknown"))

	var err error
	Track("ok_op", &err, nil)()

	assert.Equal(t, before, testutil.ToFloat64(OperationErrors.WithLabelValues("ok_op", "unknown")))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(OperationDuration, "typestore_operation_duration_seconds"), 1)
}
