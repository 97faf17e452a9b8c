package ports

import (
	"context"
	"encoding/json"

	"github.com/soochol/txsched/internal/txsched"
)

// Dispatcher hands a finalized transaction to the downstream processing queue
// and waits for its acknowledgment. Failures wrap txsched.ErrDispatchFailure.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload txsched.TransactionPayload) (json.RawMessage, error)
}

// DispatchRecorder stores the outcome of dispatch attempts.
type DispatchRecorder interface {
	Record(ctx context.Context, record *txsched.DispatchRecord) error
}
