package integrations

import (
	"context"
	"io"
	"strings"

	"fairroute/internal/model"
)

// OrderSource is a pull-based feed of order files. A batch handed out by
// FetchBatch must be settled with Ack or Reject before the next fetch.
type OrderSource interface {
	Name() string
	// FetchBatch returns the next unread batch. ok is false when the source
	// is drained.
	FetchBatch(ctx context.Context) (b Batch, ok bool, err error)
	Ack(ctx context.Context, ref string) error
	Reject(ctx context.Context, ref string, reason string) error
}

// Batch is one tabular upload. The caller closes Body.
type Batch struct {
	Ref  string
	Body io.ReadCloser
}

// MapStatus translates a carrier status code to an order status. Codes it
// does not know are reported with ok=false.
func MapStatus(code string) (status model.OrderStatus, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "DELIVERED", "COMPLETED", "POD":
		return model.OrderCompleted, true
	case "PENDING", "CREATED", "OUT_FOR_DELIVERY", "IN_TRANSIT":
		return model.OrderPending, true
	}
	return model.OrderPending, false
}
