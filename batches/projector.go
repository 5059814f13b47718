package batches

import (
	"context"

	"github.com/google/uuid"
	"github.com/ripkitten-co/addressd/normalize"
)

// Results reads a batch's items ordered by creation time and projects them
// into the pipeline's result shape. Missing nested structures default to
// empty ones, so consumers always see a stable shape no matter what historic
// payload variant produced the item. A missing batch and a batch without
// items both come back as an empty slice.
func (c *Controller[R]) Results(ctx context.Context, batchID uuid.UUID) ([]R, error) {
	items, err := NewBatchStore(c.store, c.pipe).ListItems(ctx, batchID)
	if err != nil {
		return nil, err
	}

	out := make([]R, 0, len(items))
	for _, it := range items {
		out = append(out, c.pipe.Project(it.Status, it.Data))
	}
	return out, nil
}

func emptyIfNil(r normalize.Record) normalize.Record {
	if r == nil {
		return normalize.Record{}
	}
	return r
}

func emptyIfNilMsgs(msgs []normalize.Message) []normalize.Message {
	if msgs == nil {
		return []normalize.Message{}
	}
	return msgs
}
