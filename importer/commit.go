package importer

import (
	"context"
	"fmt"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// Mode selects which drafts a commit writes.
type Mode string

const (
	// ModeNewOnly writes only drafts whose ID was not in the snapshot.
	ModeNewOnly Mode = "new_only"
	// ModeOverwrite merge-writes every draft.
	ModeOverwrite Mode = "overwrite"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNewOnly, ModeOverwrite:
		return Mode(s), nil
	case "":
		return ModeNewOnly, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// BatchWriter commits one chunk of writes atomically.
type BatchWriter interface {
	BatchWrite(ctx context.Context, ops []store.WriteOp) error
}

// CommitOptions tunes a commit.
type CommitOptions struct {
	// BatchSize is the number of writes per chunk, capped at store.MaxBatchOps.
	BatchSize int
}

func (o CommitOptions) batchSize() int {
	if o.BatchSize <= 0 || o.BatchSize > store.MaxBatchOps {
		return store.MaxBatchOps
	}
	return o.BatchSize
}

// CommitResult describes how far a commit got. FailedAtChunk is 1-based and
// zero when every chunk committed.
type CommitResult struct {
	Mode            Mode `json:"mode"`
	TotalRows       int  `json:"total_rows"`
	Skipped         int  `json:"skipped"`
	CommittedRows   int  `json:"committed_rows"`
	Chunks          int  `json:"chunks"`
	CommittedChunks int  `json:"committed_chunks"`
	FailedAtChunk   int  `json:"failed_at_chunk"`
}

// Partial reports whether some but not all chunks were committed.
func (r CommitResult) Partial() bool {
	return r.FailedAtChunk > 0 && r.CommittedChunks > 0
}

// Select returns the drafts a commit in mode would write.
func Select(drafts []OrderDraft, mode Mode) []OrderDraft {
	if mode == ModeOverwrite {
		return drafts
	}
	out := make([]OrderDraft, 0, len(drafts))
	for _, d := range drafts {
		if !d.IsExisting {
			out = append(out, d)
		}
	}
	return out
}

// Commit merge-writes drafts in sequential chunks. Each chunk is its own
// transaction; a failed chunk stops the commit and earlier chunks stay
// applied. The returned *CommitError carries the result so the caller can
// report the partial state. The context is checked between chunks only.
func Commit(ctx context.Context, w BatchWriter, drafts []OrderDraft, mode Mode, opts CommitOptions) (CommitResult, error) {
	rows := Select(drafts, mode)
	size := opts.batchSize()
	res := CommitResult{
		Mode:      mode,
		TotalRows: len(drafts),
		Skipped:   len(drafts) - len(rows),
		Chunks:    (len(rows) + size - 1) / size,
	}

	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunk := res.CommittedChunks + 1
		if err := ctx.Err(); err != nil {
			res.FailedAtChunk = chunk
			return res, &CommitError{Result: res, Err: err}
		}
		ops := make([]store.WriteOp, 0, end-start)
		for _, d := range rows[start:end] {
			ops = append(ops, store.Merge(store.CollectionOrders, d.ID, d.Fields()))
		}
		if err := w.BatchWrite(ctx, ops); err != nil {
			res.FailedAtChunk = chunk
			return res, &CommitError{Result: res, Err: err}
		}
		res.CommittedChunks++
		res.CommittedRows += end - start
	}
	return res, nil
}
