package jrnl

import (
	"github.com/mit-pdos/vsfs/util"
)

// Op is an in-progress transaction: block images staged in memory, in
// write order, to be committed to the journal as one atomic unit.
//
// The caller begins an operation, overwrites whole blocks within it, and
// finally commits. To abort the operation simply stop using it; nothing
// reaches the journal before Commit.
type Op struct {
	log  *Log
	bufs []Update
}

func Begin(log *Log) *Op {
	return &Op{log: log}
}

// OverWrite stages a block image for bn. The operation keeps its own copy,
// so the caller may reuse blk. A second write to the same block within one
// operation replaces the first.
func (op *Op) OverWrite(bn uint64, blk []byte) {
	b := util.CloneByteSlice(blk)
	for i := range op.bufs {
		if op.bufs[i].Addr == bn {
			op.bufs[i].Block = b
			return
		}
	}
	op.bufs = append(op.bufs, MkBlockData(bn, b))
}

// NDirty reports how many blocks the operation would journal.
func (op *Op) NDirty() uint64 {
	return uint64(len(op.bufs))
}

// Commit appends the staged writes and a commit record to the journal and
// flushes. ErrLogFull leaves both the journal and real state untouched.
func (op *Op) Commit() error {
	return op.log.Append(op.bufs)
}
