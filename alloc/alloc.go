// Package alloc manipulates a one-block allocation bitmap.
package alloc

import (
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/util"
)

// Bitmap is an in-memory copy of a bitmap block. Bit n lives at byte n/8,
// mask 1<<(n%8). nbits is the valid index range; bits at or past it must
// stay zero on a consistent image.
type Bitmap struct {
	blk   disk.Block
	nbits uint64
}

func MkBitmap(blk disk.Block, nbits uint64) *Bitmap {
	if nbits > common.NBITBLOCK {
		panic("MkBitmap: more bits than a block holds")
	}
	return &Bitmap{blk: blk, nbits: nbits}
}

func (bm *Bitmap) Test(n uint64) bool {
	return bm.blk[n/8]&(1<<(n%8)) != 0
}

func (bm *Bitmap) Set(n uint64) {
	bm.blk[n/8] = bm.blk[n/8] | (1 << (n % 8))
}

// FindFree scans ascending from bit 0 and returns the first clear bit.
// The scan is deterministic so repeated un-installed allocations pick the
// same index.
func (bm *Bitmap) FindFree() (uint64, bool) {
	for n := uint64(0); n < bm.nbits; n++ {
		if !bm.Test(n) {
			util.DPrintf(5, "FindFree: bit %d\n", n)
			return n, true
		}
	}
	return 0, false
}

// FirstStray returns the first set bit past the valid range, if any.
func (bm *Bitmap) FirstStray() (uint64, bool) {
	for n := bm.nbits; n < common.NBITBLOCK; n++ {
		if bm.Test(n) {
			return n, true
		}
	}
	return 0, false
}

// Block returns the backing block image.
func (bm *Bitmap) Block() disk.Block {
	return bm.blk
}
