// Package fsck is the read-only consistency checker.
//
// It examines installed state only; the journal region is outside its
// view, so pending transactions are invisible to it. Violations are
// accumulated and reported, never repaired. The superblock is validated
// against the single compiled-in geometry and the pass itself runs on
// that geometry, as superblock validation has already pinned it.
package fsck

import (
	"fmt"
	"io"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/alloc"
	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/inode"
	"github.com/mit-pdos/vsfs/super"
	"github.com/mit-pdos/vsfs/util"
)

type Checker struct {
	d    disk.Disk
	w    io.Writer
	errs uint64
}

func MkChecker(d disk.Disk, w io.Writer) *Checker {
	return &Checker{d: d, w: w}
}

func (ck *Checker) errorf(format string, a ...interface{}) {
	fmt.Fprintf(ck.w, "ERROR: "+format+"\n", a...)
	ck.errs++
}

// Check runs every structural check and returns the violation count.
func (ck *Checker) Check() uint64 {
	ck.checkSuper(super.DecSuper(ck.d.Read(0)))

	ibmap := alloc.MkBitmap(ck.d.Read(common.IBMAPSTART), common.NINODE)
	dbmap := alloc.MkBitmap(ck.d.Read(common.DBMAPSTART), common.DATABLKS)

	inodes := make([]*inode.Inode, 0, common.NINODE)
	for b := uint64(0); b < common.INODEBLKS; b++ {
		blk := ck.d.Read(common.INODESTART + b)
		for s := uint64(0); s < common.INODEBLK; s++ {
			inodes = append(inodes, inode.DecInode(blk, s))
		}
	}

	// directory references per inode, and which inode owns each data block
	linkRefs := make([]uint32, common.NINODE)
	dataOwner := make([]int, common.DATABLKS)
	for i := range dataOwner {
		dataOwner[i] = -1
	}

	for i, ip := range inodes {
		inum := uint64(i)
		allocated := ip.IsAllocated()
		if allocated != ibmap.Test(inum) {
			ck.errorf("inode %d allocation disagrees with bitmap", inum)
		}
		if !allocated {
			continue
		}

		if ip.Typ > common.TDIR {
			ck.errorf("inode %d has invalid type %d", inum, ip.Typ)
		}

		required := ip.NBlks()
		if required > common.NDIRECT {
			ck.errorf("inode %d size %d exceeds direct pointers", inum, ip.Size)
		}

		seen := uint64(0)
		for _, ptr := range ip.Direct {
			bn := uint64(ptr)
			if bn == common.NULLBNUM {
				continue
			}
			seen++
			if bn < common.DATASTART || bn >= common.TOTALBLKS {
				ck.errorf("inode %d points outside data region (block %d)", inum, bn)
				continue
			}
			di := bn - common.DATASTART
			if dataOwner[di] != -1 && dataOwner[di] != i {
				ck.errorf("data block %d referenced by both inode %d and inode %d",
					bn, dataOwner[di], inum)
			}
			dataOwner[di] = i
		}

		if seen < required {
			ck.errorf("inode %d lacks blocks for declared size (need %d have %d)",
				inum, required, seen)
		} else if seen > required {
			ck.errorf("inode %d has more blocks than its size needs (need %d have %d)",
				inum, required, seen)
		}

		if ip.Typ == common.TDIR {
			ck.checkDir(ip, inum, inodes, linkRefs)
		}
	}

	for i, ip := range inodes {
		if !ip.IsAllocated() {
			continue
		}
		if uint32(ip.Links) != linkRefs[i] {
			ck.errorf("inode %d link count %d disagrees with directory refs %d",
				i, ip.Links, linkRefs[i])
		}
	}

	for bit := uint64(0); bit < common.DATABLKS; bit++ {
		referenced := dataOwner[bit] != -1
		if dbmap.Test(bit) && !referenced {
			ck.errorf("data bitmap marks block %d used but no inode references it",
				bit+common.DATASTART)
		}
		if !dbmap.Test(bit) && referenced {
			ck.errorf("data block %d referenced but bitmap is clear",
				bit+common.DATASTART)
		}
	}

	if n, ok := ibmap.FirstStray(); ok {
		ck.errorf("inode bitmap has stray bit set at %d", n)
	}
	if n, ok := dbmap.FirstStray(); ok {
		ck.errorf("data bitmap has stray bit set at %d", n)
	}

	util.DPrintf(1, "Check: %d violations\n", ck.errs)
	return ck.errs
}

func (ck *Checker) checkSuper(sb *super.Superblock) {
	want := super.MkSuper()
	if sb.Magic != want.Magic {
		ck.errorf("invalid superblock magic 0x%08x", sb.Magic)
	}
	if sb.BlockSize != want.BlockSize {
		ck.errorf("unexpected block size %d", sb.BlockSize)
	}
	if sb.TotalBlocks != want.TotalBlocks {
		ck.errorf("unexpected total blocks %d", sb.TotalBlocks)
	}
	if sb.InodeCount != want.InodeCount {
		ck.errorf("unexpected inode count %d", sb.InodeCount)
	}
	if sb.JournalBlock != want.JournalBlock {
		ck.errorf("journal block index mismatch %d", sb.JournalBlock)
	}
	if sb.InodeBitmap != want.InodeBitmap {
		ck.errorf("inode bitmap index mismatch %d", sb.InodeBitmap)
	}
	if sb.DataBitmap != want.DataBitmap {
		ck.errorf("data bitmap index mismatch %d", sb.DataBitmap)
	}
	if sb.InodeStart != want.InodeStart {
		ck.errorf("inode start index mismatch %d", sb.InodeStart)
	}
	if sb.DataStart != want.DataStart {
		ck.errorf("data start index mismatch %d", sb.DataStart)
	}
}

// checkDir walks a directory inode's entries. linkRefs picks up one count
// per non-free entry; the caller compares it with stored link counts once
// every directory has been walked.
func (ck *Checker) checkDir(ip *inode.Inode, inum uint64,
	inodes []*inode.Inode, linkRefs []uint32) {
	if uint64(ip.Size)%common.DIRENTSZ != 0 {
		ck.errorf("inode %d directory size %d is not entry-aligned", inum, ip.Size)
		return
	}

	remaining := uint64(ip.Size)
	dots := 0
	dotdots := 0
	for i := uint64(0); i < common.NDIRECT && remaining > 0; i++ {
		bn := uint64(ip.Direct[i])
		if bn == common.NULLBNUM {
			ck.errorf("inode %d directory missing data block for bytes still remaining", inum)
			return
		}
		if bn < common.DATASTART || bn >= common.TOTALBLKS {
			// the pointer scan reported this; the block cannot be read
			return
		}
		blk := ck.d.Read(bn)
		chunk := util.Min(remaining, disk.BlockSize)
		for e := uint64(0); e < chunk/common.DIRENTSZ; e++ {
			de := inode.DecDirent(blk, e)
			if de.IsFree() {
				continue
			}
			if uint64(de.Inum) >= common.NINODE {
				ck.errorf("inode %d directory entry points to out-of-range inode %d",
					inum, de.Inum)
				continue
			}
			if !inodes[de.Inum].IsAllocated() {
				ck.errorf("inode %d directory entry references free inode %d",
					inum, de.Inum)
			}
			if !de.HasNul() {
				ck.errorf("inode %d directory entry has unterminated name", inum)
				continue
			}
			name := de.Name()
			if name == "" {
				ck.errorf("inode %d directory entry has empty name", inum)
				continue
			}
			linkRefs[de.Inum]++
			if name == "." {
				if uint64(de.Inum) != inum {
					ck.errorf("inode %d '.' entry points to %d", inum, de.Inum)
				}
				dots++
			} else if name == ".." {
				dotdots++
			}
		}
		remaining -= chunk
	}

	if remaining != 0 {
		ck.errorf("inode %d directory uses more data than direct pointers cover", inum)
	}
	if ip.Size > 0 {
		if dots == 0 {
			ck.errorf("inode %d directory missing '.' entry", inum)
		} else if dots > 1 {
			ck.errorf("inode %d directory has %d '.' entries", inum, dots)
		}
		if dotdots == 0 {
			ck.errorf("inode %d directory missing '..' entry", inum)
		}
	}
}
