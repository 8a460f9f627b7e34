// Package super decodes the superblock and owns the open disk.
//
// FsSuper is the session object every operation takes: it carries the
// backing disk together with the layout descriptor read from block 0, so
// several images can be open in one process.
package super

import (
	"fmt"

	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/vsfs/common"
)

// Superblock is the on-disk layout descriptor: nine 32-bit fields at the
// start of block 0, padded to 128 bytes. Written once by mkfs, read-only
// afterwards.
type Superblock struct {
	Magic       uint32
	BlockSize   uint32
	TotalBlocks uint32
	InodeCount  uint32

	JournalBlock uint32
	InodeBitmap  uint32
	DataBitmap   uint32
	InodeStart   uint32
	DataStart    uint32
}

// MkSuper returns the one supported geometry.
func MkSuper() *Superblock {
	return &Superblock{
		Magic:        common.FSMAGIC,
		BlockSize:    uint32(disk.BlockSize),
		TotalBlocks:  uint32(common.TOTALBLKS),
		InodeCount:   uint32(common.NINODE),
		JournalBlock: uint32(common.JRNLSTART),
		InodeBitmap:  uint32(common.IBMAPSTART),
		DataBitmap:   uint32(common.DBMAPSTART),
		InodeStart:   uint32(common.INODESTART),
		DataStart:    uint32(common.DATASTART),
	}
}

// Enc encodes the superblock into a fresh block; bytes past the nine
// fields stay zero.
func (sb *Superblock) Enc() disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt32(sb.Magic)
	enc.PutInt32(sb.BlockSize)
	enc.PutInt32(sb.TotalBlocks)
	enc.PutInt32(sb.InodeCount)
	enc.PutInt32(sb.JournalBlock)
	enc.PutInt32(sb.InodeBitmap)
	enc.PutInt32(sb.DataBitmap)
	enc.PutInt32(sb.InodeStart)
	enc.PutInt32(sb.DataStart)
	return enc.Finish()
}

func DecSuper(blk disk.Block) *Superblock {
	dec := marshal.NewDec(blk)
	sb := &Superblock{}
	sb.Magic = dec.GetInt32()
	sb.BlockSize = dec.GetInt32()
	sb.TotalBlocks = dec.GetInt32()
	sb.InodeCount = dec.GetInt32()
	sb.JournalBlock = dec.GetInt32()
	sb.InodeBitmap = dec.GetInt32()
	sb.DataBitmap = dec.GetInt32()
	sb.InodeStart = dec.GetInt32()
	sb.DataStart = dec.GetInt32()
	return sb
}

// FsSuper is an open image: the disk plus its decoded superblock.
type FsSuper struct {
	Disk  disk.Disk
	Super *Superblock
}

// MkFsSuper reads and checks the superblock of d.
func MkFsSuper(d disk.Disk) (*FsSuper, error) {
	blk := d.Read(0)
	sb := DecSuper(blk)
	if sb.Magic != common.FSMAGIC {
		return nil, fmt.Errorf("invalid VSFS image (magic 0x%08x)", sb.Magic)
	}
	return &FsSuper{Disk: d, Super: sb}, nil
}

func (fs *FsSuper) NInode() common.Inum {
	return common.Inum(fs.Super.InodeCount)
}

// InodeBlkno returns the inode-table block holding inum.
func (fs *FsSuper) InodeBlkno(inum common.Inum) common.Bnum {
	return common.Bnum(fs.Super.InodeStart) + inum/common.INODEBLK
}

// InodeSlot returns inum's slot within its table block.
func (fs *FsSuper) InodeSlot(inum common.Inum) uint64 {
	return inum % common.INODEBLK
}

func (fs *FsSuper) DataEnd() common.Bnum {
	return common.Bnum(fs.Super.TotalBlocks)
}
