// Package mkfs writes a fresh image: superblock, zeroed journal, both
// bitmaps, the root directory inode and its "." and ".." entries. The
// result must pass fsck with zero violations.
package mkfs

import (
	"time"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/alloc"
	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/inode"
	"github.com/mit-pdos/vsfs/super"
)

func Mkfs(d disk.Disk) {
	zero := make([]byte, disk.BlockSize)

	d.Write(0, super.MkSuper().Enc())

	for i := uint64(0); i < common.JRNLBLKS; i++ {
		d.Write(common.JRNLSTART+i, zero)
	}

	ibmap := alloc.MkBitmap(make([]byte, disk.BlockSize), common.NINODE)
	ibmap.Set(common.ROOTINUM)
	d.Write(common.IBMAPSTART, ibmap.Block())

	dbmap := alloc.MkBitmap(make([]byte, disk.BlockSize), common.DATABLKS)
	dbmap.Set(0) // root directory's data block
	d.Write(common.DBMAPSTART, dbmap.Block())

	now := uint32(time.Now().Unix())
	root := &inode.Inode{
		Typ:   common.TDIR,
		Links: 2, // "." and ".."
		Size:  uint32(2 * common.DIRENTSZ),
		Ctime: now,
		Mtime: now,
	}
	root.Direct[0] = uint32(common.DATASTART)
	iblk := make([]byte, disk.BlockSize)
	root.Enc(iblk, common.ROOTINUM)
	d.Write(common.INODESTART, iblk)
	for i := uint64(1); i < common.INODEBLKS; i++ {
		d.Write(common.INODESTART+i, zero)
	}

	dblk := make([]byte, disk.BlockSize)
	dot := inode.MkDirent(uint32(common.ROOTINUM), ".")
	dot.Enc(dblk, 0)
	dotdot := inode.MkDirent(uint32(common.ROOTINUM), "..")
	dotdot.Enc(dblk, 1)
	d.Write(common.DATASTART, dblk)
	for i := uint64(1); i < common.DATABLKS; i++ {
		d.Write(common.DATASTART+i, zero)
	}

	d.Barrier()
}
