// Package fs builds metadata transactions against an open image.
//
// Create is the only mutating operation. It stages every modified block
// in memory from a point-in-time read of the installed state and commits
// them to the journal as one transaction; the real bitmap, inode table
// and directory blocks change only when Install replays the journal.
// There is no isolation between operations: two creates committed without
// an intervening install read the same stale state and may reserve the
// same inode or directory slot, and the transaction installed last wins.
package fs

import (
	"errors"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/alloc"
	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/inode"
	"github.com/mit-pdos/vsfs/jrnl"
	"github.com/mit-pdos/vsfs/super"
	"github.com/mit-pdos/vsfs/util"
)

var (
	ErrNoFreeInodes = errors.New("no free inodes")
	ErrDirFull      = errors.New("directory full")
)

// FileSys is one open image: the session object plus its journal.
type FileSys struct {
	Super *super.FsSuper
	Log   *jrnl.Log
}

func MkFileSys(d disk.Disk) (*FileSys, error) {
	fsSuper, err := super.MkFsSuper(d)
	if err != nil {
		return nil, err
	}
	return &FileSys{Super: fsSuper, Log: jrnl.MkLog(fsSuper)}, nil
}

// Create journals a transaction that allocates the lowest free inode as
// an empty file named name in the root directory. name is truncated so it
// always fits the entry's name field with a terminator.
//
// ErrNoFreeInodes, ErrDirFull and jrnl.ErrLogFull are returned with zero
// side effects. On success the transaction is durable in the journal but
// not yet installed.
func (fsys *FileSys) Create(name string) error {
	sb := fsys.Super.Super
	d := fsys.Super.Disk

	ibmap := alloc.MkBitmap(d.Read(common.Bnum(sb.InodeBitmap)),
		uint64(sb.InodeCount))
	inum, ok := ibmap.FindFree()
	if !ok {
		return ErrNoFreeInodes
	}
	ibmap.Set(inum)

	inodeBlkno := fsys.Super.InodeBlkno(inum)
	inodeBlk := d.Read(inodeBlkno)
	ip := &inode.Inode{Typ: common.TFILE, Links: 1, Size: 0}
	ip.Enc(inodeBlk, fsys.Super.InodeSlot(inum))

	// root's recorded size grows by the entry about to be written; root
	// may share a table block with the new inode
	rootBlkno := fsys.Super.InodeBlkno(common.ROOTINUM)
	var rootBlk disk.Block
	if rootBlkno == inodeBlkno {
		rootBlk = inodeBlk
	} else {
		rootBlk = d.Read(rootBlkno)
	}
	rootSlot := fsys.Super.InodeSlot(common.ROOTINUM)
	root := inode.DecInode(rootBlk, rootSlot)
	dirBlkno := common.Bnum(root.Direct[0])
	root.Size += uint32(common.DIRENTSZ)
	root.Enc(rootBlk, rootSlot)

	dirBlk := d.Read(dirBlkno)
	var slot uint64
	var found bool
	for s := uint64(0); s < common.DIRENTBLK; s++ {
		de := inode.DecDirent(dirBlk, s)
		if de.IsFree() {
			slot = s
			found = true
			break
		}
	}
	if !found {
		return ErrDirFull
	}
	de := inode.MkDirent(uint32(inum), name)
	de.Enc(dirBlk, slot)

	util.DPrintf(1, "Create: %q -> inode %d, slot %d\n", name, inum, slot)

	op := jrnl.Begin(fsys.Log)
	op.OverWrite(common.Bnum(sb.InodeBitmap), ibmap.Block())
	op.OverWrite(inodeBlkno, inodeBlk)
	if rootBlkno != inodeBlkno {
		op.OverWrite(rootBlkno, rootBlk)
	}
	op.OverWrite(dirBlkno, dirBlk)
	return op.Commit()
}

// Install replays every committed transaction to its real location and
// clears the journal.
func (fsys *FileSys) Install() {
	fsys.Log.Install()
}
