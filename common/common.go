// Package common holds the compiled-in image geometry and the few types
// shared by every layer.
package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	FSMAGIC   uint32 = 0x56534653 // "VSFS"
	JRNLMAGIC uint32 = 0x4A524E4C // "JRNL"

	INODESZ  uint64 = 128 // on-disk size
	NDIRECT  uint64 = 8
	NAMELEN  uint64 = 28
	DIRENTSZ uint64 = 32

	INODEBLK  uint64 = disk.BlockSize / INODESZ
	DIRENTBLK uint64 = disk.BlockSize / DIRENTSZ
	NBITBLOCK uint64 = disk.BlockSize * 8
)

// Fixed layout: superblock, journal, the two bitmaps, inode table, data.
const (
	JRNLSTART  uint64 = 1
	JRNLBLKS   uint64 = 16
	IBMAPSTART uint64 = JRNLSTART + JRNLBLKS
	DBMAPSTART uint64 = IBMAPSTART + 1
	INODESTART uint64 = DBMAPSTART + 1
	INODEBLKS  uint64 = 2
	DATASTART  uint64 = INODESTART + INODEBLKS
	DATABLKS   uint64 = 64
	TOTALBLKS  uint64 = DATASTART + DATABLKS

	NINODE uint64 = INODEBLKS * INODEBLK
)

type Inum = uint64
type Bnum = uint64

const (
	ROOTINUM Inum = 0
	NULLBNUM Bnum = 0
)

// Inode type codes.
const (
	TFREE uint16 = 0
	TFILE uint16 = 1
	TDIR  uint16 = 2
)
