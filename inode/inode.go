// Package inode encodes and decodes inode slots and directory entries at
// their on-disk offsets. All multi-byte fields are little-endian; the
// 16-bit fields rule out the marshal encoder, so the codec works on the
// block bytes directly.
package inode

import (
	"bytes"
	"encoding/binary"

	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/util"
)

// Inode field offsets within a 128-byte slot.
const (
	offTyp    = 0
	offLinks  = 2
	offSize   = 4
	offDirect = 8
	offCtime  = offDirect + 4*common.NDIRECT
	offMtime  = offCtime + 4
)

type Inode struct {
	Typ    uint16
	Links  uint16
	Size   uint32
	Direct [common.NDIRECT]uint32
	Ctime  uint32
	Mtime  uint32
}

func (ip *Inode) IsAllocated() bool {
	return ip.Typ != common.TFREE
}

// NBlks is the number of data blocks Size requires.
func (ip *Inode) NBlks() uint64 {
	return util.RoundUp(uint64(ip.Size), disk.BlockSize)
}

// DecInode reads the inode in slot of an inode-table block.
func DecInode(blk disk.Block, slot uint64) *Inode {
	b := blk[slot*common.INODESZ : (slot+1)*common.INODESZ]
	ip := &Inode{}
	ip.Typ = binary.LittleEndian.Uint16(b[offTyp:])
	ip.Links = binary.LittleEndian.Uint16(b[offLinks:])
	ip.Size = binary.LittleEndian.Uint32(b[offSize:])
	for i := uint64(0); i < common.NDIRECT; i++ {
		ip.Direct[i] = binary.LittleEndian.Uint32(b[offDirect+4*i:])
	}
	ip.Ctime = binary.LittleEndian.Uint32(b[offCtime:])
	ip.Mtime = binary.LittleEndian.Uint32(b[offMtime:])
	return ip
}

// Enc writes the inode into slot of an inode-table block, zeroing the
// slot's padding.
func (ip *Inode) Enc(blk disk.Block, slot uint64) {
	b := blk[slot*common.INODESZ : (slot+1)*common.INODESZ]
	for i := range b {
		b[i] = 0
	}
	binary.LittleEndian.PutUint16(b[offTyp:], ip.Typ)
	binary.LittleEndian.PutUint16(b[offLinks:], ip.Links)
	binary.LittleEndian.PutUint32(b[offSize:], ip.Size)
	for i := uint64(0); i < common.NDIRECT; i++ {
		binary.LittleEndian.PutUint32(b[offDirect+4*i:], ip.Direct[i])
	}
	binary.LittleEndian.PutUint32(b[offCtime:], ip.Ctime)
	binary.LittleEndian.PutUint32(b[offMtime:], ip.Mtime)
}

// Dirent is one 32-byte directory entry. RawName keeps the name field
// exactly as stored; a writer is not required to zero-fill past the
// terminator, and the validator needs the raw bytes to notice a missing
// one.
type Dirent struct {
	Inum    uint32
	RawName [common.NAMELEN]byte
}

// MkDirent builds an entry for name, truncated so the field always
// contains a NUL; the rest of the field is zero-filled.
func MkDirent(inum uint32, name string) Dirent {
	de := Dirent{Inum: inum}
	n := util.Min(uint64(len(name)), common.NAMELEN-1)
	copy(de.RawName[:n], name[:n])
	return de
}

// IsFree reports whether the entry is the free-slot marker.
func (de Dirent) IsFree() bool {
	return de.Inum == 0 && de.RawName[0] == 0
}

// HasNul reports whether the name is terminated within its field.
func (de Dirent) HasNul() bool {
	return bytes.IndexByte(de.RawName[:], 0) >= 0
}

// Name returns the stored name up to its terminator. Only meaningful when
// HasNul holds.
func (de Dirent) Name() string {
	i := bytes.IndexByte(de.RawName[:], 0)
	if i < 0 {
		i = len(de.RawName)
	}
	return string(de.RawName[:i])
}

// DecDirent reads entry slot of a directory data block.
func DecDirent(blk disk.Block, slot uint64) Dirent {
	b := blk[slot*common.DIRENTSZ : (slot+1)*common.DIRENTSZ]
	de := Dirent{}
	de.Inum = binary.LittleEndian.Uint32(b[0:])
	copy(de.RawName[:], b[4:])
	return de
}

// Enc writes the entry into slot of a directory data block.
func (de Dirent) Enc(blk disk.Block, slot uint64) {
	b := blk[slot*common.DIRENTSZ : (slot+1)*common.DIRENTSZ]
	binary.LittleEndian.PutUint32(b[0:], de.Inum)
	copy(b[4:], de.RawName[:])
}
