package fsck_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/tchajed/goose/machine/disk"

	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/fsck"
	"github.com/mit-pdos/vsfs/inode"
	"github.com/mit-pdos/vsfs/mkfs"
)

type FsckSuite struct {
	suite.Suite
	d   disk.Disk
	out bytes.Buffer
}

func (s *FsckSuite) SetupTest() {
	s.d = disk.NewMemDisk(common.TOTALBLKS)
	mkfs.Mkfs(s.d)
	s.out.Reset()
}

func TestFsck(t *testing.T) {
	suite.Run(t, new(FsckSuite))
}

func (s *FsckSuite) check() uint64 {
	return fsck.MkChecker(s.d, &s.out).Check()
}

// readInode/writeInode edit the installed inode table directly to plant
// corruptions.
func (s *FsckSuite) readInode(inum uint64) *inode.Inode {
	blk := s.d.Read(common.INODESTART + inum/common.INODEBLK)
	return inode.DecInode(blk, inum%common.INODEBLK)
}

func (s *FsckSuite) writeInode(inum uint64, ip *inode.Inode) {
	bn := common.INODESTART + inum/common.INODEBLK
	blk := s.d.Read(bn)
	ip.Enc(blk, inum%common.INODEBLK)
	s.d.Write(bn, blk)
}

func (s *FsckSuite) setInodeBit(n uint64) {
	blk := s.d.Read(common.IBMAPSTART)
	blk[n/8] |= 1 << (n % 8)
	s.d.Write(common.IBMAPSTART, blk)
}

func (s *FsckSuite) flipDataBit(n uint64) {
	blk := s.d.Read(common.DBMAPSTART)
	blk[n/8] ^= 1 << (n % 8)
	s.d.Write(common.DBMAPSTART, blk)
}

// addRootEntry plants a raw entry in the root directory's block and grows
// root's size to cover it.
func (s *FsckSuite) addRootEntry(slot uint64, de inode.Dirent) {
	blk := s.d.Read(common.DATASTART)
	de.Enc(blk, slot)
	s.d.Write(common.DATASTART, blk)

	root := s.readInode(common.ROOTINUM)
	root.Size = uint32((slot + 1) * common.DIRENTSZ)
	s.writeInode(common.ROOTINUM, root)
}

func (s *FsckSuite) TestFreshImageIsClean() {
	s.Equal(uint64(0), s.check())
	s.Empty(s.out.String())
}

func (s *FsckSuite) TestJournalContentIsInvisible() {
	// the validator only looks at installed state; garbage in the
	// journal region is out of its view
	junk := make([]byte, disk.BlockSize)
	for i := range junk {
		junk[i] = 0x5a
	}
	for i := uint64(0); i < common.JRNLBLKS; i++ {
		s.d.Write(common.JRNLSTART+i, junk)
	}
	s.Equal(uint64(0), s.check())
}

func (s *FsckSuite) TestReferencedBlockBitClear() {
	// the root directory's data block is referenced; clearing its bit is
	// exactly one violation, all other checks unaffected
	s.flipDataBit(0)
	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "bitmap is clear")
}

func (s *FsckSuite) TestUnreferencedBlockBitSet() {
	s.flipDataBit(9)
	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "no inode references it")
}

func (s *FsckSuite) TestInodeBitmapMismatchReportedOnce() {
	s.setInodeBit(12) // marked used, but slot 12 is free
	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "inode 12 allocation disagrees with bitmap")
}

func (s *FsckSuite) TestLinkCountMismatch() {
	root := s.readInode(common.ROOTINUM)
	root.Links = 3
	s.writeInode(common.ROOTINUM, root)

	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "link count 3 disagrees with directory refs 2")
}

func (s *FsckSuite) TestEntryReferencesFreeInode() {
	s.addRootEntry(2, inode.MkDirent(5, "ghost"))
	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "references free inode 5")
}

func (s *FsckSuite) TestEntryReferencesOutOfRangeInode() {
	s.addRootEntry(2, inode.MkDirent(uint32(common.NINODE), "beyond"))
	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "out-of-range inode")
}

func (s *FsckSuite) TestUnterminatedEntryName() {
	de := inode.Dirent{Inum: uint32(common.ROOTINUM)}
	for i := range de.RawName {
		de.RawName[i] = 'a'
	}
	s.addRootEntry(2, de)
	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "unterminated name")
}

func (s *FsckSuite) TestDotEntryPointsElsewhere() {
	blk := s.d.Read(common.DATASTART)
	de := inode.MkDirent(1, ".")
	de.Enc(blk, 0)
	s.d.Write(common.DATASTART, blk)

	// three findings: "." no longer points at the directory itself, it
	// references a free inode, and root's link accounting loses a count
	s.Equal(uint64(3), s.check())
	s.Contains(s.out.String(), "'.' entry points to 1")
}

func (s *FsckSuite) TestDoubleReferencedDataBlock() {
	ip := &inode.Inode{Typ: common.TFILE, Links: 0, Size: uint32(disk.BlockSize)}
	ip.Direct[0] = uint32(common.DATASTART) // root's block
	s.writeInode(1, ip)
	s.setInodeBit(1)

	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "referenced by both inode 0 and inode 1")
}

func (s *FsckSuite) TestSizeWithoutBackingBlocks() {
	ip := &inode.Inode{Typ: common.TFILE, Links: 0, Size: 100}
	s.writeInode(2, ip)
	s.setInodeBit(2)

	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "lacks blocks for declared size")
}

func (s *FsckSuite) TestBlocksWithoutSize() {
	ip := &inode.Inode{Typ: common.TFILE, Links: 0, Size: 0}
	ip.Direct[0] = uint32(common.DATASTART + 1)
	s.writeInode(3, ip)
	s.setInodeBit(3)
	s.flipDataBit(1) // keep the bitmap consistent with the reference

	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "more blocks than its size needs")
}

func (s *FsckSuite) TestPointerOutsideDataRegion() {
	ip := &inode.Inode{Typ: common.TFILE, Links: 0, Size: uint32(disk.BlockSize)}
	ip.Direct[0] = uint32(common.JRNLSTART + 2)
	s.writeInode(1, ip)
	s.setInodeBit(1)

	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "points outside data region")
}

func (s *FsckSuite) TestInvalidInodeType() {
	ip := &inode.Inode{Typ: 9, Links: 0}
	s.writeInode(4, ip)
	s.setInodeBit(4)

	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "invalid type 9")
}

func (s *FsckSuite) TestStrayBitmapBits() {
	s.setInodeBit(common.NINODE + 6)
	s.flipDataBit(common.DATABLKS + 40)

	s.Equal(uint64(2), s.check())
	s.Contains(s.out.String(), "inode bitmap has stray bit set")
	s.Contains(s.out.String(), "data bitmap has stray bit set")
}

func (s *FsckSuite) TestCorruptSuperblockMagic() {
	blk := s.d.Read(0)
	blk[0] = 0
	s.d.Write(0, blk)

	s.Equal(uint64(1), s.check())
	s.Contains(s.out.String(), "invalid superblock magic")
}

func (s *FsckSuite) TestViolationsAccumulate() {
	// several independent corruptions are all reported in one pass
	s.flipDataBit(9)
	s.setInodeBit(12)
	root := s.readInode(common.ROOTINUM)
	root.Links = 5
	s.writeInode(common.ROOTINUM, root)

	s.Equal(uint64(3), s.check())
}
