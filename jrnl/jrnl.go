// Package jrnl is the write-ahead journal.
//
// The journal is a fixed region of JRNLBLKS blocks holding an 8-byte
// header (magic + bytes used) followed by records. A transaction is one
// or more Data records (target block + full block image) terminated by a
// Commit record. Append makes a transaction durable in the journal;
// Install replays every committed transaction to its real location and
// resets the region. Real state never changes any other way.
package jrnl

import (
	"encoding/binary"
	"errors"

	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/vsfs/common"
	"github.com/mit-pdos/vsfs/super"
	"github.com/mit-pdos/vsfs/util"
)

const (
	// HDRSZ is the journal header: magic u32 + nbytes_used u32.
	HDRSZ    uint64 = 8
	RECHDRSZ uint64 = 4

	// DATARECSZ is the only valid Data record length: record header,
	// u32 target, one full block.
	DATARECSZ   uint64 = RECHDRSZ + 4 + disk.BlockSize
	COMMITRECSZ uint64 = RECHDRSZ

	// LOGBYTES is the journal capacity, header included.
	LOGBYTES uint64 = common.JRNLBLKS * disk.BlockSize
)

// Record kinds.
const (
	RECDATA   uint16 = 1
	RECCOMMIT uint16 = 2
)

// ErrLogFull is returned when a transaction does not fit in the journal's
// remaining capacity; nothing has been written.
var ErrLogFull = errors.New("journal full")

// Update is one block image destined for Addr.
type Update struct {
	Addr  common.Bnum
	Block disk.Block
}

func MkBlockData(bn common.Bnum, blk disk.Block) Update {
	return Update{Addr: bn, Block: blk}
}

// Log gives access to the journal region of one image.
type Log struct {
	d     disk.Disk
	start common.Bnum // first journal block
	limit common.Bnum // total blocks; replay drops targets past this
}

func MkLog(fs *super.FsSuper) *Log {
	return &Log{
		d:     fs.Disk,
		start: common.Bnum(fs.Super.JournalBlock),
		limit: common.Bnum(fs.Super.TotalBlocks),
	}
}

// readRegion loads the whole journal into one contiguous buffer.
func (l *Log) readRegion() []byte {
	buf := make([]byte, 0, LOGBYTES)
	for i := uint64(0); i < common.JRNLBLKS; i++ {
		buf = append(buf, l.d.Read(l.start+i)...)
	}
	return buf
}

func decHdr(region []byte) (uint32, uint64) {
	dec := marshal.NewDec(region[:HDRSZ])
	magic := dec.GetInt32()
	used := uint64(dec.GetInt32())
	return magic, used
}

func encHdr(region []byte, used uint64) {
	enc := marshal.NewEnc(HDRSZ)
	enc.PutInt32(common.JRNLMAGIC)
	enc.PutInt32(uint32(used))
	copy(region[:HDRSZ], enc.Finish())
}

// Append commits one transaction: a Data record per update, in order,
// followed by a Commit record. On ErrLogFull the journal is untouched.
// On success the records and the advanced header are durable before
// Append returns; the updates' real locations are not written.
func (l *Log) Append(updates []Update) error {
	if len(updates) == 0 {
		// a transaction is one or more data records plus a commit; an
		// empty operation has nothing to make durable
		return nil
	}
	region := l.readRegion()
	magic, used := decHdr(region)
	if magic != common.JRNLMAGIC || used < HDRSZ {
		// zeroed or never-written region; header appears on commit
		used = HDRSZ
	}
	need := uint64(len(updates))*DATARECSZ + COMMITRECSZ
	if used+need > LOGBYTES {
		return ErrLogFull
	}

	pos := used
	for _, u := range updates {
		binary.LittleEndian.PutUint16(region[pos:], RECDATA)
		binary.LittleEndian.PutUint16(region[pos+2:], uint16(DATARECSZ))
		binary.LittleEndian.PutUint32(region[pos+4:], uint32(u.Addr))
		copy(region[pos+8:pos+8+disk.BlockSize], u.Block)
		pos += DATARECSZ
		util.DPrintf(5, "Append: data record for block %d\n", u.Addr)
	}
	binary.LittleEndian.PutUint16(region[pos:], RECCOMMIT)
	binary.LittleEndian.PutUint16(region[pos+2:], uint16(COMMITRECSZ))
	pos += COMMITRECSZ

	// Record blocks first, persisted, then the header block: the advanced
	// header is the commit point and must not reach the disk before the
	// records it covers. The header block may itself hold the
	// transaction's first records, in which case the header write carries
	// them.
	first := used / disk.BlockSize
	last := (pos - 1) / disk.BlockSize
	for i := first; i <= last; i++ {
		if i == 0 {
			continue
		}
		l.d.Write(l.start+i, region[i*disk.BlockSize:(i+1)*disk.BlockSize])
	}
	l.d.Barrier()
	encHdr(region, pos)
	l.d.Write(l.start, region[:disk.BlockSize])
	l.d.Barrier()
	util.DPrintf(1, "Append: %d updates, journal now %d bytes\n",
		len(updates), pos)
	return nil
}

// Install replays every fully-committed transaction in log order, then
// resets the journal. An empty (or never-written) journal is a no-op and
// is not rewritten, so Install is idempotent byte-for-byte.
//
// Data records whose declared length is not DATARECSZ are skipped by that
// length; a zero declared length cannot advance the scan and is treated
// as corruption that ends it. Targets outside the image are dropped.
// Data records with no following Commit are discarded, never applied.
func (l *Log) Install() {
	region := l.readRegion()
	magic, used := decHdr(region)
	if magic != common.JRNLMAGIC {
		return
	}
	if used <= HDRSZ {
		return
	}
	if used > LOGBYTES {
		used = LOGBYTES
	}

	// pending belongs to the transaction being scanned; it is applied by
	// its Commit record or abandoned as torn.
	var pending []Update
	pos := HDRSZ
	for pos+RECHDRSZ <= used {
		kind := binary.LittleEndian.Uint16(region[pos:])
		sz := uint64(binary.LittleEndian.Uint16(region[pos+2:]))
		if sz == 0 {
			util.DPrintf(1, "Install: zero-length record at %d; corrupt, scan ends\n", pos)
			break
		}
		if pos+sz > used {
			break
		}
		if kind == RECDATA {
			if sz != DATARECSZ {
				util.DPrintf(1, "Install: bad data record length %d at %d\n", sz, pos)
				pos += sz
				continue
			}
			bn := common.Bnum(binary.LittleEndian.Uint32(region[pos+4:]))
			blk := region[pos+8 : pos+8+disk.BlockSize]
			pending = append(pending, MkBlockData(bn, blk))
		} else if kind == RECCOMMIT {
			for _, u := range pending {
				if u.Addr < l.limit {
					util.DPrintf(5, "Install: block %d\n", u.Addr)
					l.d.Write(u.Addr, u.Block)
				}
			}
			pending = nil
		}
		pos += sz
	}
	if len(pending) > 0 {
		util.DPrintf(1, "Install: discarding torn transaction of %d records\n",
			len(pending))
	}
	l.reset()
}

// reset rewrites the region to the empty state (magic, used = HDRSZ).
func (l *Log) reset() {
	hdr := make([]byte, disk.BlockSize)
	encHdr(hdr, HDRSZ)
	l.d.Write(l.start, hdr)
	zero := make([]byte, disk.BlockSize)
	for i := uint64(1); i < common.JRNLBLKS; i++ {
		l.d.Write(l.start+i, zero)
	}
	l.d.Barrier()
}
