package vfs

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// readDirEntriesPerResponse caps how many children a single readdir
	// reply may carry regardless of the caller's buffer size.
	readDirEntriesPerResponse = 255

	// readDirMaxBuf caps the reply buffer readdir is willing to fill even
	// when the caller asks for more.
	readDirMaxBuf = 64 * 1024

	// DirentEncodedSize is the fixed on-wire footprint of one directory
	// entry (name[256] + ino + type + cookie); readdir uses it to turn the
	// caller's byte budget into an entry budget.
	DirentEncodedSize = 256 + 8 + 2 + 8
)

// Params carries the capacity knobs a Table is built with. A zero
// MaxNameLen falls back to the MaxNameLen constant.
type Params struct {
	TotalBlocks  uint64
	TotalInodes  uint64
	MaxNameLen   uint32
	FilesystemID uint64
}

// Entry is the payload of an "entry" reply. Producing one bumps the
// inode's lookup count; the kernel pays the reference back through
// Forget.
type Entry struct {
	Ino        InodeNumber
	Generation uint64
	Attr       Attr
}

// Dirent is one readdir reply record. NextCookie resumes enumeration
// just past this entry.
type Dirent struct {
	Name       string
	Ino        InodeNumber
	Mode       uint32
	NextCookie uint64
}

// Table is the process-wide inode table: the slot array, the FIFO of
// reclaimable slot numbers, the free-block/free-inode counters, and the
// open-handle bookkeeping. All of it is guarded by mu; per-inode body
// state is guarded by each Inode's own mutex, acquired strictly after mu
// (and parent before child) to keep lock order acyclic.
type Table struct {
	mu sync.Mutex

	slots   []*Inode
	deleted []InodeNumber // FIFO of tombstoned slot numbers

	totalBlocks uint64
	freeBlocks  uint64
	totalInodes uint64
	freeInodes  uint64
	fsid        uint64
	maxName     uint32

	nextFH      uint64
	fileHandles map[uint64]InodeNumber
	dirHandles  map[uint64]InodeNumber
}

// NewTable builds an empty table and runs Init against it with the given
// owner credentials.
func NewTable(params Params, creds Credentials) *Table {
	t := &Table{}
	t.Init(params, creds)
	return t
}

// Init resets every counter, drops whatever the table held, and registers
// the reserved slot 0 plus the root directory at slot 1 with mode
// S_IFDIR|0777 and nlink 3.
func (t *Table) Init(params Params, creds Credentials) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.slots = nil
	t.deleted = nil
	t.totalBlocks = params.TotalBlocks
	t.freeBlocks = params.TotalBlocks
	t.totalInodes = params.TotalInodes
	t.freeInodes = params.TotalInodes
	t.fsid = params.FilesystemID
	t.maxName = params.MaxNameLen
	if t.maxName == 0 {
		t.maxName = MaxNameLen
	}
	t.nextFH = 0
	t.fileHandles = make(map[uint64]InodeNumber)
	t.dirHandles = make(map[uint64]InodeNumber)

	special, err := t.registerLocked(KindSpecial, 0, 1, creds, "")
	assert(err == nil && special == NoInode, "special slot must land at 0")

	root, err := t.registerLocked(KindDir, unix.S_IFDIR|0o777, 3, creds, "")
	assert(err == nil && root == RootInode, "root must land at 1")

	rootNode := t.slots[RootInode]
	rootNode.dir.addChild(".", RootInode)
	rootNode.dir.addChild("..", RootInode)
}

// Destroy releases every live inode and restores the free-block and
// free-inode counters to their totals.
func (t *Table) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, n := range t.slots {
		if n == nil {
			continue
		}
		t.slots[i] = nil
	}
	t.slots = nil
	t.deleted = nil
	t.freeBlocks = t.totalBlocks
	t.freeInodes = t.totalInodes
	t.fileHandles = make(map[uint64]InodeNumber)
	t.dirHandles = make(map[uint64]InodeNumber)
}

// registerLocked allocates a slot (reusing the head of the deleted-slot
// queue when possible), builds the inode, and debits the inode counter.
// Callers must hold t.mu.
func (t *Table) registerLocked(kind Kind, mode uint32, nlink uint32, creds Credentials, symlink string) (InodeNumber, error) {
	if t.freeInodes == 0 {
		return NoEntry, ErrNoSpc
	}

	now := time.Now()
	var num InodeNumber
	if len(t.deleted) > 0 {
		num = t.deleted[0]
		t.deleted = t.deleted[1:]
		assert(t.slots[num] == nil, "reclaimed slot is not a tombstone")
	} else {
		num = InodeNumber(len(t.slots))
		t.slots = append(t.slots, nil)
	}

	n := newInode(num, kind, mode, nlink, creds.UID, creds.GID, now)
	n.symlink = symlink
	t.slots[num] = n
	t.freeInodes--
	return num, nil
}

// resolveLocked applies the liveness check every callback except forget
// begins with: the number must index a non-tombstoned slot holding an
// inode that still has at least one hard link. The reserved special slot
// never resolves. Callers must hold t.mu.
func (t *Table) resolveLocked(num InodeNumber) (*Inode, error) {
	if num >= InodeNumber(len(t.slots)) {
		return nil, ErrNoEnt
	}
	n := t.slots[num]
	if n == nil || n.kind == KindSpecial || n.nlink == 0 {
		return nil, ErrNoEnt
	}
	return n, nil
}

// resolveOpenLocked is the relaxed variant for handle-mediated I/O
// (read, write, getattr, setattr, flush, fsync): an inode whose last
// name is gone stays usable while the kernel still holds lookup
// references, which is what keeps an unlinked-but-open file readable
// until the final forget. Callers must hold t.mu.
func (t *Table) resolveOpenLocked(num InodeNumber) (*Inode, error) {
	if num >= InodeNumber(len(t.slots)) {
		return nil, ErrNoEnt
	}
	n := t.slots[num]
	if n == nil || n.kind == KindSpecial || (n.nlink == 0 && n.nlookup == 0) {
		return nil, ErrNoEnt
	}
	return n, nil
}

// resolveDirLocked resolves num and requires a directory.
func (t *Table) resolveDirLocked(num InodeNumber) (*Inode, error) {
	n, err := t.resolveLocked(num)
	if err != nil {
		return nil, err
	}
	if n.kind != KindDir {
		return nil, ErrNotDir
	}
	return n, nil
}

// tryReleaseLocked tombstones the slot once both counters reach zero,
// crediting the block and inode counters and queueing the number for
// reuse. The root is never released this way. Callers must hold t.mu.
func (t *Table) tryReleaseLocked(n *Inode) {
	if n.nlink != 0 || n.nlookup != 0 || n.num == RootInode {
		return
	}

	n.mu.Lock()
	blocks := n.usedBlocksLocked()
	n.mu.Unlock()

	t.slots[n.num] = nil
	t.deleted = append(t.deleted, n.num)
	t.freeBlocks += blocks
	t.freeInodes++
}

// dropLinksLocked drives nlink to zero (rmdir and rename-over of a
// directory) or decrements once, then attempts release. Callers must
// hold t.mu.
func (t *Table) dropLinksLocked(n *Inode, all bool) {
	if all {
		n.nlink = 0
	} else if n.nlink > 0 {
		n.nlink--
	}
	t.tryReleaseLocked(n)
}

// entryLocked builds an entry reply for n and records the kernel-side
// reference it hands out. Callers must hold t.mu but not n.mu.
func (t *Table) entryLocked(n *Inode) *Entry {
	n.nlookup++

	n.mu.Lock()
	attr := n.attrLocked(n.nlink)
	n.mu.Unlock()

	return &Entry{Ino: n.num, Generation: 0, Attr: attr}
}

// Forget drains nlookup by n and releases the inode once both counters
// are zero. Unlike every other operation it skips the liveness check:
// the kernel may legitimately forget an inode whose last link is already
// gone, and a forget for an already-released slot is silently accepted.
func (t *Table) Forget(num InodeNumber, n uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if num >= InodeNumber(len(t.slots)) {
		return
	}
	node := t.slots[num]
	if node == nil || node.kind == KindSpecial {
		return
	}

	if n > node.nlookup {
		n = node.nlookup
	}
	node.nlookup -= n
	t.tryReleaseLocked(node)
}

// StatFS snapshots the statvfs block.
func (t *Table) StatFS() Statfs {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Statfs{
		Blocks:     t.totalBlocks,
		BlocksFree: t.freeBlocks,
		BlocksAvai: t.freeBlocks,
		Files:      t.totalInodes,
		FilesFree:  t.freeInodes,
		BlockSize:  BlockSize,
		NameLen:    t.maxName,
		FSID:       t.fsid,
	}
}

// mintHandleLocked allocates a fresh non-zero file-handle number.
func (t *Table) mintHandleLocked(handles map[uint64]InodeNumber, num InodeNumber) uint64 {
	t.nextFH++
	handles[t.nextFH] = num
	return t.nextFH
}

// validName rejects names a directory may never bind: empty, over the
// length cap, or containing '/' or NUL.
func (t *Table) validName(name string) bool {
	if name == "" || len(name) > int(t.maxName) {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' || name[i] == 0 {
			return false
		}
	}
	return true
}
