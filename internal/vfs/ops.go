package vfs

import "time"

// Lookup resolves name under parent and hands out an entry reference.
func (t *Table) Lookup(parent InodeNumber, name string) (*Entry, error) {
	if !t.validName(name) {
		return nil, ErrInval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.resolveDirLocked(parent)
	if err != nil {
		return nil, err
	}

	childNum := p.dirChild(name)
	if childNum == NoEntry {
		return nil, ErrNoEnt
	}

	child, err := t.resolveLocked(childNum)
	if err != nil {
		return nil, err
	}
	return t.entryLocked(child), nil
}

// GetAttr snapshots the attribute block for num.
func (t *Table) GetAttr(num InodeNumber) (Attr, error) {
	t.mu.Lock()
	n, err := t.resolveOpenLocked(num)
	if err != nil {
		t.mu.Unlock()
		return Attr{}, err
	}
	nlink := n.nlink
	t.mu.Unlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attrLocked(nlink), nil
}

// SetAttr applies the fields selected by mask and returns the resulting
// attribute block. A size change is only legal on a regular file and is
// charged against the free-block counter before any state mutates.
func (t *Table) SetAttr(num InodeNumber, attr Attr, mask SetAttrMask) (Attr, error) {
	t.mu.Lock()
	n, err := t.resolveOpenLocked(num)
	if err != nil {
		t.mu.Unlock()
		return Attr{}, err
	}

	if mask&SetAttrSize != 0 {
		if n.kind == KindDir {
			t.mu.Unlock()
			return Attr{}, ErrIsDir
		}
		if n.kind != KindFile {
			t.mu.Unlock()
			return Attr{}, ErrInval
		}

		n.mu.Lock()
		oldBlocks := n.file.usedBlocks()
		newBlocks := ceilBlocks(attr.Size)
		if newBlocks > oldBlocks {
			delta := newBlocks - oldBlocks
			if delta > t.freeBlocks {
				n.mu.Unlock()
				t.mu.Unlock()
				return Attr{}, ErrNoSpc
			}
			t.freeBlocks -= delta
		} else {
			t.freeBlocks += oldBlocks - newBlocks
		}
		n.truncateLocked(attr.Size)
		n.mu.Unlock()
	}

	nlink := n.nlink
	t.mu.Unlock()

	n.setAttrBasic(mask, attr)

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.attrLocked(nlink), nil
}

// ReadLink returns the target a symlink was created with.
func (t *Table) ReadLink(num InodeNumber) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.resolveLocked(num)
	if err != nil {
		return "", err
	}
	if n.kind != KindSymlink {
		return "", ErrInval
	}
	return n.symlink, nil
}

// MkNod creates a regular file or directory under parent, keyed on the
// file-type bits of mode. Character/block/fifo/socket nodes are not
// materializable here and come back ENOENT.
func (t *Table) MkNod(parent InodeNumber, name string, mode uint32, rdev uint32, creds Credentials) (*Entry, error) {
	switch mode & typeMask {
	case 0, typeFile:
		mode = typeFile | (mode &^ typeMask)
		return t.createNode(parent, name, KindFile, mode, rdev, creds, "")
	case typeDir:
		return t.createNode(parent, name, KindDir, mode, rdev, creds, "")
	default:
		return nil, ErrNoEnt
	}
}

// MkDir creates a directory under parent.
func (t *Table) MkDir(parent InodeNumber, name string, mode uint32, creds Credentials) (*Entry, error) {
	mode = typeDir | (mode &^ typeMask)
	return t.createNode(parent, name, KindDir, mode, 0, creds, "")
}

// SymLink creates a symlink to target under parent. Mode is fixed at
// 0777|S_IFLNK; the link body is immutable afterwards.
func (t *Table) SymLink(target string, parent InodeNumber, name string, creds Credentials) (*Entry, error) {
	return t.createNode(parent, name, KindSymlink, typeLink|0o777, 0, creds, target)
}

// Create registers a regular file under parent and opens it in one step,
// returning the entry plus a fresh file handle. The node is registered,
// bound and its entry reference taken under one table-lock hold; the
// handle is then minted under a second one. No lookup is needed in
// between, since the handle is tied to the inode number just returned.
func (t *Table) Create(parent InodeNumber, name string, mode uint32, creds Credentials) (*Entry, uint64, error) {
	mode = typeFile | (mode &^ typeMask)
	entry, err := t.createNode(parent, name, KindFile, mode, 0, creds, "")
	if err != nil {
		return nil, 0, err
	}

	t.mu.Lock()
	fh := t.mintHandleLocked(t.fileHandles, entry.Ino)
	t.mu.Unlock()
	return entry, fh, nil
}

// createNode is the shared mknod/mkdir/symlink/create path: validate,
// reject duplicates, register the inode, bind the name, and hand out the
// entry reference.
func (t *Table) createNode(parent InodeNumber, name string, kind Kind, mode uint32, rdev uint32, creds Credentials, target string) (*Entry, error) {
	if !t.validName(name) || name == "." || name == ".." {
		return nil, ErrInval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.resolveDirLocked(parent)
	if err != nil {
		return nil, err
	}
	if p.dirChild(name) != NoEntry {
		return nil, ErrExist
	}

	nlink := uint32(1)
	if kind == KindDir {
		nlink = 2 // its own "." plus the name in the parent
	}

	num, err := t.registerLocked(kind, mode, nlink, creds, target)
	if err != nil {
		return nil, err
	}
	n := t.slots[num]
	n.rdev = rdev

	now := time.Now()
	if kind == KindDir {
		n.dir.addChild(".", num)
		n.dir.addChild("..", parent)
		p.nlink++ // the child's ".."
	}
	p.dirAdd(name, num, now)

	return t.entryLocked(n), nil
}

// Link binds an additional name to an existing inode. Directories may
// not be hard-linked.
func (t *Table) Link(num InodeNumber, newparent InodeNumber, newname string) (*Entry, error) {
	if !t.validName(newname) || newname == "." || newname == ".." {
		return nil, ErrInval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.resolveLocked(num)
	if err != nil {
		return nil, err
	}
	if n.kind == KindDir {
		return nil, ErrPerm
	}

	p, err := t.resolveDirLocked(newparent)
	if err != nil {
		return nil, err
	}
	if p.dirChild(newname) != NoEntry {
		return nil, ErrExist
	}

	now := time.Now()
	p.dirAdd(newname, num, now)
	n.nlink++

	n.mu.Lock()
	n.ctime = now
	n.mu.Unlock()

	return t.entryLocked(n), nil
}

// Unlink removes one name for a non-directory. Storage survives until
// the kernel drains its lookup references through Forget.
func (t *Table) Unlink(parent InodeNumber, name string) error {
	if !t.validName(name) {
		return ErrInval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.resolveDirLocked(parent)
	if err != nil {
		return err
	}

	childNum := p.dirChild(name)
	if childNum == NoEntry {
		return ErrNoEnt
	}
	child, err := t.resolveLocked(childNum)
	if err != nil {
		return err
	}
	if child.kind == KindDir {
		return ErrIsDir
	}

	now := time.Now()
	p.dirRemove(name, now)

	child.mu.Lock()
	child.ctime = now
	child.mu.Unlock()

	t.dropLinksLocked(child, false)
	return nil
}

// RmDir removes an empty directory. The child's link count is driven all
// the way to zero so the slot can be reclaimed once the kernel forgets
// it.
func (t *Table) RmDir(parent InodeNumber, name string) error {
	if !t.validName(name) || name == "." {
		return ErrInval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.resolveDirLocked(parent)
	if err != nil {
		return err
	}

	childNum := p.dirChild(name)
	if childNum == NoEntry {
		return ErrNoEnt
	}
	if childNum == p.num {
		return ErrInval
	}
	child, err := t.resolveLocked(childNum)
	if err != nil {
		return err
	}
	if child.kind != KindDir {
		return ErrNotDir
	}
	if !child.dirEmpty() {
		return ErrNotEmpty
	}

	p.dirRemove(name, time.Now())
	p.nlink-- // the child's ".." no longer points here
	t.dropLinksLocked(child, true)
	return nil
}

// Rename moves parent/name to newparent/newname, replacing an existing
// target when the usual rename(2) constraints allow it. Moving a
// directory into its own subtree fails with EINVAL; the whole operation
// runs under the table lock, so concurrent lookups see either the old
// binding or the new one, never a mix.
func (t *Table) Rename(parent InodeNumber, name string, newparent InodeNumber, newname string) error {
	if !t.validName(name) || !t.validName(newname) ||
		name == "." || name == ".." || newname == "." || newname == ".." {
		return ErrInval
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.resolveDirLocked(parent)
	if err != nil {
		return err
	}
	np, err := t.resolveDirLocked(newparent)
	if err != nil {
		return err
	}

	srcNum := p.dirChild(name)
	if srcNum == NoEntry {
		return ErrNoEnt
	}
	src, err := t.resolveLocked(srcNum)
	if err != nil {
		return err
	}

	if p.num == np.num && name == newname {
		return nil
	}

	if src.kind == KindDir {
		// Walk newparent's ancestor chain; finding src there (or src
		// being newparent itself) would create a loop.
		for cur := np; ; {
			if cur.num == srcNum {
				return ErrInval
			}
			if cur.num == RootInode {
				break
			}
			parentNum := cur.dirChild("..")
			assert(parentNum != NoEntry, "directory without ..")
			next, err := t.resolveDirLocked(parentNum)
			if err != nil {
				return err
			}
			cur = next
		}
	}

	now := time.Now()
	existingNum := np.dirChild(newname)
	if existingNum != NoEntry {
		if existingNum == srcNum {
			// Both names already resolve to the same inode; rename(2)
			// leaves the tree alone.
			return nil
		}
		existing, err := t.resolveLocked(existingNum)
		if err != nil {
			return err
		}
		if src.kind == KindDir && existing.kind != KindDir {
			return ErrNotDir
		}
		if src.kind != KindDir && existing.kind == KindDir {
			return ErrIsDir
		}
		if existing.kind == KindDir && !existing.dirEmpty() {
			return ErrNotEmpty
		}

		np.dirUpdate(newname, srcNum, now)
		if existing.kind == KindDir {
			np.nlink--
			t.dropLinksLocked(existing, true)
		} else {
			t.dropLinksLocked(existing, false)
		}
	} else {
		np.dirAdd(newname, srcNum, now)
	}

	p.dirRemove(name, now)

	if src.kind == KindDir && p.num != np.num {
		p.nlink--
		np.nlink++
		src.dirUpdate("..", np.num, now)
	}
	return nil
}

// Open validates num and mints a file handle for it. Directories take
// the OpenDir path instead.
func (t *Table) Open(num InodeNumber, flags uint32) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.resolveLocked(num)
	if err != nil {
		return 0, err
	}
	if n.kind == KindDir {
		return 0, ErrIsDir
	}
	return t.mintHandleLocked(t.fileHandles, num), nil
}

// Release returns a file handle minted by Open or Create. An unknown
// handle means the transport is confused; reject it.
func (t *Table) Release(fh uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.fileHandles[fh]; !ok {
		return ErrInval
	}
	delete(t.fileHandles, fh)
	return nil
}

// Flush has nothing to write back; it only checks the inode still
// resolves.
func (t *Table) Flush(num InodeNumber) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.resolveOpenLocked(num)
	return err
}

// FSync is a no-op commit for an in-memory store.
func (t *Table) FSync(num InodeNumber, datasync bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.resolveOpenLocked(num)
	return err
}

// OpenDir validates num as a directory and mints a directory handle.
func (t *Table) OpenDir(num InodeNumber) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.resolveDirLocked(num)
	if err != nil {
		return 0, err
	}
	return t.mintHandleLocked(t.dirHandles, num), nil
}

// ReleaseDir returns a directory handle minted by OpenDir.
func (t *Table) ReleaseDir(fh uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.dirHandles[fh]; !ok {
		return ErrInval
	}
	delete(t.dirHandles, fh)
	return nil
}

// FSyncDir is a no-op commit for an in-memory store.
func (t *Table) FSyncDir(num InodeNumber, datasync bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.resolveDirLocked(num)
	return err
}

// ReadDir returns the next batch of entries after cookie, bounded by the
// caller's byte budget and the per-response entry cap. A cookie of zero
// starts from the first entry; an empty batch signals the end. Entries
// removed since the cookie was handed out are simply skipped, and
// tombstoned children are dropped rather than surfaced.
func (t *Table) ReadDir(num InodeNumber, size uint64, cookie uint64) ([]Dirent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, err := t.resolveDirLocked(num)
	if err != nil {
		return nil, err
	}

	bufSize := size
	if bufSize > readDirMaxBuf {
		bufSize = readDirMaxBuf
	}
	maxEntries := int(bufSize / DirentEncodedSize)
	if maxEntries > readDirEntriesPerResponse {
		maxEntries = readDirEntriesPerResponse
	}
	if maxEntries == 0 {
		// Not even one entry fits; return the buffer as filled and let
		// the caller retry with more room.
		return nil, nil
	}

	var out []Dirent
	for _, e := range d.dirEntriesAfter(cookie, maxEntries) {
		child := t.slots[e.ino]
		if child == nil {
			continue
		}
		child.mu.Lock()
		mode := child.mode
		child.mu.Unlock()

		out = append(out, Dirent{
			Name:       e.name,
			Ino:        e.ino,
			Mode:       mode,
			NextCookie: e.seq,
		})
	}
	return out, nil
}

// Read returns the byte range [off, off+size) clipped to the file's
// size. Reading fully past the end yields an empty buffer.
func (t *Table) Read(num InodeNumber, off uint64, size uint32) ([]byte, error) {
	t.mu.Lock()
	n, err := t.resolveOpenLocked(num)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if n.kind == KindDir {
		t.mu.Unlock()
		return nil, ErrIsDir
	}
	if n.kind != KindFile {
		t.mu.Unlock()
		return nil, ErrInval
	}
	t.mu.Unlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	data := n.file.read(off, int(size))
	n.atime = time.Now()
	return data, nil
}

// Write copies data into the file at off, reserving any additional
// blocks against the free-block counter first. ENOSPC leaves the file
// untouched.
func (t *Table) Write(num InodeNumber, off uint64, data []byte) (uint32, error) {
	t.mu.Lock()
	n, err := t.resolveOpenLocked(num)
	if err != nil {
		t.mu.Unlock()
		return 0, err
	}
	if n.kind == KindDir {
		t.mu.Unlock()
		return 0, ErrIsDir
	}
	if n.kind != KindFile {
		t.mu.Unlock()
		return 0, ErrInval
	}

	n.mu.Lock()
	oldBlocks := n.file.usedBlocks()
	end := off + uint64(len(data))
	if end > n.file.size {
		newBlocks := ceilBlocks(end)
		if newBlocks > oldBlocks {
			delta := newBlocks - oldBlocks
			if delta > t.freeBlocks {
				n.mu.Unlock()
				t.mu.Unlock()
				return 0, ErrNoSpc
			}
			t.freeBlocks -= delta
		}
	}
	t.mu.Unlock()

	written := n.file.write(off, data)
	now := time.Now()
	n.mtime = now
	n.ctime = now
	n.mu.Unlock()

	return uint32(written), nil
}

// Access consults the standard permission bits for num.
func (t *Table) Access(num InodeNumber, mask AccessMask, creds Credentials) error {
	t.mu.Lock()
	n, err := t.resolveLocked(num)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return n.access(mask, creds)
}

// SetXAttr stores an extended attribute, honoring the create/replace
// flags.
func (t *Table) SetXAttr(num InodeNumber, name string, value []byte, flags XAttrFlag) error {
	t.mu.Lock()
	n, err := t.resolveLocked(num)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return n.setXAttr(name, value, flags)
}

// GetXAttr returns an extended attribute value plus its full size. With
// size==0 only the size is reported; a value larger than size is an
// error without a partial copy.
func (t *Table) GetXAttr(num InodeNumber, name string, size uint32) ([]byte, int, error) {
	t.mu.Lock()
	n, err := t.resolveLocked(num)
	t.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}

	full, err := n.xattrSize(name)
	if err != nil {
		return nil, 0, err
	}
	if size == 0 {
		return nil, full, nil
	}
	val, err := n.getXAttr(name, size)
	if err != nil {
		return nil, 0, err
	}
	return val, full, nil
}

// ListXAttr returns the NUL-separated attribute-name list plus its full
// size, with the same size==0 probe convention as GetXAttr.
func (t *Table) ListXAttr(num InodeNumber, size uint32) ([]byte, int, error) {
	t.mu.Lock()
	n, err := t.resolveLocked(num)
	t.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}

	buf := n.listXAttr()
	if size == 0 {
		return nil, len(buf), nil
	}
	if uint32(len(buf)) > size {
		return nil, 0, ErrInval
	}
	return buf, len(buf), nil
}

// RemoveXAttr drops an extended attribute; absent names are ENODATA.
func (t *Table) RemoveXAttr(num InodeNumber, name string) error {
	t.mu.Lock()
	n, err := t.resolveLocked(num)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return n.removeXAttr(name)
}
