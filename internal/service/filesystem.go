package service

import (
	"context"
	"log/slog"

	"github.com/vtfsd/vtfs/internal/vfs"
	"github.com/vtfsd/vtfs/pkg/logging"
	"github.com/vtfsd/vtfs/pkg/logging/slogext"
)

// FileSystemService is the full VFS callback surface, one method per
// kernel operation. Every method validates against the inode table,
// mutates at most once, and returns either a typed reply value or a
// *vfs.Error carrying the errno the transport should put on the wire.
type FileSystemService interface {
	Init(ctx context.Context)
	Destroy(ctx context.Context)
	Lookup(ctx context.Context, parent vfs.InodeNumber, name string) (*vfs.Entry, error)
	Forget(ctx context.Context, ino vfs.InodeNumber, nlookup uint64)
	GetAttr(ctx context.Context, ino vfs.InodeNumber) (vfs.Attr, error)
	SetAttr(ctx context.Context, ino vfs.InodeNumber, attr vfs.Attr, mask vfs.SetAttrMask) (vfs.Attr, error)
	ReadLink(ctx context.Context, ino vfs.InodeNumber) (string, error)
	MkNod(ctx context.Context, parent vfs.InodeNumber, name string, mode uint32, rdev uint32, creds vfs.Credentials) (*vfs.Entry, error)
	MkDir(ctx context.Context, parent vfs.InodeNumber, name string, mode uint32, creds vfs.Credentials) (*vfs.Entry, error)
	Unlink(ctx context.Context, parent vfs.InodeNumber, name string) error
	RmDir(ctx context.Context, parent vfs.InodeNumber, name string) error
	SymLink(ctx context.Context, target string, parent vfs.InodeNumber, name string, creds vfs.Credentials) (*vfs.Entry, error)
	Rename(ctx context.Context, parent vfs.InodeNumber, name string, newparent vfs.InodeNumber, newname string) error
	Link(ctx context.Context, ino vfs.InodeNumber, newparent vfs.InodeNumber, newname string) (*vfs.Entry, error)
	Open(ctx context.Context, ino vfs.InodeNumber, flags uint32) (uint64, error)
	Read(ctx context.Context, ino vfs.InodeNumber, offset uint64, size uint32) ([]byte, error)
	Write(ctx context.Context, ino vfs.InodeNumber, offset uint64, data []byte) (uint32, error)
	Flush(ctx context.Context, ino vfs.InodeNumber) error
	Release(ctx context.Context, fh uint64) error
	FSync(ctx context.Context, ino vfs.InodeNumber, datasync bool) error
	OpenDir(ctx context.Context, ino vfs.InodeNumber) (uint64, error)
	ReadDir(ctx context.Context, ino vfs.InodeNumber, size uint64, cookie uint64) ([]vfs.Dirent, error)
	ReleaseDir(ctx context.Context, fh uint64) error
	FSyncDir(ctx context.Context, ino vfs.InodeNumber, datasync bool) error
	StatFS(ctx context.Context) vfs.Statfs
	SetXAttr(ctx context.Context, ino vfs.InodeNumber, name string, value []byte, flags vfs.XAttrFlag) error
	GetXAttr(ctx context.Context, ino vfs.InodeNumber, name string, size uint32) ([]byte, int, error)
	ListXAttr(ctx context.Context, ino vfs.InodeNumber, size uint32) ([]byte, int, error)
	RemoveXAttr(ctx context.Context, ino vfs.InodeNumber, name string) error
	Access(ctx context.Context, ino vfs.InodeNumber, mask vfs.AccessMask, creds vfs.Credentials) error
	Create(ctx context.Context, parent vfs.InodeNumber, name string, mode uint32, creds vfs.Credentials) (*vfs.Entry, uint64, error)
}

type fileSystemService struct {
	table  *vfs.Table
	params vfs.Params
	owner  vfs.Credentials
}

func NewFileSystemService(table *vfs.Table, params vfs.Params, owner vfs.Credentials) FileSystemService {
	return &fileSystemService{
		table:  table,
		params: params,
		owner:  owner,
	}
}

func (s *fileSystemService) Init(ctx context.Context) {
	const op = "service.fileSystemService.Init"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Init filesystem",
		slog.Uint64("total_blocks", s.params.TotalBlocks),
		slog.Uint64("total_inodes", s.params.TotalInodes),
	)

	s.table.Init(s.params, s.owner)
}

func (s *fileSystemService) Destroy(ctx context.Context) {
	const op = "service.fileSystemService.Destroy"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Destroy filesystem")

	s.table.Destroy()
}

func (s *fileSystemService) Lookup(ctx context.Context, parent vfs.InodeNumber, name string) (*vfs.Entry, error) {
	const op = "service.fileSystemService.Lookup"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Lookup", slog.Uint64("parent", uint64(parent)), slog.String("name", name))

	entry, err := s.table.Lookup(parent, name)
	if err != nil {
		logger.Debug("Lookup failed", slogext.Err(err), slog.Uint64("parent", uint64(parent)), slog.String("name", name))
		return nil, err
	}

	logger.Debug("Lookup successful", slog.Uint64("ino", uint64(entry.Ino)))
	return entry, nil
}

func (s *fileSystemService) Forget(ctx context.Context, ino vfs.InodeNumber, nlookup uint64) {
	const op = "service.fileSystemService.Forget"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Forget", slog.Uint64("ino", uint64(ino)), slog.Uint64("nlookup", nlookup))

	s.table.Forget(ino, nlookup)
}

func (s *fileSystemService) GetAttr(ctx context.Context, ino vfs.InodeNumber) (vfs.Attr, error) {
	const op = "service.fileSystemService.GetAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("GetAttr", slog.Uint64("ino", uint64(ino)))

	attr, err := s.table.GetAttr(ino)
	if err != nil {
		logger.Debug("GetAttr failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return vfs.Attr{}, err
	}
	return attr, nil
}

func (s *fileSystemService) SetAttr(ctx context.Context, ino vfs.InodeNumber, attr vfs.Attr, mask vfs.SetAttrMask) (vfs.Attr, error) {
	const op = "service.fileSystemService.SetAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("SetAttr", slog.Uint64("ino", uint64(ino)), slog.Uint64("mask", uint64(mask)))

	out, err := s.table.SetAttr(ino, attr, mask)
	if err != nil {
		logger.Debug("SetAttr failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return vfs.Attr{}, err
	}
	return out, nil
}

func (s *fileSystemService) ReadLink(ctx context.Context, ino vfs.InodeNumber) (string, error) {
	const op = "service.fileSystemService.ReadLink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("ReadLink", slog.Uint64("ino", uint64(ino)))

	target, err := s.table.ReadLink(ino)
	if err != nil {
		logger.Debug("ReadLink failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return "", err
	}
	return target, nil
}

func (s *fileSystemService) MkNod(ctx context.Context, parent vfs.InodeNumber, name string, mode uint32, rdev uint32, creds vfs.Credentials) (*vfs.Entry, error) {
	const op = "service.fileSystemService.MkNod"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("MkNod",
		slog.Uint64("parent", uint64(parent)),
		slog.String("name", name),
		slog.Uint64("mode", uint64(mode)),
	)

	entry, err := s.table.MkNod(parent, name, mode, rdev, creds)
	if err != nil {
		logger.Debug("MkNod failed", slogext.Err(err), slog.Uint64("parent", uint64(parent)), slog.String("name", name))
		return nil, err
	}

	logger.Debug("MkNod successful", slog.Uint64("ino", uint64(entry.Ino)))
	return entry, nil
}

func (s *fileSystemService) MkDir(ctx context.Context, parent vfs.InodeNumber, name string, mode uint32, creds vfs.Credentials) (*vfs.Entry, error) {
	const op = "service.fileSystemService.MkDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("MkDir",
		slog.Uint64("parent", uint64(parent)),
		slog.String("name", name),
		slog.Uint64("mode", uint64(mode)),
	)

	entry, err := s.table.MkDir(parent, name, mode, creds)
	if err != nil {
		logger.Debug("MkDir failed", slogext.Err(err), slog.Uint64("parent", uint64(parent)), slog.String("name", name))
		return nil, err
	}

	logger.Debug("MkDir successful", slog.Uint64("ino", uint64(entry.Ino)))
	return entry, nil
}

func (s *fileSystemService) Unlink(ctx context.Context, parent vfs.InodeNumber, name string) error {
	const op = "service.fileSystemService.Unlink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Unlink", slog.Uint64("parent", uint64(parent)), slog.String("name", name))

	if err := s.table.Unlink(parent, name); err != nil {
		logger.Debug("Unlink failed", slogext.Err(err), slog.Uint64("parent", uint64(parent)), slog.String("name", name))
		return err
	}
	return nil
}

func (s *fileSystemService) RmDir(ctx context.Context, parent vfs.InodeNumber, name string) error {
	const op = "service.fileSystemService.RmDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("RmDir", slog.Uint64("parent", uint64(parent)), slog.String("name", name))

	if err := s.table.RmDir(parent, name); err != nil {
		logger.Debug("RmDir failed", slogext.Err(err), slog.Uint64("parent", uint64(parent)), slog.String("name", name))
		return err
	}
	return nil
}

func (s *fileSystemService) SymLink(ctx context.Context, target string, parent vfs.InodeNumber, name string, creds vfs.Credentials) (*vfs.Entry, error) {
	const op = "service.fileSystemService.SymLink"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("SymLink",
		slog.String("target", target),
		slog.Uint64("parent", uint64(parent)),
		slog.String("name", name),
	)

	entry, err := s.table.SymLink(target, parent, name, creds)
	if err != nil {
		logger.Debug("SymLink failed", slogext.Err(err), slog.Uint64("parent", uint64(parent)), slog.String("name", name))
		return nil, err
	}

	logger.Debug("SymLink successful", slog.Uint64("ino", uint64(entry.Ino)))
	return entry, nil
}

func (s *fileSystemService) Rename(ctx context.Context, parent vfs.InodeNumber, name string, newparent vfs.InodeNumber, newname string) error {
	const op = "service.fileSystemService.Rename"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Rename",
		slog.Uint64("parent", uint64(parent)),
		slog.String("name", name),
		slog.Uint64("newparent", uint64(newparent)),
		slog.String("newname", newname),
	)

	if err := s.table.Rename(parent, name, newparent, newname); err != nil {
		logger.Debug("Rename failed", slogext.Err(err),
			slog.Uint64("parent", uint64(parent)),
			slog.String("name", name),
			slog.Uint64("newparent", uint64(newparent)),
			slog.String("newname", newname),
		)
		return err
	}
	return nil
}

func (s *fileSystemService) Link(ctx context.Context, ino vfs.InodeNumber, newparent vfs.InodeNumber, newname string) (*vfs.Entry, error) {
	const op = "service.fileSystemService.Link"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Link",
		slog.Uint64("ino", uint64(ino)),
		slog.Uint64("newparent", uint64(newparent)),
		slog.String("newname", newname),
	)

	entry, err := s.table.Link(ino, newparent, newname)
	if err != nil {
		logger.Debug("Link failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)), slog.String("newname", newname))
		return nil, err
	}

	logger.Debug("Link successful", slog.Uint64("ino", uint64(entry.Ino)), slog.Uint64("nlink", uint64(entry.Attr.NLink)))
	return entry, nil
}

func (s *fileSystemService) Open(ctx context.Context, ino vfs.InodeNumber, flags uint32) (uint64, error) {
	const op = "service.fileSystemService.Open"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Open", slog.Uint64("ino", uint64(ino)), slog.Uint64("flags", uint64(flags)))

	fh, err := s.table.Open(ino, flags)
	if err != nil {
		logger.Debug("Open failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return 0, err
	}
	return fh, nil
}

func (s *fileSystemService) Read(ctx context.Context, ino vfs.InodeNumber, offset uint64, size uint32) ([]byte, error) {
	const op = "service.fileSystemService.Read"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Read",
		slog.Uint64("ino", uint64(ino)),
		slog.Uint64("offset", offset),
		slog.Uint64("size", uint64(size)),
	)

	data, err := s.table.Read(ino, offset, size)
	if err != nil {
		logger.Debug("Read failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return nil, err
	}

	logger.Debug("Read successful", slog.Int("bytes", len(data)))
	return data, nil
}

func (s *fileSystemService) Write(ctx context.Context, ino vfs.InodeNumber, offset uint64, data []byte) (uint32, error) {
	const op = "service.fileSystemService.Write"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Write",
		slog.Uint64("ino", uint64(ino)),
		slog.Uint64("offset", offset),
		slog.Int("len", len(data)),
	)

	written, err := s.table.Write(ino, offset, data)
	if err != nil {
		logger.Debug("Write failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return 0, err
	}

	logger.Debug("Write successful", slog.Uint64("written", uint64(written)))
	return written, nil
}

func (s *fileSystemService) Flush(ctx context.Context, ino vfs.InodeNumber) error {
	const op = "service.fileSystemService.Flush"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Flush", slog.Uint64("ino", uint64(ino)))

	return s.table.Flush(ino)
}

func (s *fileSystemService) Release(ctx context.Context, fh uint64) error {
	const op = "service.fileSystemService.Release"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Release", slog.Uint64("fh", fh))

	if err := s.table.Release(fh); err != nil {
		logger.Warn("Release of unknown handle", slogext.Err(err), slog.Uint64("fh", fh))
		return err
	}
	return nil
}

func (s *fileSystemService) FSync(ctx context.Context, ino vfs.InodeNumber, datasync bool) error {
	const op = "service.fileSystemService.FSync"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("FSync", slog.Uint64("ino", uint64(ino)), slog.Bool("datasync", datasync))

	return s.table.FSync(ino, datasync)
}

func (s *fileSystemService) OpenDir(ctx context.Context, ino vfs.InodeNumber) (uint64, error) {
	const op = "service.fileSystemService.OpenDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("OpenDir", slog.Uint64("ino", uint64(ino)))

	fh, err := s.table.OpenDir(ino)
	if err != nil {
		logger.Debug("OpenDir failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return 0, err
	}
	return fh, nil
}

func (s *fileSystemService) ReadDir(ctx context.Context, ino vfs.InodeNumber, size uint64, cookie uint64) ([]vfs.Dirent, error) {
	const op = "service.fileSystemService.ReadDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("ReadDir",
		slog.Uint64("ino", uint64(ino)),
		slog.Uint64("size", size),
		slog.Uint64("cookie", cookie),
	)

	entries, err := s.table.ReadDir(ino, size, cookie)
	if err != nil {
		logger.Debug("ReadDir failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return nil, err
	}

	logger.Debug("ReadDir successful", slog.Int("entries", len(entries)))
	return entries, nil
}

func (s *fileSystemService) ReleaseDir(ctx context.Context, fh uint64) error {
	const op = "service.fileSystemService.ReleaseDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("ReleaseDir", slog.Uint64("fh", fh))

	if err := s.table.ReleaseDir(fh); err != nil {
		logger.Warn("ReleaseDir of unknown handle", slogext.Err(err), slog.Uint64("fh", fh))
		return err
	}
	return nil
}

func (s *fileSystemService) FSyncDir(ctx context.Context, ino vfs.InodeNumber, datasync bool) error {
	const op = "service.fileSystemService.FSyncDir"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("FSyncDir", slog.Uint64("ino", uint64(ino)), slog.Bool("datasync", datasync))

	return s.table.FSyncDir(ino, datasync)
}

func (s *fileSystemService) StatFS(ctx context.Context) vfs.Statfs {
	const op = "service.fileSystemService.StatFS"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	st := s.table.StatFS()
	logger.Debug("StatFS",
		slog.Uint64("blocks_free", st.BlocksFree),
		slog.Uint64("files_free", st.FilesFree),
	)
	return st
}

func (s *fileSystemService) SetXAttr(ctx context.Context, ino vfs.InodeNumber, name string, value []byte, flags vfs.XAttrFlag) error {
	const op = "service.fileSystemService.SetXAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("SetXAttr",
		slog.Uint64("ino", uint64(ino)),
		slog.String("name", name),
		slog.Int("len", len(value)),
		slog.Uint64("flags", uint64(flags)),
	)

	if err := s.table.SetXAttr(ino, name, value, flags); err != nil {
		logger.Debug("SetXAttr failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)), slog.String("name", name))
		return err
	}
	return nil
}

func (s *fileSystemService) GetXAttr(ctx context.Context, ino vfs.InodeNumber, name string, size uint32) ([]byte, int, error) {
	const op = "service.fileSystemService.GetXAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("GetXAttr", slog.Uint64("ino", uint64(ino)), slog.String("name", name), slog.Uint64("size", uint64(size)))

	val, full, err := s.table.GetXAttr(ino, name, size)
	if err != nil {
		logger.Debug("GetXAttr failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)), slog.String("name", name))
		return nil, 0, err
	}
	return val, full, nil
}

func (s *fileSystemService) ListXAttr(ctx context.Context, ino vfs.InodeNumber, size uint32) ([]byte, int, error) {
	const op = "service.fileSystemService.ListXAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("ListXAttr", slog.Uint64("ino", uint64(ino)), slog.Uint64("size", uint64(size)))

	buf, full, err := s.table.ListXAttr(ino, size)
	if err != nil {
		logger.Debug("ListXAttr failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return nil, 0, err
	}
	return buf, full, nil
}

func (s *fileSystemService) RemoveXAttr(ctx context.Context, ino vfs.InodeNumber, name string) error {
	const op = "service.fileSystemService.RemoveXAttr"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("RemoveXAttr", slog.Uint64("ino", uint64(ino)), slog.String("name", name))

	if err := s.table.RemoveXAttr(ino, name); err != nil {
		logger.Debug("RemoveXAttr failed", slogext.Err(err), slog.Uint64("ino", uint64(ino)), slog.String("name", name))
		return err
	}
	return nil
}

func (s *fileSystemService) Access(ctx context.Context, ino vfs.InodeNumber, mask vfs.AccessMask, creds vfs.Credentials) error {
	const op = "service.fileSystemService.Access"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Access",
		slog.Uint64("ino", uint64(ino)),
		slog.Uint64("mask", uint64(mask)),
		slog.Uint64("uid", uint64(creds.UID)),
		slog.Uint64("gid", uint64(creds.GID)),
	)

	if err := s.table.Access(ino, mask, creds); err != nil {
		logger.Debug("Access denied", slogext.Err(err), slog.Uint64("ino", uint64(ino)))
		return err
	}
	return nil
}

func (s *fileSystemService) Create(ctx context.Context, parent vfs.InodeNumber, name string, mode uint32, creds vfs.Credentials) (*vfs.Entry, uint64, error) {
	const op = "service.fileSystemService.Create"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)
	logger.Debug("Create",
		slog.Uint64("parent", uint64(parent)),
		slog.String("name", name),
		slog.Uint64("mode", uint64(mode)),
	)

	entry, fh, err := s.table.Create(parent, name, mode, creds)
	if err != nil {
		logger.Debug("Create failed", slogext.Err(err), slog.Uint64("parent", uint64(parent)), slog.String("name", name))
		return nil, 0, err
	}

	logger.Debug("Create successful", slog.Uint64("ino", uint64(entry.Ino)), slog.Uint64("fh", fh))
	return entry, fh, nil
}
