package handler

import (
	"net/http"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/vtfsd/vtfs/internal/service"
	"github.com/vtfsd/vtfs/internal/vfs"
	"github.com/vtfsd/vtfs/pkg/wire"
)

// Handler adapts the VFS callback surface onto HTTP requests: query
// parameters in, little-endian binary frames out. It stands in for the
// kernel channel a real mount would provide.
type Handler struct {
	service service.FileSystemService
}

func NewHandler(service service.FileSystemService) *Handler {
	return &Handler{service: service}
}

var (
	einvalNeg = -int64(unix.EINVAL)
	enomemNeg = -int64(unix.ENOMEM)
)

// mapErrorToCode turns a service error into the negative errno the wire
// format carries. Anything that is not a *vfs.Error is an out-of-memory
// class failure.
func mapErrorToCode(err error) int64 {
	return -int64(vfs.Errno(err))
}

func parseIno(r *http.Request, key string) (vfs.InodeNumber, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return vfs.InodeNumber(v), true
}

func parseUint64(r *http.Request, key string) (uint64, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseUint32(r *http.Request, key string) (uint32, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// optUint32 is for parameters with a meaningful zero default (uid, gid,
// flags): absent means zero, garbage still fails.
func optUint32(r *http.Request, key string) (uint32, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// optUint64 is the 64-bit variant of optUint32 (readdir cookies: absent
// means start from the first entry, garbage still fails).
func optUint64(r *http.Request, key string) (uint64, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// credentials extracts the caller identity from the request. The
// transport sends uid/gid explicitly; a request without them acts as
// root, which matches how the process itself mounts the tree.
func credentials(r *http.Request) (vfs.Credentials, bool) {
	uid, ok1 := optUint32(r, "uid")
	gid, ok2 := optUint32(r, "gid")
	if !ok1 || !ok2 {
		return vfs.Credentials{}, false
	}
	return vfs.Credentials{UID: uid, GID: gid}, true
}

func methodIsGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (h *Handler) HandleInit(w http.ResponseWriter, r *http.Request) {
	if !methodIsGet(w, r) {
		return
	}
	h.service.Init(r.Context())
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleDestroy(w http.ResponseWriter, r *http.Request) {
	if !methodIsGet(w, r) {
		return
	}
	h.service.Destroy(r.Context())
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	parent, ok := parseIno(r, "parent")
	name := r.URL.Query().Get("name")
	if !ok || name == "" {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	entry, err := h.service.Lookup(ctx, parent, name)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := wire.EncodeEntry(entry)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleForget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	nlookup, ok2 := parseUint64(r, "nlookup")
	if !ok1 || !ok2 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	h.service.Forget(ctx, ino, nlookup)
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleGetAttr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok := parseIno(r, "ino")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	attr, err := h.service.GetAttr(ctx, ino)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := wire.EncodeAttr(attr)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleSetAttr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	mask, ok2 := parseUint32(r, "to_set")
	if !ok1 || !ok2 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	attr, ok := parseSetAttrFields(r, vfs.SetAttrMask(mask))
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	out, err := h.service.SetAttr(ctx, ino, attr, vfs.SetAttrMask(mask))
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := wire.EncodeAttr(out)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleReadLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok := parseIno(r, "ino")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	target, err := h.service.ReadLink(ctx, ino)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, []byte(target))
}

func (h *Handler) HandleAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	mask, ok2 := parseUint32(r, "mask")
	creds, ok3 := credentials(r)
	if !ok1 || !ok2 || !ok3 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	if err := h.service.Access(ctx, ino, vfs.AccessMask(mask), creds); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleStatFS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	st := h.service.StatFS(ctx)
	data, err := wire.EncodeStatfs(st)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	response := `{"status":"ok","service":"vtfsd"}`
	w.Write([]byte(response))
}
