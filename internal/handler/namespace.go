package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vtfsd/vtfs/internal/vfs"
	"github.com/vtfsd/vtfs/pkg/wire"
)

// parseSetAttrFields decodes the attribute fields selected by mask.
// Times travel as unix seconds.
func parseSetAttrFields(r *http.Request, mask vfs.SetAttrMask) (vfs.Attr, bool) {
	var attr vfs.Attr

	if mask&vfs.SetAttrMode != 0 {
		v, ok := parseUint32(r, "mode")
		if !ok {
			return attr, false
		}
		attr.Mode = v
	}
	if mask&vfs.SetAttrUID != 0 {
		v, ok := parseUint32(r, "attr_uid")
		if !ok {
			return attr, false
		}
		attr.UID = v
	}
	if mask&vfs.SetAttrGID != 0 {
		v, ok := parseUint32(r, "attr_gid")
		if !ok {
			return attr, false
		}
		attr.GID = v
	}
	if mask&vfs.SetAttrSize != 0 {
		v, ok := parseUint64(r, "size")
		if !ok {
			return attr, false
		}
		attr.Size = v
	}
	for _, f := range []struct {
		bit vfs.SetAttrMask
		key string
		dst *time.Time
	}{
		{vfs.SetAttrATime, "atime", &attr.Atime},
		{vfs.SetAttrMTime, "mtime", &attr.Mtime},
		{vfs.SetAttrCTime, "ctime", &attr.Ctime},
	} {
		if mask&f.bit == 0 {
			continue
		}
		s := r.URL.Query().Get(f.key)
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return attr, false
		}
		*f.dst = time.Unix(sec, 0)
	}

	return attr, true
}

func (h *Handler) HandleMkNod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	parent, ok1 := parseIno(r, "parent")
	name := r.URL.Query().Get("name")
	mode, ok2 := parseUint32(r, "mode")
	rdev, ok3 := optUint32(r, "rdev")
	creds, ok4 := credentials(r)
	if !ok1 || name == "" || !ok2 || !ok3 || !ok4 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	entry, err := h.service.MkNod(ctx, parent, name, mode, rdev, creds)
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

func (h *Handler) HandleMkDir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	parent, ok1 := parseIno(r, "parent")
	name := r.URL.Query().Get("name")
	mode, ok2 := parseUint32(r, "mode")
	creds, ok3 := credentials(r)
	if !ok1 || name == "" || !ok2 || !ok3 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	entry, err := h.service.MkDir(ctx, parent, name, mode, creds)
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

func (h *Handler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.Unlink(ctx, parent, name); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleRmDir(w http.ResponseWriter, r *http.Request) {
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

	if err := h.service.RmDir(ctx, parent, name); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleSymLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	target := r.URL.Query().Get("target")
	parent, ok1 := parseIno(r, "parent")
	name := r.URL.Query().Get("name")
	creds, ok2 := credentials(r)
	if target == "" || !ok1 || name == "" || !ok2 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	entry, err := h.service.SymLink(ctx, target, parent, name, creds)
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

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	parent, ok1 := parseIno(r, "parent")
	name := r.URL.Query().Get("name")
	newparent, ok2 := parseIno(r, "newparent")
	newname := r.URL.Query().Get("newname")
	if !ok1 || name == "" || !ok2 || newname == "" {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	if err := h.service.Rename(ctx, parent, name, newparent, newname); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	newparent, ok2 := parseIno(r, "newparent")
	newname := r.URL.Query().Get("newname")
	if !ok1 || !ok2 || newname == "" {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	entry, err := h.service.Link(ctx, ino, newparent, newname)
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

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	parent, ok1 := parseIno(r, "parent")
	name := r.URL.Query().Get("name")
	mode, ok2 := parseUint32(r, "mode")
	creds, ok3 := credentials(r)
	if !ok1 || name == "" || !ok2 || !ok3 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	entry, fh, err := h.service.Create(ctx, parent, name, mode, creds)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := wire.EncodeCreate(entry, fh)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}
