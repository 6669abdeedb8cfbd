package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/vtfsd/vtfs/internal/vfs"
	"github.com/vtfsd/vtfs/pkg/wire"
)

func (h *Handler) HandleSetXAttr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	name := r.URL.Query().Get("name")
	valueBase64 := r.URL.Query().Get("value")
	flags, ok2 := optUint32(r, "flags")
	if !ok1 || name == "" || !ok2 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	// An empty value is legal for xattrs; only undecodable input is not.
	value, err := base64.StdEncoding.DecodeString(valueBase64)
	if err != nil {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	if err := h.service.SetXAttr(ctx, ino, name, value, vfs.XAttrFlag(flags)); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleGetXAttr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	name := r.URL.Query().Get("name")
	size, ok2 := optUint32(r, "size")
	if !ok1 || name == "" || !ok2 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	value, full, err := h.service.GetXAttr(ctx, ino, name, size)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := wire.EncodeSizedBytes(full, value)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleListXAttr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	size, ok2 := optUint32(r, "size")
	if !ok1 || !ok2 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	buf, full, err := h.service.ListXAttr(ctx, ino, size)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := wire.EncodeSizedBytes(full, buf)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleRemoveXAttr(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok := parseIno(r, "ino")
	name := r.URL.Query().Get("name")
	if !ok || name == "" {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	if err := h.service.RemoveXAttr(ctx, ino, name); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}
