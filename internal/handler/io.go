package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/vtfsd/vtfs/pkg/wire"
)

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	flags, ok2 := optUint32(r, "flags")
	if !ok1 || !ok2 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	fh, err := h.service.Open(ctx, ino, flags)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteUint64Response(w, 0, fh)
}

func (h *Handler) HandleRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	offset, ok2 := parseUint64(r, "offset")
	size, ok3 := parseUint32(r, "size")
	if !ok1 || !ok2 || !ok3 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	data, err := h.service.Read(ctx, ino, offset, size)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	offset, ok2 := parseUint64(r, "offset")
	dataBase64 := r.URL.Query().Get("data")
	if !ok1 || !ok2 || dataBase64 == "" {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	data, err := base64.StdEncoding.DecodeString(dataBase64)
	if err != nil {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	written, err := h.service.Write(ctx, ino, offset, data)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteUint32Response(w, 0, written)
}

func (h *Handler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok := parseIno(r, "ino")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	if err := h.service.Flush(ctx, ino); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	fh, ok := parseUint64(r, "fh")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	if err := h.service.Release(ctx, fh); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleFSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok := parseIno(r, "ino")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}
	datasync := r.URL.Query().Get("datasync") == "1"

	if err := h.service.FSync(ctx, ino, datasync); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleOpenDir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok := parseIno(r, "ino")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	fh, err := h.service.OpenDir(ctx, ino)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteUint64Response(w, 0, fh)
}

func (h *Handler) HandleReadDir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok1 := parseIno(r, "ino")
	size, ok2 := parseUint64(r, "size")
	cookie, ok3 := optUint64(r, "cookie")
	if !ok1 || !ok2 || !ok3 {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	entries, err := h.service.ReadDir(ctx, ino, size, cookie)
	if err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}

	data, err := wire.EncodeDirents(entries)
	if err != nil {
		wire.WriteResponse(w, enomemNeg, nil)
		return
	}
	wire.WriteResponse(w, 0, data)
}

func (h *Handler) HandleReleaseDir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	fh, ok := parseUint64(r, "fh")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}

	if err := h.service.ReleaseDir(ctx, fh); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}

func (h *Handler) HandleFSyncDir(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !methodIsGet(w, r) {
		return
	}

	ino, ok := parseIno(r, "ino")
	if !ok {
		wire.WriteResponse(w, einvalNeg, nil)
		return
	}
	datasync := r.URL.Query().Get("datasync") == "1"

	if err := h.service.FSyncDir(ctx, ino, datasync); err != nil {
		wire.WriteResponse(w, mapErrorToCode(err), nil)
		return
	}
	wire.WriteResponse(w, 0, nil)
}
