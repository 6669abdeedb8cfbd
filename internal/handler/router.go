package handler

import (
	"net/http"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// System endpoints
	mux.HandleFunc("/health", h.HandleHealthCheck)

	// Session lifecycle
	mux.HandleFunc("/api/init", h.HandleInit)
	mux.HandleFunc("/api/destroy", h.HandleDestroy)

	// Name-space
	mux.HandleFunc("/api/lookup", h.HandleLookup)
	mux.HandleFunc("/api/forget", h.HandleForget)
	mux.HandleFunc("/api/mknod", h.HandleMkNod)
	mux.HandleFunc("/api/mkdir", h.HandleMkDir)
	mux.HandleFunc("/api/unlink", h.HandleUnlink)
	mux.HandleFunc("/api/rmdir", h.HandleRmDir)
	mux.HandleFunc("/api/symlink", h.HandleSymLink)
	mux.HandleFunc("/api/rename", h.HandleRename)
	mux.HandleFunc("/api/link", h.HandleLink)
	mux.HandleFunc("/api/create", h.HandleCreate)

	// Attributes and permissions
	mux.HandleFunc("/api/getattr", h.HandleGetAttr)
	mux.HandleFunc("/api/setattr", h.HandleSetAttr)
	mux.HandleFunc("/api/readlink", h.HandleReadLink)
	mux.HandleFunc("/api/access", h.HandleAccess)
	mux.HandleFunc("/api/statfs", h.HandleStatFS)

	// File I/O
	mux.HandleFunc("/api/open", h.HandleOpen)
	mux.HandleFunc("/api/read", h.HandleRead)
	mux.HandleFunc("/api/write", h.HandleWrite)
	mux.HandleFunc("/api/flush", h.HandleFlush)
	mux.HandleFunc("/api/release", h.HandleRelease)
	mux.HandleFunc("/api/fsync", h.HandleFSync)

	// Directory I/O
	mux.HandleFunc("/api/opendir", h.HandleOpenDir)
	mux.HandleFunc("/api/readdir", h.HandleReadDir)
	mux.HandleFunc("/api/releasedir", h.HandleReleaseDir)
	mux.HandleFunc("/api/fsyncdir", h.HandleFSyncDir)

	// Extended attributes
	mux.HandleFunc("/api/setxattr", h.HandleSetXAttr)
	mux.HandleFunc("/api/getxattr", h.HandleGetXAttr)
	mux.HandleFunc("/api/listxattr", h.HandleListXAttr)
	mux.HandleFunc("/api/removexattr", h.HandleRemoveXAttr)
}
