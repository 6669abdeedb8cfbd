// Package wire serializes reply payloads into the little-endian binary
// frames the transport puts on the wire: an int64 result code followed
// by an operation-specific body.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"

	"github.com/vtfsd/vtfs/internal/vfs"
)

// EncodeAttr lays out the kernel-visible attribute block.
func EncodeAttr(attr vfs.Attr) ([]byte, error) {
	buf := new(bytes.Buffer)

	fields := []struct {
		name  string
		value any
	}{
		{"ino", uint64(attr.Ino)},
		{"mode", attr.Mode},
		{"uid", attr.UID},
		{"gid", attr.GID},
		{"nlink", attr.NLink},
		{"size", attr.Size},
		{"blocks", attr.Blocks},
		{"atime", attr.Atime.Unix()},
		{"mtime", attr.Mtime.Unix()},
		{"ctime", attr.Ctime.Unix()},
		{"rdev", attr.Rdev},
		{"blocksize", attr.BlockSize},
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f.value); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", f.name, err)
		}
	}

	return buf.Bytes(), nil
}

// EncodeEntry lays out an entry reply: inode number, generation, and the
// attribute block.
func EncodeEntry(entry *vfs.Entry) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, uint64(entry.Ino)); err != nil {
		return nil, fmt.Errorf("failed to encode ino: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, entry.Generation); err != nil {
		return nil, fmt.Errorf("failed to encode generation: %w", err)
	}

	attr, err := EncodeAttr(entry.Attr)
	if err != nil {
		return nil, err
	}
	if _, err := buf.Write(attr); err != nil {
		return nil, fmt.Errorf("failed to encode attr: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeCreate lays out a create reply: the entry followed by the
// minted file handle.
func EncodeCreate(entry *vfs.Entry, fh uint64) ([]byte, error) {
	data, err := EncodeEntry(entry)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(data)
	if err := binary.Write(buf, binary.LittleEndian, fh); err != nil {
		return nil, fmt.Errorf("failed to encode fh: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeStatfs lays out the statvfs block.
func EncodeStatfs(st vfs.Statfs) ([]byte, error) {
	buf := new(bytes.Buffer)

	fields := []struct {
		name  string
		value any
	}{
		{"blocks", st.Blocks},
		{"bfree", st.BlocksFree},
		{"bavail", st.BlocksAvai},
		{"files", st.Files},
		{"ffree", st.FilesFree},
		{"bsize", st.BlockSize},
		{"namelen", st.NameLen},
		{"fsid", st.FSID},
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f.value); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", f.name, err)
		}
	}

	return buf.Bytes(), nil
}

// EncodeDirents lays out a readdir reply as a sequence of fixed-size
// records: name (char[256], NUL-padded), ino (uint64), type (int16, the
// file-type bits shifted into d_type convention), and the resumption
// cookie (uint64). The record size matches vfs.DirentEncodedSize.
func EncodeDirents(entries []vfs.Dirent) ([]byte, error) {
	buf := new(bytes.Buffer)

	for _, e := range entries {
		nameBytes := make([]byte, 256)
		copy(nameBytes, e.Name)
		if _, err := buf.Write(nameBytes); err != nil {
			return nil, fmt.Errorf("failed to encode name: %w", err)
		}

		if err := binary.Write(buf, binary.LittleEndian, uint64(e.Ino)); err != nil {
			return nil, fmt.Errorf("failed to encode ino: %w", err)
		}

		dtype := int16((e.Mode >> 12) & 0xf)
		if err := binary.Write(buf, binary.LittleEndian, dtype); err != nil {
			return nil, fmt.Errorf("failed to encode type: %w", err)
		}

		if err := binary.Write(buf, binary.LittleEndian, e.NextCookie); err != nil {
			return nil, fmt.Errorf("failed to encode cookie: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// EncodeSizedBytes lays out a getxattr/listxattr reply: the full value
// size (uint32) followed by the value itself (absent when the caller
// only probed for the size).
func EncodeSizedBytes(full int, value []byte) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, uint32(full)); err != nil {
		return nil, fmt.Errorf("failed to encode size: %w", err)
	}
	if value != nil {
		if _, err := buf.Write(value); err != nil {
			return nil, fmt.Errorf("failed to encode value: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// WriteResponse frames code and data into the HTTP response body.
func WriteResponse(w http.ResponseWriter, code int64, data []byte) error {
	response := new(bytes.Buffer)

	if err := binary.Write(response, binary.LittleEndian, code); err != nil {
		return fmt.Errorf("failed to write response code: %w", err)
	}

	if data != nil {
		if _, err := response.Write(data); err != nil {
			return fmt.Errorf("failed to write response data: %w", err)
		}
	}

	body := response.Bytes()

	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	return err
}

func WriteUint32Response(w http.ResponseWriter, code int64, value uint32) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}

func WriteUint64Response(w http.ResponseWriter, code int64, value uint64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}
