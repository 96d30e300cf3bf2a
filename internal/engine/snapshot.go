package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/tuannm99/novamem/internal/alias/util"
	"github.com/tuannm99/novamem/internal/record"
)

const (
	snapshotFile   = "snapshot.dat"
	snapshotMagic  = "NOVAMEM-SNAPSHOT"
	snapshotFormat = 1
)

func snapshotPath(dir string) string { return filepath.Join(dir, snapshotFile) }

type snapshotTable struct {
	Name string           `json:"name"`
	Data record.TableData `json:"data"`
}

// snapshot is the materialized state as of Version.
type snapshot struct {
	Version uint64          `json:"version"`
	Tables  []snapshotTable `json:"tables"`
}

func newSnapshot(version uint64, tables map[string]*record.Table) *snapshot {
	s := &snapshot{Version: version, Tables: make([]snapshotTable, 0, len(tables))}
	for name, t := range tables {
		s.Tables = append(s.Tables, snapshotTable{Name: name, Data: t.Data()})
	}
	sort.Slice(s.Tables, func(i, j int) bool { return s.Tables[i].Name < s.Tables[j].Name })
	return s
}

// tables rebuilds the Table values, checking every table invariant.
func (s *snapshot) tables() (map[string]*record.Table, error) {
	out := make(map[string]*record.Table, len(s.Tables))
	for _, st := range s.Tables {
		if _, dup := out[st.Name]; dup {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "table %s listed twice", st.Name)
		}
		t, err := record.FromData(st.Data)
		if err != nil {
			return nil, errors.Wrapf(ErrCorruptSnapshot, "table %s: %v", st.Name, err)
		}
		out[st.Name] = t
	}
	return out, nil
}

// writeSnapshot replaces the snapshot at path atomically and returns the
// number of bytes written. The first line is a header carrying the body's
// checksum:
//
//	NOVAMEM-SNAPSHOT 1 <version> <xxhash64 hex> <body length>
func writeSnapshot(path string, s *snapshot) (int64, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return 0, errors.Wrap(err, "snapshot: encode")
	}
	header := fmt.Sprintf("%s %d %d %016x %d\n", snapshotMagic, snapshotFormat, s.Version, xxhash.Sum64(body), len(body))

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.Wrap(err, "snapshot: create temp file")
	}
	w := bufio.NewWriter(f)
	_, _ = w.WriteString(header)
	_, _ = w.Write(body)
	if err := w.Flush(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, errors.Wrap(err, "snapshot: write")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return 0, errors.Wrap(err, "snapshot: sync")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, errors.Wrap(err, "snapshot: close")
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, errors.Wrap(err, "snapshot: rename")
	}
	if err := util.SyncDir(filepath.Dir(path)); err != nil {
		return 0, errors.Wrap(err, "snapshot: sync dir")
	}
	return int64(len(header) + len(body)), nil
}

// readSnapshot returns nil, nil when there is no snapshot yet.
func readSnapshot(path string) (*snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "snapshot: read")
	}

	nl := bytes.IndexByte(raw, '\n')
	if nl < 0 {
		return nil, errors.Wrap(ErrCorruptSnapshot, "missing header")
	}
	var (
		magic   string
		format  int
		version uint64
		sum     uint64
		length  int
	)
	if _, err := fmt.Sscanf(string(raw[:nl]), "%s %d %d %x %d", &magic, &format, &version, &sum, &length); err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "bad header: %v", err)
	}
	if magic != snapshotMagic || format != snapshotFormat {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "unknown header %q", raw[:nl])
	}
	body := raw[nl+1:]
	if len(body) != length {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "body is %d bytes, header says %d", len(body), length)
	}
	if xxhash.Sum64(body) != sum {
		return nil, errors.Wrap(ErrCorruptSnapshot, "checksum mismatch")
	}

	var s snapshot
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "decode: %v", err)
	}
	if s.Version != version {
		return nil, errors.Wrap(ErrCorruptSnapshot, "version mismatch between header and body")
	}
	return &s, nil
}
