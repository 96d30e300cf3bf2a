package wal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/tuannm99/novamem/internal/alias/bx"
	"github.com/tuannm99/novamem/internal/alias/util"
)

var (
	ErrBadMagic  = errors.New("wal: bad magic")
	ErrBadCRC    = errors.New("wal: bad crc")
	ErrBadRecord = errors.New("wal: bad record")
	ErrShortRead = errors.New("wal: short read")
	ErrNoWALFile = errors.New("wal: wal file not found")
	ErrLogFailed = errors.New("wal: log failed, reopen the database")
)

const (
	magicU32   uint32 = 0x4C41574E // "NWAL"
	versionU16        = 2

	FileName = "wal.log"

	// magic(4) ver(2) typ(1) rsv(1) totalLen(4) crc(4)
	headerLen = 4 + 2 + 1 + 1 + 4 + 4
	// lsn(8), then the JSON payload
	minBodyLen = 8

	maxRecordLen = 64 << 20
)

type Options struct {
	// NoSync skips the fsync before Append returns. Appends are durable
	// by default.
	NoSync bool
	Logger *slog.Logger
}

// logFile is the part of *os.File the manager appends through.
type logFile interface {
	io.Writer
	io.Seeker
	io.Closer
	Sync() error
	Truncate(size int64) error
}

// Manager is the append-only log. Entries of one transaction are written
// contiguously, bracketed by begin and commit markers, and transactions are
// appended in commit-version order.
type Manager struct {
	mu     sync.Mutex
	f      logFile
	dir    string
	path   string
	lsn    uint64
	noSync bool
	log    *slog.Logger
	// set by a failed append; every later append is refused
	failed error

	wmu      sync.Mutex
	appended uint64
	advanced chan struct{}
}

func Open(dir string, opts Options) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "wal: create dir")
	}
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "wal: open %s", path)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		f:        f,
		dir:      dir,
		path:     path,
		noSync:   opts.NoSync,
		log:      log.With("component", "wal"),
		advanced: make(chan struct{}),
	}
	if err := m.initLastLSN(); err != nil {
		m.log.Warn("scan for last lsn failed", "err", err)
	}
	return m, nil
}

func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return errors.Wrap(err, "wal: close")
}

func (m *Manager) Path() string { return m.path }

// SyncOnAppend reports whether Append fsyncs before returning.
func (m *Manager) SyncOnAppend() bool { return !m.noSync }

// Err returns the error that put the log into the failed state, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

// Size is the current length of the log file in bytes.
func (m *Manager) Size() (int64, error) {
	st, err := os.Stat(m.path)
	if err != nil {
		return 0, errors.Wrap(err, "wal: stat")
	}
	return st.Size(), nil
}

// Appended is the highest transaction id whose append has finished.
func (m *Manager) Appended() uint64 {
	m.wmu.Lock()
	defer m.wmu.Unlock()
	return m.appended
}

// Reset moves the append watermark to v. Recovery calls it once the clock is
// known, so the next commit (v+1) may append.
func (m *Manager) Reset(v uint64) {
	m.wmu.Lock()
	m.appended = v
	close(m.advanced)
	m.advanced = make(chan struct{})
	m.wmu.Unlock()
}

// WaitAppended blocks until every transaction up to v has been appended.
func (m *Manager) WaitAppended(ctx context.Context, v uint64) error {
	for {
		m.wmu.Lock()
		done := m.appended >= v
		ch := m.advanced
		m.wmu.Unlock()
		if done {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) advance(tx uint64) {
	m.wmu.Lock()
	if tx > m.appended {
		m.appended = tx
	}
	close(m.advanced)
	m.advanced = make(chan struct{})
	m.wmu.Unlock()
}

// Append writes the entries of transaction tx. It first waits for tx-1, so
// the log follows commit order. Every commit version must be appended exactly
// once, even with no entries, or later appends wait forever. The watermark
// advances even when the write fails.
//
// A failed write or sync cuts the file back to where the append started and
// leaves the manager failed: later appends return ErrLogFailed.
func (m *Manager) Append(tx uint64, ops []Op) error {
	if tx == 0 {
		return errors.Wrap(ErrBadRecord, "append of transaction 0")
	}
	if err := m.WaitAppended(context.Background(), tx-1); err != nil {
		return err
	}
	defer m.advance(tx)

	if len(ops) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return ErrNoWALFile
	}
	if m.failed != nil {
		return errors.Wrapf(ErrLogFailed, "append tx %d: %v", tx, m.failed)
	}

	all := make([]Op, 0, len(ops)+2)
	all = append(all, Op{Type: OpTxBegin, Tx: tx})
	for _, op := range ops {
		op.Tx = tx
		all = append(all, op)
	}
	all = append(all, Op{Type: OpTxCommit, Tx: tx})

	// the transaction is already visible in memory, so any failure here
	// leaves the log behind it
	buf, err := m.encodeAll(all)
	if err != nil {
		m.failed = err
		return err
	}
	start, err := m.f.Seek(0, io.SeekEnd)
	if err != nil {
		m.failed = errors.Wrap(err, "wal: seek end")
		return m.failed
	}
	if _, err := m.f.Write(buf); err != nil {
		return m.fail(start, errors.Wrapf(err, "wal: append tx %d", tx))
	}
	if !m.noSync {
		if err := m.f.Sync(); err != nil {
			return m.fail(start, errors.Wrapf(err, "wal: sync tx %d", tx))
		}
	}
	return nil
}

// fail drops whatever part of a frame reached the file and marks the manager
// failed. Caller holds m.mu.
func (m *Manager) fail(start int64, cause error) error {
	if err := m.f.Truncate(start); err != nil {
		m.log.Error("cut back failed append", "offset", start, "err", err)
	}
	m.failed = cause
	m.log.Error("log failed", "err", cause)
	return cause
}

// encodeAll frames ops back to back and assigns their LSNs.
// Caller holds m.mu.
func (m *Manager) encodeAll(ops []Op) ([]byte, error) {
	var out []byte
	for _, op := range ops {
		m.lsn++
		rec, err := encodeRecord(m.lsn, op)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

func encodeRecord(lsn uint64, op Op) ([]byte, error) {
	payload, err := json.Marshal(op)
	if err != nil {
		return nil, errors.Wrapf(err, "wal: encode %s", op.Type)
	}
	totalLen := headerLen + minBodyLen + len(payload)
	if totalLen > maxRecordLen {
		return nil, errors.Wrapf(ErrBadRecord, "%s entry of %d bytes", op.Type, totalLen)
	}

	buf := make([]byte, totalLen)
	w := bx.NewWriter(buf)
	w.U32(magicU32)
	w.U16(versionU16)
	w.U8(uint8(op.Type))
	w.U8(0)
	w.U32(uint32(totalLen))
	crcOff := w.Off()
	w.U32(0) // placeholder
	w.U64(lsn)
	w.Bytes(payload)

	bx.PutU32(buf[crcOff:], crc32.ChecksumIEEE(buf[crcOff+4:]))
	return buf, nil
}

type decodedRecord struct {
	lsn  uint64
	op   Op
	size int64
}

func readOne(r io.Reader) (*decodedRecord, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	h := bx.NewReader(hdr[:])
	if h.U32() != magicU32 {
		return nil, ErrBadMagic
	}
	if h.U16() != versionU16 {
		return nil, ErrBadRecord
	}
	typ := OpType(h.U8())
	_ = h.U8() // reserved
	totalLen := h.U32()
	wantCRC := h.U32()
	if totalLen < headerLen+minBodyLen || totalLen > maxRecordLen {
		return nil, ErrBadRecord
	}

	rest := make([]byte, int(totalLen)-headerLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrShortRead
		}
		return nil, err
	}
	if crc32.ChecksumIEEE(rest) != wantCRC {
		return nil, ErrBadCRC
	}

	body := bx.NewReader(rest)
	lsn := body.U64()
	var op Op
	if err := json.Unmarshal(body.Rest(), &op); err != nil {
		return nil, errors.Wrap(ErrBadRecord, err.Error())
	}
	if op.Type != typ {
		return nil, ErrBadRecord
	}
	return &decodedRecord{lsn: lsn, op: op, size: int64(totalLen)}, nil
}

// scan calls fn for every intact record. A damaged record with no intact
// record after it is a torn tail: it ends the scan without error and torn
// reports it. Damage followed by intact records is an error.
func scan(path string, fn func(rec *decodedRecord)) (torn bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, errors.Wrap(err, "wal: open for read")
	}
	defer util.CloseLog(f, nil, path)

	r := bufio.NewReaderSize(f, 1<<20)
	var off int64
	for {
		rec, err := readOne(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			if !damaged(err) {
				return false, errors.Wrapf(err, "wal: read %s", path)
			}
			intact, ierr := intactAfter(f, off)
			if ierr != nil {
				return false, errors.Wrapf(ierr, "wal: read %s", path)
			}
			if intact {
				return false, errors.Wrapf(err, "wal: read %s at offset %d", path, off)
			}
			return true, nil
		}
		fn(rec)
		off += rec.size
	}
}

func damaged(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, ErrShortRead) ||
		errors.Is(err, ErrBadMagic) ||
		errors.Is(err, ErrBadCRC) ||
		errors.Is(err, ErrBadRecord)
}

// intactAfter reports whether a record that decodes cleanly starts anywhere
// after the damaged record at off.
func intactAfter(f *os.File, off int64) (bool, error) {
	if _, err := f.Seek(off+1, io.SeekStart); err != nil {
		return false, err
	}
	rest, err := io.ReadAll(f)
	if err != nil {
		return false, err
	}
	var magic [4]byte
	bx.PutU32(magic[:], magicU32)
	for i := 0; ; {
		j := bytes.Index(rest[i:], magic[:])
		if j < 0 {
			return false, nil
		}
		i += j
		if _, err := readOne(bytes.NewReader(rest[i:])); err == nil {
			return true, nil
		}
		i++
	}
}

// ReadAll returns every entry in log order.
func (m *Manager) ReadAll() ([]Op, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ops []Op
	torn, err := scan(m.path, func(rec *decodedRecord) {
		ops = append(ops, rec.op)
	})
	if torn {
		m.log.Warn("torn record at the end of the log ignored", "entries", len(ops))
	}
	return ops, err
}

// Trim drops every entry of transactions with id <= upto, and any torn tail.
// The log is rewritten into a temporary file that replaces it atomically. It
// returns the number of entries removed.
func (m *Manager) Trim(upto uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return 0, ErrNoWALFile
	}
	if m.failed != nil {
		return 0, errors.Wrap(ErrLogFailed, m.failed.Error())
	}

	var keep []*decodedRecord
	removed := 0
	torn, err := scan(m.path, func(rec *decodedRecord) {
		if rec.op.Tx > upto {
			keep = append(keep, rec)
		} else {
			removed++
		}
	})
	if err != nil {
		return 0, err
	}
	if removed == 0 && !torn {
		return 0, nil
	}

	tmp := m.path + ".tmp"
	if err := writeRecords(tmp, keep); err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}

	if err := m.f.Close(); err != nil {
		m.log.Warn("close before trim failed", "err", err)
	}
	m.f = nil
	if err := os.Rename(tmp, m.path); err != nil {
		return 0, errors.Wrap(err, "wal: replace log")
	}
	if err := util.SyncDir(m.dir); err != nil {
		return 0, errors.Wrap(err, "wal: sync dir")
	}
	f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, errors.Wrap(err, "wal: reopen")
	}
	m.f = f

	m.log.Debug("log trimmed", "upto", upto, "removed", removed, "kept", len(keep))
	return removed, nil
}

func writeRecords(path string, recs []*decodedRecord) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "wal: create temp log")
	}
	w := bufio.NewWriter(f)
	for _, rec := range recs {
		buf, err := encodeRecord(rec.lsn, rec.op)
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := w.Write(buf); err != nil {
			_ = f.Close()
			return errors.Wrap(err, "wal: write temp log")
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "wal: flush temp log")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "wal: sync temp log")
	}
	return errors.Wrap(f.Close(), "wal: close temp log")
}

func (m *Manager) initLastLSN() error {
	var last uint64
	_, err := scan(m.path, func(rec *decodedRecord) {
		if rec.lsn > last {
			last = rec.lsn
		}
	})
	m.lsn = last
	return err
}
