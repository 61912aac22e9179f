package kiwi

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"

	"github.com/tomkarw/kiwi-store/lib/engine"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for the on-disk format and compaction behavior
const (
	magicNum    = "KIWIDB\x00" // File format identifier
	kiwiVersion = 1            // Log format version

	logFileName     = "kiwi.log"
	compactFileName = "kiwi.log.compact"

	recSet    byte = 1
	recRemove byte = 2

	// record layout: op(1) keyLen(4) valLen(4) key val crc(4)
	recHeaderSize  = 9
	recTrailerSize = 4

	// replay refuses records beyond this size as corruption
	maxRecordPayload = 1 << 30

	defaultCompactMinBytes     = 4 << 20
	defaultCompactGarbageRatio = 0.5
)

// --------------------------------------------------------------------------
// Core engine structure
// --------------------------------------------------------------------------

// recordPos locates the live value of a key inside the log
type recordPos struct {
	valueOff   int64  // offset of the value bytes
	valueLen   uint32 // length of the value bytes
	recordSize uint32 // full size of the containing record
}

// kiwiEngine implements a log-structured engine: every write appends a
// CRC-checked record to a single log file, an in-memory index points at the
// latest value per key, and the log is rewritten in place once the ratio of
// superseded bytes crosses a threshold.
type kiwiEngine struct {
	mu  sync.RWMutex
	dir string
	log *os.File

	index   map[string]recordPos
	offset  int64 // current end of log
	garbage int64 // bytes of superseded or tombstone records

	opts EngineOptions
}

// EngineOptions configures the kiwi engine during initialization
type EngineOptions struct {
	// SyncWrites forces an fsync after every write. Without it durability
	// is only guaranteed after Flush.
	SyncWrites bool
	// CompactMinBytes is the minimum log size before compaction is
	// considered (0 = default)
	CompactMinBytes int64
	// CompactGarbageRatio is the fraction of garbage bytes that triggers
	// compaction (0 = default)
	CompactGarbageRatio float64
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewKiwiEngine opens (or creates) a kiwi engine in the given directory.
// The full log is replayed on open to rebuild the in-memory index; a torn
// write at the tail is truncated away rather than treated as fatal.
//
// Thread-safety: this function is not thread-safe and should only be called
// once per directory. The returned engine is safe for concurrent use.
func NewKiwiEngine(dir string, opts *EngineOptions) (engine.KVEngine, error) {
	if opts == nil {
		opts = &EngineOptions{}
	}
	if opts.CompactMinBytes <= 0 {
		opts.CompactMinBytes = defaultCompactMinBytes
	}
	if opts.CompactGarbageRatio <= 0 {
		opts.CompactGarbageRatio = defaultCompactGarbageRatio
	}

	if err := engine.ClaimDir(dir, engine.ImplKiwi); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	e := &kiwiEngine{
		dir:   dir,
		log:   f,
		index: make(map[string]recordPos),
		opts:  *opts,
	}

	if err := e.replay(); err != nil {
		f.Close()
		return nil, err
	}

	return e, nil
}

// replay rebuilds the index from the log, truncating a corrupt tail
func (e *kiwiEngine) replay() error {
	info, err := e.log.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat log: %w", err)
	}

	// Fresh log: write the file header
	if info.Size() == 0 {
		header := append([]byte(magicNum), kiwiVersion)
		if _, err := e.log.Write(header); err != nil {
			return fmt.Errorf("failed to write log header: %w", err)
		}
		e.offset = int64(len(header))
		return nil
	}

	header := make([]byte, len(magicNum)+1)
	if _, err := e.log.ReadAt(header, 0); err != nil {
		return fmt.Errorf("failed to read log header: %w", err)
	}
	if string(header[:len(magicNum)]) != magicNum {
		return fmt.Errorf("not a kiwi log: bad magic in %s", e.log.Name())
	}
	if header[len(magicNum)] != kiwiVersion {
		return fmt.Errorf("unsupported kiwi log version %d", header[len(magicNum)])
	}

	off := int64(len(header))
	for off < info.Size() {
		op, key, pos, next, err := e.readRecord(off)
		if err != nil {
			// torn or corrupt tail: drop everything from here on
			if terr := e.log.Truncate(off); terr != nil {
				return fmt.Errorf("failed to truncate corrupt log tail: %w", terr)
			}
			break
		}

		if old, found := e.index[key]; found {
			e.garbage += int64(old.recordSize)
		}
		switch op {
		case recSet:
			e.index[key] = pos
		case recRemove:
			delete(e.index, key)
			// a tombstone is garbage the moment it is written
			e.garbage += int64(pos.recordSize)
		}
		off = next
	}
	e.offset = off

	return nil
}

// readRecord reads and verifies one record at the given offset. It returns
// the op, the key, the position of the value and the offset of the next
// record.
func (e *kiwiEngine) readRecord(off int64) (byte, string, recordPos, int64, error) {
	var header [recHeaderSize]byte
	if _, err := e.log.ReadAt(header[:], off); err != nil {
		return 0, "", recordPos{}, 0, err
	}

	op := header[0]
	keyLen := binary.BigEndian.Uint32(header[1:5])
	valLen := binary.BigEndian.Uint32(header[5:9])

	if op != recSet && op != recRemove {
		return 0, "", recordPos{}, 0, fmt.Errorf("invalid record op %d at offset %d", op, off)
	}
	if keyLen > maxRecordPayload || valLen > maxRecordPayload {
		return 0, "", recordPos{}, 0, fmt.Errorf("implausible record size at offset %d", off)
	}

	recordSize := int64(recHeaderSize) + int64(keyLen) + int64(valLen) + recTrailerSize
	payload := make([]byte, keyLen+valLen+recTrailerSize)
	if _, err := e.log.ReadAt(payload, off+recHeaderSize); err != nil {
		return 0, "", recordPos{}, 0, err
	}

	crc := crc32.NewIEEE()
	crc.Write(header[:])
	crc.Write(payload[:keyLen+valLen])
	if crc.Sum32() != binary.BigEndian.Uint32(payload[keyLen+valLen:]) {
		return 0, "", recordPos{}, 0, fmt.Errorf("crc mismatch at offset %d", off)
	}

	pos := recordPos{
		valueOff:   off + recHeaderSize + int64(keyLen),
		valueLen:   valLen,
		recordSize: uint32(recordSize),
	}
	return op, string(payload[:keyLen]), pos, off + recordSize, nil
}

// --------------------------------------------------------------------------
// Write path
// --------------------------------------------------------------------------

// encodeRecord builds a complete record for the given op, key and value
func encodeRecord(op byte, key string, value []byte) []byte {
	size := recHeaderSize + len(key) + len(value) + recTrailerSize
	buf := make([]byte, size)

	buf[0] = op
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(key)))
	binary.BigEndian.PutUint32(buf[5:9], uint32(len(value)))
	copy(buf[recHeaderSize:], key)
	copy(buf[recHeaderSize+len(key):], value)

	crc := crc32.ChecksumIEEE(buf[: size-recTrailerSize])
	binary.BigEndian.PutUint32(buf[size-recTrailerSize:], crc)
	return buf
}

// append writes a record at the current end of log. Caller must hold e.mu.
func (e *kiwiEngine) append(record []byte) (int64, error) {
	off := e.offset
	if _, err := e.log.WriteAt(record, off); err != nil {
		return 0, fmt.Errorf("failed to append record: %w", err)
	}
	if e.opts.SyncWrites {
		if err := e.log.Sync(); err != nil {
			return 0, fmt.Errorf("failed to sync log: %w", err)
		}
	}
	e.offset = off + int64(len(record))
	return off, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see engine/interface.go)
// --------------------------------------------------------------------------

func (e *kiwiEngine) Get(key string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pos, found := e.index[key]
	if !found {
		return nil, false
	}

	value := make([]byte, pos.valueLen)
	if _, err := e.log.ReadAt(value, pos.valueOff); err != nil {
		// index and log disagree - treat as absent rather than guessing
		return nil, false
	}
	return value, true
}

func (e *kiwiEngine) Set(key string, value []byte) error {
	record := encodeRecord(recSet, key, value)

	e.mu.Lock()
	defer e.mu.Unlock()

	off, err := e.append(record)
	if err != nil {
		return err
	}

	if old, found := e.index[key]; found {
		e.garbage += int64(old.recordSize)
	}
	e.index[key] = recordPos{
		valueOff:   off + recHeaderSize + int64(len(key)),
		valueLen:   uint32(len(value)),
		recordSize: uint32(len(record)),
	}

	return e.maybeCompact()
}

func (e *kiwiEngine) Remove(key string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old, found := e.index[key]
	if !found {
		// no state change, no tombstone needed
		return false, nil
	}

	record := encodeRecord(recRemove, key, nil)
	if _, err := e.append(record); err != nil {
		return false, err
	}

	delete(e.index, key)
	e.garbage += int64(old.recordSize) + int64(len(record))

	return true, e.maybeCompact()
}

func (e *kiwiEngine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.log.Sync(); err != nil {
		return fmt.Errorf("failed to flush log: %w", err)
	}
	return nil
}

func (e *kiwiEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.log.Sync(); err != nil {
		e.log.Close()
		return fmt.Errorf("failed to flush log on close: %w", err)
	}
	return e.log.Close()
}

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

// maybeCompact rewrites the log if enough of it is garbage.
// Caller must hold e.mu for writing.
func (e *kiwiEngine) maybeCompact() error {
	if e.offset < e.opts.CompactMinBytes {
		return nil
	}
	if float64(e.garbage) < e.opts.CompactGarbageRatio*float64(e.offset) {
		return nil
	}
	return e.compact()
}

// compact writes all live records into a fresh log and atomically replaces
// the old one. Caller must hold e.mu for writing.
func (e *kiwiEngine) compact() error {
	compactPath := filepath.Join(e.dir, compactFileName)
	out, err := os.OpenFile(compactPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create compaction log: %w", err)
	}

	header := append([]byte(magicNum), kiwiVersion)
	if _, err := out.Write(header); err != nil {
		out.Close()
		return fmt.Errorf("failed to write compaction header: %w", err)
	}

	newIndex := make(map[string]recordPos, len(e.index))
	off := int64(len(header))

	for key, pos := range e.index {
		value := make([]byte, pos.valueLen)
		if _, err := e.log.ReadAt(value, pos.valueOff); err != nil {
			out.Close()
			return fmt.Errorf("failed to read live record during compaction: %w", err)
		}

		record := encodeRecord(recSet, key, value)
		if _, err := out.WriteAt(record, off); err != nil {
			out.Close()
			return fmt.Errorf("failed to write compacted record: %w", err)
		}

		newIndex[key] = recordPos{
			valueOff:   off + recHeaderSize + int64(len(key)),
			valueLen:   pos.valueLen,
			recordSize: uint32(len(record)),
		}
		off += int64(len(record))
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync compacted log: %w", err)
	}

	logPath := filepath.Join(e.dir, logFileName)
	if err := os.Rename(compactPath, logPath); err != nil {
		out.Close()
		return fmt.Errorf("failed to swap compacted log: %w", err)
	}

	// The old handle now points at an unlinked file; swap it out
	e.log.Close()
	e.log = out
	e.index = newIndex
	e.offset = off
	e.garbage = 0

	return nil
}
