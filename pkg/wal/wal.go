package wal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/graphlite-db/graphlite/pkg/glog"
)

// Config controls WAL directory layout and sync behavior, grounded on the
// teacher's WALConfig/DefaultWALConfig shape (pkg/storage/wal.go).
type Config struct {
	Dir         string
	MaxFileSize int64
	SyncOnWrite bool
}

// DefaultConfig mirrors the teacher's DefaultWALConfig: sync every write,
// rotate at MaxFileSize.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, MaxFileSize: MaxFileSize, SyncOnWrite: true}
}

// WAL is the primary (non-catalog) write-ahead log stream. A sibling
// CatalogWAL instance, rooted at Dir/catalog, mirrors catalog-affecting
// entries, per AffectsCatalog.
type WAL struct {
	mu        sync.Mutex
	cfg       Config
	log       *glog.Logger
	file      *os.File
	writer    *bufio.Writer
	fileNum   int
	size      int64
	globalSeq uint64 // atomic
	catalog   *CatalogWAL
}

// CatalogWAL is the catalog substream, file-named catalog_NNNNNN.log inside
// the same WAL directory.
type CatalogWAL struct {
	mu      sync.Mutex
	dir     string
	file    *os.File
	writer  *bufio.Writer
	fileNum int
	size    int64
}

// Open initializes or resumes a WAL directory: it scans existing segments
// for the highest file number and global sequence, the way wal.rs's
// initialize() does, so global sequence numbers stay monotonic across
// restarts (spec.md's durability invariant).
func Open(cfg Config) (*WAL, error) {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = MaxFileSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: mkdir: %w", err)
	}
	catalogDir := filepath.Join(cfg.Dir, "catalog")
	if err := os.MkdirAll(catalogDir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: mkdir catalog: %w", err)
	}

	w := &WAL{cfg: cfg, log: glog.New("wal")}
	maxFileNum, maxSeq, err := scanForResumePoint(cfg.Dir, "wal_")
	if err != nil {
		return nil, err
	}
	w.fileNum = maxFileNum
	atomic.StoreUint64(&w.globalSeq, maxSeq)

	if err := w.openSegment(w.fileNum); err != nil {
		return nil, err
	}

	catFileNum, _, err := scanForResumePoint(catalogDir, "catalog_")
	if err != nil {
		return nil, err
	}
	w.catalog = &CatalogWAL{dir: catalogDir, fileNum: catFileNum}
	if err := w.catalog.openSegment(catFileNum); err != nil {
		return nil, err
	}

	return w, nil
}

func segmentPath(dir, prefix string, num int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%06d.log", prefix, num))
}

// scanForResumePoint walks existing segment files in dir matching prefix,
// returning the highest file number and the highest global sequence seen
// across all readable entries in all segments, resyncing past any
// corruption the way wal.rs's read_wal_file does.
func scanForResumePoint(dir, prefix string) (maxFileNum int, maxSeq uint64, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("wal: readdir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		var num int
		if _, scanErr := fmt.Sscanf(name, prefix+"%06d.log", &num); scanErr != nil {
			continue
		}
		if num > maxFileNum {
			maxFileNum = num
		}
		data, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			continue
		}
		for _, seq := range scanSegmentSequences(data) {
			if seq > maxSeq {
				maxSeq = seq
			}
		}
	}
	return maxFileNum, maxSeq, nil
}

// scanSegmentSequences reads every recoverable entry's global sequence
// number out of a raw segment buffer (header included), skipping bytes one
// at a time past anything that fails to deserialize — the same
// resync-past-corruption strategy as wal.rs's read_wal_file.
func scanSegmentSequences(data []byte) []uint64 {
	var seqs []uint64
	if len(data) < FileHeaderSize {
		return seqs
	}
	pos := FileHeaderSize
	for pos < len(data) {
		entry, consumed, err := DeserializeEntry(data[pos:])
		if err != nil {
			pos++
			continue
		}
		seqs = append(seqs, entry.GlobalSeq)
		pos += consumed
	}
	return seqs
}

func (w *WAL) openSegment(num int) error {
	path := segmentPath(w.cfg.Dir, "wal_", num)
	info, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("wal: open segment: %w", err)
	}
	if statErr != nil || info.Size() == 0 {
		if _, err := f.Write(WriteFileHeader(uint64(time.Now().UnixNano()))); err != nil {
			f.Close()
			return fmt.Errorf("wal: write header: %w", err)
		}
		w.size = FileHeaderSize
	} else {
		w.size = info.Size()
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	w.log.Infof("opened segment %s (size=%d)", path, w.size)
	return nil
}

func (c *CatalogWAL) openSegment(num int) error {
	path := segmentPath(c.dir, "catalog_", num)
	info, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("wal: open catalog segment: %w", err)
	}
	if statErr != nil || info.Size() == 0 {
		if _, err := f.Write(WriteFileHeader(uint64(time.Now().UnixNano()))); err != nil {
			f.Close()
			return fmt.Errorf("wal: write catalog header: %w", err)
		}
		c.size = FileHeaderSize
	} else {
		c.size = info.Size()
	}
	c.file = f
	c.writer = bufio.NewWriter(f)
	return nil
}

// nextGlobalSeq allocates the next monotonic global sequence number.
func (w *WAL) nextGlobalSeq() uint64 {
	return atomic.AddUint64(&w.globalSeq, 1)
}

// Append writes one entry to the primary stream, assigning it the next
// global sequence number, and — when the entry affects the catalog —
// mirrors it into the catalog substream. It fsyncs when cfg.SyncOnWrite is
// set, matching the teacher's fsync-inside-the-lock pattern
// (pkg/storage/wal.go).
func (w *WAL) Append(e *Entry) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e.GlobalSeq = w.nextGlobalSeq()
	data := e.Serialize()

	if w.size+int64(len(data)) > w.cfg.MaxFileSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	if _, err := w.writer.Write(data); err != nil {
		return 0, fmt.Errorf("wal: write entry: %w", err)
	}
	w.size += int64(len(data))

	if w.cfg.SyncOnWrite {
		if err := w.flushAndSync(); err != nil {
			return 0, err
		}
	}

	if e.EntryType == TransactionOperation && AffectsCatalog(e.OperationType, e.Description) {
		if err := w.catalog.append(e, w.cfg.SyncOnWrite); err != nil {
			return 0, err
		}
	}

	return e.GlobalSeq, nil
}

func (w *WAL) flushAndSync() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

func (w *WAL) rotate() error {
	if err := w.flushAndSync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("wal: close rotated segment: %w", err)
	}
	w.fileNum++
	w.log.Infof("rotating to segment %d", w.fileNum)
	return w.openSegment(w.fileNum)
}

func (c *CatalogWAL) append(e *Entry, sync bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := e.Serialize()
	if c.size+int64(len(data)) > MaxFileSize {
		if err := c.flushAndSync(); err != nil {
			return err
		}
		if err := c.file.Close(); err != nil {
			return fmt.Errorf("wal: close catalog segment: %w", err)
		}
		c.fileNum++
		if err := c.openSegment(c.fileNum); err != nil {
			return err
		}
	}
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("wal: write catalog entry: %w", err)
	}
	c.size += int64(len(data))
	if sync {
		return c.flushAndSync()
	}
	return nil
}

func (c *CatalogWAL) flushAndSync() error {
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush catalog: %w", err)
	}
	return c.file.Sync()
}

// Close flushes, syncs and closes both streams.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushAndSync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	w.catalog.mu.Lock()
	defer w.catalog.mu.Unlock()
	if err := w.catalog.flushAndSync(); err != nil {
		return err
	}
	return w.catalog.file.Close()
}

// ReadAll reads every recoverable entry across all segments in Dir in
// file-number order, resyncing past any corrupted bytes.
func (w *WAL) ReadAll() ([]*Entry, error) {
	return ReadSegments(w.cfg.Dir, "wal_")
}

// ReadSegments reads every entry from every prefix-matching segment file in
// dir, in ascending file-number order.
func ReadSegments(dir, prefix string) ([]*Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("wal: readdir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []*Entry
	for _, name := range names {
		var num int
		if _, scanErr := fmt.Sscanf(name, prefix+"%06d.log", &num); scanErr != nil {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			return nil, fmt.Errorf("wal: read segment %s: %w", name, readErr)
		}
		if len(data) < FileHeaderSize {
			continue
		}
		pos := FileHeaderSize
		for pos < len(data) {
			entry, consumed, decErr := DeserializeEntry(data[pos:])
			if decErr != nil {
				pos++
				continue
			}
			out = append(out, entry)
			pos += consumed
		}
	}
	return out, nil
}
