package device

import (
	"encoding/binary"
	"sync"

	"github.com/pierrec/lz4/v3"
)

// LZ4Device wraps another Device with whole-image LZ4 compression. Logical writes accumulate in an in-memory staging
// buffer; Sync compresses the staged image and persists it to the
// wrapped device as a single length-prefixed block, the way a
// checkpoint/snapshot write would. Reads are served from the staging
// buffer directly, lazily inflating the most recent persisted snapshot
// on first use after construction.
type LZ4Device struct {
	mu      sync.Mutex
	under   Device
	staging []byte
	loaded  bool
}

// NewLZ4Device wraps `under` with LZ4 compression at the Sync boundary.
func NewLZ4Device(under Device) *LZ4Device {
	return &LZ4Device{under: under}
}

func (d *LZ4Device) ensureLoaded() error {
	if d.loaded {
		return nil
	}
	d.loaded = true
	if d.under.Used() == 0 {
		return nil
	}
	header := make([]byte, 8)
	if _, err := d.under.Read(0, [][]byte{header}); err != nil {
		return err
	}
	rawLen := binary.LittleEndian.Uint32(header[0:4])
	compLen := binary.LittleEndian.Uint32(header[4:8])
	if compLen == 0 {
		return nil
	}
	comp := make([]byte, compLen)
	if _, err := d.under.Read(8, [][]byte{comp}); err != nil {
		return err
	}
	// compLen == rawLen only via Sync's incompressible-block raw copy.
	if compLen == rawLen {
		d.staging = comp
		return nil
	}
	raw := make([]byte, rawLen)
	if _, err := lz4.UncompressBlock(comp, raw); err != nil {
		return err
	}
	d.staging = raw
	return nil
}

func (d *LZ4Device) grow(to int) {
	if to <= len(d.staging) {
		return
	}
	grown := make([]byte, to)
	copy(grown, d.staging)
	d.staging = grown
}

// Read serves from the staging buffer, inflating the underlying
// snapshot on first access.
func (d *LZ4Device) Read(offset int64, iov [][]byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureLoaded(); err != nil {
		return 0, err
	}
	if offset > int64(len(d.staging)) {
		return 0, ErrOutOfRange
	}
	total := 0
	pos := offset
	for _, buf := range iov {
		n := copy(buf, d.staging[pos:])
		total += n
		pos += int64(len(buf))
		if n < len(buf) {
			break
		}
	}
	return total, nil
}

// Write stages logical bytes uncompressed; nothing reaches the wrapped
// device until Sync.
func (d *LZ4Device) Write(offset int64, iov [][]byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureLoaded(); err != nil {
		return 0, err
	}
	total := 0
	for _, buf := range iov {
		total += len(buf)
	}
	d.grow(int(offset) + total)
	pos := offset
	for _, buf := range iov {
		copy(d.staging[pos:], buf)
		pos += int64(len(buf))
	}
	return total, nil
}

// Sync compresses the whole staged image with LZ4 and persists it to
// the wrapped device as [rawLen uint32][compLen uint32][compressed...].
func (d *LZ4Device) Sync(offset int64, length int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	bound := lz4.CompressBlockBound(len(d.staging))
	comp := make([]byte, bound)
	n, err := lz4.CompressBlock(d.staging, comp, nil)
	if err != nil {
		return err
	}
	comp = comp[:n]
	// An incompressible (or empty) block compresses to 0 bytes under
	// lz4/v3's block codec; store it as a raw copy instead so
	// UncompressBlock always has real input on the read side.
	if n == 0 && len(d.staging) > 0 {
		comp = append(comp[:0], d.staging...)
		n = len(comp)
	}

	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(d.staging)))
	binary.LittleEndian.PutUint32(header[4:8], uint32(n))
	if _, err := d.under.Write(0, [][]byte{header}); err != nil {
		return err
	}
	if n > 0 {
		if _, err := d.under.Write(8, [][]byte{comp}); err != nil {
			return err
		}
	}
	return d.under.Sync(0, int64(8+n))
}

// Used reports the logical (uncompressed) size, inflating the wrapped
// device's snapshot first so a freshly constructed wrapper over a
// non-empty device reports what a reopen will see.
func (d *LZ4Device) Used() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureLoaded(); err != nil {
		return 0
	}
	return int64(len(d.staging))
}

// Free zeroes a logical range of the staging buffer.
func (d *LZ4Device) Free(offset int64, length int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset+length > int64(len(d.staging)) {
		return ErrOutOfRange
	}
	for i := offset; i < offset+length; i++ {
		d.staging[i] = 0
	}
	return nil
}
