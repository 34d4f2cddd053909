// Package rcfg is the RaleighSL/FS configuration surface: a plain
// struct with JSON tags, validated once at bring-up.
package rcfg

// Config enumerates the runtime knobs: worker count, arena shape, and
// the three ring sizes.
type Config struct {
	// NCores is the number of worker OS threads eloop.Context spawns, one
	// per CPU core.
	NCores int `json:"ncores"`

	// Arena shape.
	MMPoolBaseSize int `json:"mmpool_base_size"`
	MMPoolPageSize int `json:"mmpool_page_size"`
	MMPoolBlockMin int `json:"mmpool_block_min"`
	MMPoolBlockMax int `json:"mmpool_block_max"`

	// Ring sizes for cross-core task posting.
	LocalRingSize  int `json:"local_ring_size"`
	RemoteRingSize int `json:"remote_ring_size"`
	EventsRingSize int `json:"events_ring_size"`

	// UdataSize bounds the per-task user-data payload that travels with a
	// posted task.
	UdataSize int `json:"udata_size"`
}

// DefaultConfig returns sane defaults for a single-process embedded store.
func DefaultConfig() *Config {
	return &Config{
		NCores:         1,
		MMPoolBaseSize: 4 << 10,
		MMPoolPageSize: 64 << 10,
		MMPoolBlockMin: 256,
		MMPoolBlockMax: 1 << 20,
		LocalRingSize:  1024,
		RemoteRingSize: 1024,
		EventsRingSize: 256,
		UdataSize:      64,
	}
}

// Validate checks the invariants the rest of the core relies on (power of
// two ring sizes for the lock-free SPSC ring, positive core count, etc).
func (c *Config) Validate() error {
	if c.NCores <= 0 {
		return errConfig{"ncores must be positive"}
	}
	for _, sz := range []int{c.LocalRingSize, c.RemoteRingSize, c.EventsRingSize} {
		if sz <= 0 || sz&(sz-1) != 0 {
			return errConfig{"ring sizes must be a positive power of two"}
		}
	}
	if c.MMPoolBlockMin <= 0 || c.MMPoolBlockMax < c.MMPoolBlockMin {
		return errConfig{"mmpool block_min/block_max out of range"}
	}
	return nil
}

type errConfig struct{ msg string }

func (e errConfig) Error() string { return "rcfg: " + e.msg }
