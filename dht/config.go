package dht

import "time"

// Config holds the tunable parameters named in spec.md §6. All fields have
// sensible defaults via DefaultConfig; a zero Config is not valid on its own
// (K and Alpha of 0 would make every lookup a no-op), so New always merges
// the caller's Config over the defaults for any field left at zero.
type Config struct {
	// K is the replication factor / bucket capacity (spec.md default: 20).
	K int
	// Alpha is the lookup concurrency degree (spec.md default: 3).
	Alpha int
	// RequestTimeout bounds a single outbound RPC (spec.md default: 5-10s).
	RequestTimeout time.Duration
	// RefreshInterval is how often the background bucket-refresh routine
	// runs (spec.md default: 1 hour).
	RefreshInterval time.Duration
	// BucketStaleAfter is how long a bucket may go without activity before
	// the periodic refresh routine probes it (spec.md §4.7).
	BucketStaleAfter time.Duration
	// BootstrapMaxAttempts bounds the exponential backoff retry of the
	// initial bootstrap PING (SPEC_FULL.md §4 "Bootstrap retry with
	// backoff").
	BootstrapMaxAttempts int
	// BootstrapBackoff is the initial backoff duration between bootstrap
	// attempts; it doubles on each failure up to BootstrapMaxBackoff.
	BootstrapBackoff time.Duration
	// BootstrapMaxBackoff caps the exponential backoff.
	BootstrapMaxBackoff time.Duration
}

// DefaultConfig returns the configuration spec.md §6 names as defaults.
func DefaultConfig() Config {
	return Config{
		K:                    20,
		Alpha:                3,
		RequestTimeout:       5 * time.Second,
		RefreshInterval:      time.Hour,
		BucketStaleAfter:     time.Hour,
		BootstrapMaxAttempts: 5,
		BootstrapBackoff:     time.Second,
		BootstrapMaxBackoff:  2 * time.Minute,
	}
}

// withDefaults fills any zero-valued field of cfg from DefaultConfig.
func withDefaults(cfg Config) Config {
	d := DefaultConfig()
	if cfg.K <= 0 {
		cfg.K = d.K
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = d.Alpha
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = d.RefreshInterval
	}
	if cfg.BucketStaleAfter <= 0 {
		cfg.BucketStaleAfter = d.BucketStaleAfter
	}
	if cfg.BootstrapMaxAttempts <= 0 {
		cfg.BootstrapMaxAttempts = d.BootstrapMaxAttempts
	}
	if cfg.BootstrapBackoff <= 0 {
		cfg.BootstrapBackoff = d.BootstrapBackoff
	}
	if cfg.BootstrapMaxBackoff <= 0 {
		cfg.BootstrapMaxBackoff = d.BootstrapMaxBackoff
	}
	return cfg
}
