package sync

import "github.com/ronika/stalkarr/internal/config"

// Options holds the sync engine tunables
type Options struct {
	// FullBatchSize is how many pages a full-sync batch fetches concurrently
	FullBatchSize int
	// IncrementalBatchSize is smaller so incremental mode can detect
	// already-seen content and bail out without over-fetching
	IncrementalBatchSize int
	// ChannelBatchSize is the page batch for the channel walk, which knows
	// its total page count up front
	ChannelBatchSize int
	// MaxConsecutiveEmptyPages ends a category walk (end of catalog)
	MaxConsecutiveEmptyPages int
	// MaxNoNewItemPages ends an incremental category walk early once the
	// walk has run into already-known content
	MaxNoNewItemPages int
	// SnapshotRetention is how many snapshots to keep per provider
	SnapshotRetention int
}

// DefaultOptions returns the production sync tunables
func DefaultOptions() Options {
	return Options{
		FullBatchSize:            50,
		IncrementalBatchSize:     5,
		ChannelBatchSize:         150,
		MaxConsecutiveEmptyPages: 3,
		MaxNoNewItemPages:        5,
		SnapshotRetention:        5,
	}
}

// OptionsFromConfig builds Options from the loaded configuration
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg.Sync.FullBatchSize > 0 {
		opts.FullBatchSize = cfg.Sync.FullBatchSize
	}
	if cfg.Sync.IncrementalBatchSize > 0 {
		opts.IncrementalBatchSize = cfg.Sync.IncrementalBatchSize
	}
	if cfg.Sync.ChannelBatchSize > 0 {
		opts.ChannelBatchSize = cfg.Sync.ChannelBatchSize
	}
	if cfg.Sync.MaxConsecutiveEmptyPages > 0 {
		opts.MaxConsecutiveEmptyPages = cfg.Sync.MaxConsecutiveEmptyPages
	}
	if cfg.Sync.MaxNoNewItemPages > 0 {
		opts.MaxNoNewItemPages = cfg.Sync.MaxNoNewItemPages
	}
	if cfg.Sync.SnapshotRetention > 0 {
		opts.SnapshotRetention = cfg.Sync.SnapshotRetention
	}
	return opts
}
