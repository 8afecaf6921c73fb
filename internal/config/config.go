// Package config holds the configuration surface recognized by the
// partition storage core (segment sizing, index caching, checksum
// validation, deduplication, and the persister's fsync policy).
package config

import (
	"time"

	"github.com/flowlog/partitionstore/internal/perrors"
)

// SegmentMaxSizeBytes is the hard cap no segment.size may exceed.
const SegmentMaxSizeBytes uint64 = 1 << 30 // 1 GiB

// FsyncPolicy controls when the Persister issues a sync after a write.
type FsyncPolicy int

const (
	FsyncNone FsyncPolicy = iota
	FsyncEveryWrite
	FsyncPeriodic
)

// SegmentConfig mirrors the `segment.*` configuration options.
type SegmentConfig struct {
	SizeBytes     uint64
	CacheIndexes  bool
	MessageExpiry time.Duration // 0 disables expiry-based deletion
}

// PartitionConfig mirrors the `partition.*` configuration options plus
// the fsync policy, which governs the whole partition's Persister.
type PartitionConfig struct {
	Segment                SegmentConfig
	MessagesRequiredToSave uint64
	ValidateChecksum       bool
	Deduplication          DeduplicationConfig
	Fsync                  FsyncPolicy
	FsyncInterval          time.Duration // used only when Fsync == FsyncPeriodic
}

type DeduplicationConfig struct {
	Enabled bool
}

// Default returns a PartitionConfig with the teacher's "caller didn't
// specify it, fill in a sane default" behavior (see NewLog in the
// original log package).
func Default() PartitionConfig {
	return PartitionConfig{
		Segment: SegmentConfig{
			SizeBytes:    100 * 1024 * 1024,
			CacheIndexes: true,
		},
		MessagesRequiredToSave: 1000,
		Fsync:                  FsyncEveryWrite,
	}
}

// Validate rejects configurations that can never be served, returning a
// fatal, typed error per the storage core's error design.
func Validate(c PartitionConfig) error {
	if c.Segment.SizeBytes == 0 || c.Segment.SizeBytes > SegmentMaxSizeBytes {
		return perrors.New(perrors.InvalidConfiguration, 0, 0, 0,
			perrors.ErrInvalidOption).WithPath("segment.size")
	}
	if c.MessagesRequiredToSave == 0 {
		return perrors.New(perrors.InvalidConfiguration, 0, 0, 0,
			perrors.ErrInvalidOption).WithPath("partition.messages_required_to_save")
	}
	if c.Fsync == FsyncPeriodic && c.FsyncInterval <= 0 {
		return perrors.New(perrors.CacheConfigValidationFailure, 0, 0, 0,
			perrors.ErrInvalidOption).WithPath("persister.fsync_interval")
	}
	return nil
}

// WithDefaults fills zero-valued fields of c with Default()'s values,
// the same pattern the teacher's NewLog applies inline.
func WithDefaults(c PartitionConfig) PartitionConfig {
	d := Default()
	if c.Segment.SizeBytes == 0 {
		c.Segment.SizeBytes = d.Segment.SizeBytes
	}
	if c.MessagesRequiredToSave == 0 {
		c.MessagesRequiredToSave = d.MessagesRequiredToSave
	}
	return c
}
