package config

import (
	"time"
)

type AppConfig struct {
	Port           int           `yaml:"port"`
	DefaultTimeout time.Duration `yaml:"default_timeout"`
}

// FilesystemConfig carries the capacity knobs reported through statfs.
// None of it is enforced as a hard quota beyond the gross block/inode
// accounting described by the core invariants.
type FilesystemConfig struct {
	TotalBlocks  uint64 `yaml:"total_blocks"`
	TotalInodes  uint64 `yaml:"total_inodes"`
	MaxNameLen   uint32 `yaml:"max_name_len"`
	FilesystemID uint64 `yaml:"filesystem_id"`
}
