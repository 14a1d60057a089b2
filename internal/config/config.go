// Package config holds process-wide configuration for the board server,
// in the teacher's flat-struct-plus-defaults shape.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quantarax/backend/internal/board"
	"github.com/quantarax/backend/internal/chunkmgr"
	"github.com/quantarax/backend/internal/storage"
)

// StorageKind selects which Chunk Storage Backend to construct.
type StorageKind string

const (
	StorageFilesystem StorageKind = "fs"
	StorageBolt       StorageKind = "bolt"
	StorageS3         StorageKind = "s3"
)

// Config holds board server configuration.
type Config struct {
	ListenAddress string

	ChunksInDirection   int64
	ClearBufferInterval time.Duration
	IdleTTL             time.Duration
	MaxLiveChunks       int
	ChannelCapacity     int

	StorageKind StorageKind
	StorageDir  string // used by StorageFilesystem and StorageBolt

	// IndexPath is the SQLite side-index recording each save's size and
	// content hash, used by cmd/chunkgc to find stale chunks. Empty
	// disables indexing.
	IndexPath string

	S3Bucket          string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string // non-empty selects an S3-compatible endpoint over AWS
}

// DefaultConfig returns the spec's default tunables.
func DefaultConfig() *Config {
	return &Config{
		ListenAddress:       ":8080",
		ChunksInDirection:   board.DefaultConfig().ChunksInDirection,
		ClearBufferInterval: chunkmgr.DefaultConfig().CoalesceInterval,
		IdleTTL:             chunkmgr.DefaultConfig().IdleTTL,
		MaxLiveChunks:       board.DefaultConfig().MaxLiveChunks,
		ChannelCapacity:     chunkmgr.DefaultConfig().ChannelCapacity,
		StorageKind:         StorageFilesystem,
		StorageDir:          "./data/chunks",
		IndexPath:           "./data/chunks.index.db",
	}
}

// LoadConfig returns DefaultConfig with every recognised environment
// variable override applied.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}
	if v, err := envInt64("CHUNKS_IN_DIRECTION"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.ChunksInDirection = *v
	}
	if v, err := envDurationMillis("CLEAR_BUFFER_INTERVAL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.ClearBufferInterval = *v
	}
	if v, err := envDurationMillis("IDLE_TTL"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.IdleTTL = *v
	}
	if v, err := envInt("MAX_LIVE_CHUNKS"); err != nil {
		return nil, err
	} else if v != nil {
		cfg.MaxLiveChunks = *v
	}
	if v := os.Getenv("STORAGE_KIND"); v != "" {
		cfg.StorageKind = StorageKind(v)
	}
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		cfg.StorageDir = v
	}
	if v, ok := os.LookupEnv("INDEX_PATH"); ok {
		cfg.IndexPath = v
	}
	cfg.S3Bucket = os.Getenv("S3_BUCKET")
	cfg.S3Region = os.Getenv("S3_REGION")
	cfg.S3AccessKeyID = os.Getenv("S3_ACCESS_KEY_ID")
	cfg.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")

	return cfg, nil
}

// NewBackend constructs the storage.Backend cfg.StorageKind selects. When
// cfg.IndexPath is set, the backend is wrapped in a storage.IndexedBackend so
// every save is also recorded in the SQLite side-index cmd/chunkgc reads.
func (cfg *Config) NewBackend(ctx context.Context) (storage.Backend, error) {
	backend, err := cfg.newRawBackend(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.IndexPath == "" {
		return backend, nil
	}
	idx, err := storage.OpenIndex(cfg.IndexPath)
	if err != nil {
		return nil, fmt.Errorf("config: opening chunk index: %w", err)
	}
	return storage.NewIndexedBackend(backend, idx, nil), nil
}

func (cfg *Config) newRawBackend(ctx context.Context) (storage.Backend, error) {
	switch cfg.StorageKind {
	case StorageFilesystem, "":
		return storage.NewFSBackend(cfg.StorageDir, storage.TagZstd)
	case StorageBolt:
		return storage.NewBoltBackend(cfg.StorageDir, storage.TagZstd)
	case StorageS3:
		return storage.NewS3Backend(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UsePathStyle:    cfg.S3Endpoint != "",
		}, storage.TagZstd)
	default:
		return nil, fmt.Errorf("config: unknown storage kind %q", cfg.StorageKind)
	}
}

// BoardConfig derives a board.Config from cfg.
func (cfg *Config) BoardConfig() board.Config {
	return board.Config{
		MaxLiveChunks:     cfg.MaxLiveChunks,
		ChunksInDirection: cfg.ChunksInDirection,
		ManagerConfig: chunkmgr.Config{
			CoalesceInterval: cfg.ClearBufferInterval,
			IdleTTL:          cfg.IdleTTL,
			ChannelCapacity:  cfg.ChannelCapacity,
		},
	}
}

func envInt64(key string) (*int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return &n, nil
}

func envInt(key string) (*int, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	return &n, nil
}

func envDurationMillis(key string) (*time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", key, err)
	}
	d := time.Duration(ms) * time.Millisecond
	return &d, nil
}
