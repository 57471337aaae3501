package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
)

// ConfigKey is the blob key of the persisted configuration record.
const ConfigKey = "config"

// DefaultTimeout bounds every store operation issued by ConfigStore.
const DefaultTimeout = 2 * time.Second

// opContext bounds one store operation by timeout alone. The caller's
// deadline belongs to the tick and may already be spent on network sends;
// a save must not fail because of it.
func (s *ConfigStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// configRecord is the on-disk form of logic.Config.
type configRecord struct {
	PublishIntervalMs int64  `json:"publish_interval_ms"`
	AutoPublish       bool   `json:"auto_publish"`
	ResetCount        uint32 `json:"reset_count"`
}

// EncodeConfig serializes cfg into the persisted record format.
func EncodeConfig(cfg logic.Config) ([]byte, error) {
	return json.Marshal(configRecord{
		PublishIntervalMs: cfg.PublishInterval.Milliseconds(),
		AutoPublish:       cfg.AutoPublish,
		ResetCount:        cfg.ResetCount,
	})
}

// DecodeConfig parses a persisted record and checks its invariants. Fields
// absent from the record keep their factory values.
func DecodeConfig(data []byte) (logic.Config, error) {
	def := logic.DefaultConfig()
	rec := configRecord{
		PublishIntervalMs: def.PublishInterval.Milliseconds(),
		AutoPublish:       def.AutoPublish,
		ResetCount:        def.ResetCount,
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return logic.Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg := logic.Config{
		PublishInterval: time.Duration(rec.PublishIntervalMs) * time.Millisecond,
		AutoPublish:     rec.AutoPublish,
		ResetCount:      rec.ResetCount,
	}
	if err := cfg.Validate(); err != nil {
		return logic.Config{}, fmt.Errorf("stored config: %w", err)
	}
	return cfg, nil
}

// ConfigStore loads and saves the configuration record.
type ConfigStore struct {
	blobs   BlobStore
	log     *logger.Logger
	timeout time.Duration
}

// NewConfigStore returns a ConfigStore over blobs. A non-positive timeout
// selects DefaultTimeout.
func NewConfigStore(blobs BlobStore, log *logger.Logger, timeout time.Duration) *ConfigStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ConfigStore{
		blobs:   blobs,
		log:     log.Component("store"),
		timeout: timeout,
	}
}

// Load returns the stored configuration. It never fails: a missing, unreadable
// or corrupt record is replaced by the defaults, which are persisted before
// returning.
func (s *ConfigStore) Load(ctx context.Context) logic.Config {
	readCtx, cancel := s.opContext(ctx)
	data, err := s.blobs.ReadBlob(readCtx, ConfigKey)
	cancel()

	if err == nil {
		cfg, derr := DecodeConfig(data)
		if derr == nil {
			return cfg
		}
		err = derr
	}

	if errors.Is(err, ErrNotFound) {
		s.log.Infow("no stored config, initializing defaults")
	} else {
		s.log.Warnw("stored config unusable, reinitializing defaults", "err", err)
	}

	cfg := logic.DefaultConfig()
	if serr := s.Save(ctx, cfg); serr != nil {
		s.log.Errorw("failed to persist default config", "err", serr)
	}
	return cfg
}

// Save persists cfg synchronously.
func (s *ConfigStore) Save(ctx context.Context, cfg logic.Config) error {
	data, err := EncodeConfig(cfg)
	if err != nil {
		return &Error{Op: "write", Key: ConfigKey, Err: err}
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := s.blobs.WriteBlob(ctx, ConfigKey, data); err != nil {
		var se *Error
		if errors.As(err, &se) {
			return se
		}
		return &Error{Op: "write", Key: ConfigKey, Err: err}
	}
	return nil
}
