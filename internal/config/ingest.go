package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	DefaultMaxRows       = 1000
	DefaultMaxErrorRatio = 0.2
)

// IngestPolicy gates a batch before anything is persisted.
type IngestPolicy struct {
	MaxRows       int     `mapstructure:"maxRows"`
	MaxErrorRatio float64 `mapstructure:"maxErrorRatio"`
}

func DefaultIngestPolicy() IngestPolicy {
	return IngestPolicy{
		MaxRows:       DefaultMaxRows,
		MaxErrorRatio: DefaultMaxErrorRatio,
	}
}

// IngestPolicyHolder serves the current policy; ingest.yml edits are picked up without restart.
type IngestPolicyHolder struct {
	current atomic.Value // holds IngestPolicy
}

// NewStaticIngestPolicy returns a holder that never reloads.
func NewStaticIngestPolicy(p IngestPolicy) *IngestPolicyHolder {
	holder := &IngestPolicyHolder{}
	holder.current.Store(p)
	return holder
}

func NewIngestPolicyHolder(cfg Config, log *zap.Logger) (*IngestPolicyHolder, error) {
	log = log.Named("config.ingest")
	v := viper.New()

	v.SetConfigName("ingest")
	v.SetConfigType("yml")
	for _, path := range cfg.Ingest.PolicyPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("TAXMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// nested keys are only overlaid from env when bound explicitly
	if err := v.BindEnv("ingest.maxRows", "TAXMATE_INGEST_MAXROWS"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("ingest.maxErrorRatio", "TAXMATE_INGEST_MAXERRORRATIO"); err != nil {
		return nil, err
	}

	defaults := DefaultIngestPolicy()
	v.SetDefault("ingest.maxRows", defaults.MaxRows)
	v.SetDefault("ingest.maxErrorRatio", defaults.MaxErrorRatio)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	policy := readIngestPolicy(v)
	if err := validateIngestPolicy(policy); err != nil {
		return nil, err
	}

	holder := NewStaticIngestPolicy(policy)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readIngestPolicy(v)
		if err := validateIngestPolicy(updated); err != nil {
			log.Warn("invalid ingest policy ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("ingest policy reloaded",
			zap.String("file", e.Name),
			zap.Int("max_rows", updated.MaxRows),
			zap.Float64("max_error_ratio", updated.MaxErrorRatio),
		)
	})

	return holder, nil
}

func readIngestPolicy(v *viper.Viper) IngestPolicy {
	return IngestPolicy{
		MaxRows:       v.GetInt("ingest.maxRows"),
		MaxErrorRatio: v.GetFloat64("ingest.maxErrorRatio"),
	}
}

func (h *IngestPolicyHolder) Get() IngestPolicy {
	return h.current.Load().(IngestPolicy)
}

func validateIngestPolicy(p IngestPolicy) error {
	if p.MaxRows <= 0 {
		return errors.New("ingest.maxRows must be positive")
	}
	if p.MaxErrorRatio < 0 || p.MaxErrorRatio > 1 {
		return errors.New("ingest.maxErrorRatio must be within [0,1]")
	}
	return nil
}
