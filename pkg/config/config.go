// Package config loads and validates the gateway's JSON configuration
// document, per spec.md §6: one file per service process, selecting a
// repository back-end and the service's bind address.
//
// Configuration precedence: environment variables (RAWGATE_*) override
// the JSON document, which overrides built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/rawgate/rawgate/internal/bytesize"
)

// Document is the top-level JSON configuration document, per spec.md
// §6 and SPEC_FULL.md §6's Document{Repository, Service} schema.
type Document struct {
	Repository RepositoryConfig `json:"repository" mapstructure:"repository"`
	Service    ServiceConfig    `json:"service" mapstructure:"service"`
}

// ServiceConfig configures the gateway's HTTP front-end.
type ServiceConfig struct {
	// Bind is the "host:port" the gateway listens on.
	Bind string `json:"bind" mapstructure:"bind" validate:"required"`

	// XattrPrefix selects which request headers are forwarded to the
	// back-end as xattrs (default "X-oio-chunk-meta-").
	XattrPrefix string `json:"xattr_prefix" mapstructure:"xattr_prefix"`

	// ReadDeadline bounds each connection read.
	ReadDeadline time.Duration `json:"read_deadline" mapstructure:"read_deadline"`

	// Logging controls log output.
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics controls the Prometheus metrics HTTP server.
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing controls OpenTelemetry span export.
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// GOMAXPROCS pins the process's logical concurrency, per SPEC_FULL.md
	// §5's single-threaded realization (default 1).
	GOMAXPROCS int `json:"gomaxprocs" mapstructure:"gomaxprocs"`
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.XattrPrefix == "" {
		c.XattrPrefix = "X-oio-chunk-meta-"
	}
	if c.ReadDeadline == 0 {
		c.ReadDeadline = time.Second
	}
	if c.GOMAXPROCS == 0 {
		c.GOMAXPROCS = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	return c
}

// LoggingConfig controls logging behavior, matching internal/logger.Config
// fields exactly.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `json:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
	Output string `json:"output" mapstructure:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Port    int  `json:"port" mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// TracingConfig configures OTLP/gRPC span export.
type TracingConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`
	Insecure bool   `json:"insecure" mapstructure:"insecure"`
}

// Backend selects which repository back-end a Document configures.
type Backend string

const (
	BackendLocal   Backend = "local"
	BackendRawx    Backend = "rawx"
	BackendKinetic Backend = "kinetic"
)

// RepositoryConfig is a discriminated union over the three back-ends,
// selected by Backend, per SPEC_FULL.md §6. Exactly one of Local/Rawx/
// Kinetic is populated, matching Backend.
type RepositoryConfig struct {
	Backend Backend `json:"backend" mapstructure:"backend" validate:"required,oneof=local rawx kinetic"`

	Local   *LocalRepositoryConfig   `json:"local,omitempty" mapstructure:"local"`
	Rawx    *RawxRepositoryConfig    `json:"rawx,omitempty" mapstructure:"rawx"`
	Kinetic *KineticRepositoryConfig `json:"kinetic,omitempty" mapstructure:"kinetic"`
}

// LocalRepositoryConfig configures the local filesystem back-end, per
// spec.md §6: `{"docroot": "<path>", "hash": {"depth": D, "width": W}}`.
type LocalRepositoryConfig struct {
	DocRoot string     `json:"docroot" mapstructure:"docroot" validate:"required"`
	Hash    HashLayout `json:"hash" mapstructure:"hash"`
}

// HashLayout is the hashed directory layout spec.md §6 describes for
// the local back-end: D nested levels of W hex characters each.
type HashLayout struct {
	Depth int `json:"depth" mapstructure:"depth" validate:"omitempty,min=0,max=8"`
	Width int `json:"width" mapstructure:"width" validate:"omitempty,min=1,max=8"`
}

// RawxRepositoryConfig configures the HTTP RAWX back-end.
type RawxRepositoryConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr" validate:"required"`
	DialDeadline    time.Duration `json:"dial_deadline" mapstructure:"dial_deadline"`
	RequestDeadline time.Duration `json:"request_deadline" mapstructure:"request_deadline"`
}

// KineticRepositoryConfig configures a Kinetic target set.
type KineticRepositoryConfig struct {
	Targets []KineticDriveConfig `json:"targets" mapstructure:"targets" validate:"required,min=1,dive"`

	// BlockSize accepts a human-readable size ("1Mi", "512Ki") or a
	// bare byte count.
	BlockSize           bytesize.ByteSize `json:"block_size" mapstructure:"block_size"`
	DownloadParallelism int               `json:"download_parallelism" mapstructure:"download_parallelism"`

	// Mode is the target set's configured redundancy strategy ("plain",
	// "replicated" or "ec"; empty is accepted). Validate requires EC shard
	// counts when it is "ec". pkg/kineticblob does not read it: uploads
	// always use round-robin striping.
	Mode ErasureMode `json:"mode" mapstructure:"mode" validate:"omitempty,oneof=plain replicated ec"`

	// EC carries the Reed-Solomon shard counts when Mode is "ec".
	EC *ECConfig `json:"ec,omitempty" mapstructure:"ec"`
}

// ErasureMode is the target set's redundancy strategy.
type ErasureMode string

const (
	ModePlain      ErasureMode = "plain"
	ModeReplicated ErasureMode = "replicated"
	ModeEC         ErasureMode = "ec"
)

// ECConfig carries the data/parity shard counts for ErasureMode EC.
type ECConfig struct {
	DataShards   int `json:"data_shards" mapstructure:"data_shards" validate:"omitempty,min=1"`
	ParityShards int `json:"parity_shards" mapstructure:"parity_shards" validate:"omitempty,min=0"`
}

// KineticDriveConfig addresses one drive in a target set.
type KineticDriveConfig struct {
	Addr     string `json:"addr" mapstructure:"addr" validate:"required"`
	Identity int64  `json:"identity" mapstructure:"identity"`
	HMACSalt string `json:"hmac_salt" mapstructure:"hmac_salt"`
}

// Load reads, decodes, and validates a Document from path, applying
// RAWGATE_* environment variable overrides on top of the file.
func Load(path string) (*Document, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix("RAWGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc Document
	hook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), byteSizeDecodeHook())
	if err := v.Unmarshal(&doc, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	doc.Service = doc.Service.withDefaults()

	if err := Validate(&doc); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &doc, nil
}

// LoadBytes parses and validates raw JSON, for tests and embedded
// configuration that never touches disk.
func LoadBytes(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	doc.Service = doc.Service.withDefaults()
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

var validate = validator.New()

// Validate applies go-playground/validator struct tags to doc, per
// SPEC_FULL.md §6, plus the cross-field backend/variant consistency
// check struct tags alone can't express.
func Validate(doc *Document) error {
	if err := validate.Struct(doc); err != nil {
		return err
	}
	switch doc.Repository.Backend {
	case BackendLocal:
		if doc.Repository.Local == nil {
			return fmt.Errorf("repository.local is required when backend=local")
		}
	case BackendRawx:
		if doc.Repository.Rawx == nil {
			return fmt.Errorf("repository.rawx is required when backend=rawx")
		}
	case BackendKinetic:
		if doc.Repository.Kinetic == nil {
			return fmt.Errorf("repository.kinetic is required when backend=kinetic")
		}
		if doc.Repository.Kinetic.Mode == ModeEC {
			if doc.Repository.Kinetic.EC == nil || doc.Repository.Kinetic.EC.DataShards <= 0 {
				return fmt.Errorf("repository.kinetic.ec.data_shards is required when mode=ec")
			}
		}
	}
	return nil
}

// durationDecodeHook lets JSON config values for time.Duration fields be
// either a Go duration string ("30s") or a bare integer of nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// byteSizeDecodeHook lets JSON config values for bytesize.ByteSize
// fields be either a human-readable string ("1Mi") or a bare integer
// byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}
