package asyncruntime

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Swind/go-async-runtime/core"
)

// Options is the on-disk runtime configuration. Zero values mean "use the
// default"; see core.DefaultConfig.
//
// Example:
//
//	workers = 8
//	blocking_workers = 16
//	reactor_idle_poll = "100ms"
type Options struct {
	// Workers is the number of compute pool workers.
	Workers int `toml:"workers"`

	// BlockingWorkers is the number of blocking pool workers.
	BlockingWorkers int `toml:"blocking_workers"`

	// ReactorIdlePoll caps how long the reactor sleeps with no pending timer.
	ReactorIdlePoll Duration `toml:"reactor_idle_poll"`
}

// Duration wraps time.Duration so TOML values can be written as "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// LoadOptions reads Options from a TOML file.
func LoadOptions(path string) (Options, error) {
	var opts Options
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return Options{}, fmt.Errorf("load options from %s: %w", path, err)
	}
	return opts, nil
}

// Config converts file options into a runtime Config. Handlers (logger,
// metrics, panic handler) are code-level concerns and are set on the
// returned Config by the caller.
func (o Options) Config() core.Config {
	cfg := core.DefaultConfig()
	if o.Workers > 0 {
		cfg.Workers = o.Workers
	}
	if o.BlockingWorkers > 0 {
		cfg.BlockingWorkers = o.BlockingWorkers
	}
	if o.ReactorIdlePoll.Duration > 0 {
		cfg.ReactorIdlePoll = o.ReactorIdlePoll.Duration
	}
	return cfg
}
