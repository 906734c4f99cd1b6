package recorder

import (
	"time"

	"github.com/yanun0323/errors"

	"venuetrader/pkg/exception"
)

const (
	defaultDir       = "trades"
	defaultQueueSize = 1024
)

// Header is the first row of every daily trade file.
var Header = []string{"time", "price", "quantity", "account", "tag"}

// Config controls the trade log writer.
type Config struct {
	Dir       string `yaml:"dir"`
	QueueSize int    `yaml:"queue_size"`
	// FlushInterval batches row flushes. Zero flushes every row.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// Location decides the day a trade belongs to. Defaults to time.Local.
	Location *time.Location `yaml:"-"`
}

// DefaultConfig returns a baseline configuration writing under dir.
func DefaultConfig(dir string) Config {
	if dir == "" {
		dir = defaultDir
	}
	return Config{
		Dir:       dir,
		QueueSize: defaultQueueSize,
	}
}

func (c Config) withDefaults() Config {
	if c.Dir == "" {
		c.Dir = defaultDir
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Dir == "" {
		return errors.Wrap(exception.ErrConfigInvalid, "recorder: dir is empty")
	}
	if c.QueueSize <= 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "recorder: queue size must be > 0")
	}
	if c.FlushInterval < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "recorder: flush interval must be >= 0")
	}
	return nil
}
