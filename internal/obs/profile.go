package obs

import (
	"os"
	"runtime"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// profileLogger forwards profiler errors and drops its chatter.
type profileLogger struct{}

func (profileLogger) Infof(string, ...any)  {}
func (profileLogger) Debugf(string, ...any) {}
func (profileLogger) Errorf(format string, args ...any) {
	logs.Errorf("pyroscope: "+format, args...)
}

// ProfileConfig configures the continuous profiler.
type ProfileConfig struct {
	Server          string `yaml:"server"`
	ApplicationName string `yaml:"application_name"`
}

// StartProfiler starts pyroscope when a server is configured. The returned
// stop function is never nil.
func StartProfiler(cfg ProfileConfig) (func(), error) {
	if cfg.Server == "" {
		return func() {}, nil
	}
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = "venuetrader"
	}

	runtime.SetMutexProfileFraction(5)
	runtime.SetBlockProfileRate(5)

	hostname, _ := os.Hostname()
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.Server,
		Logger:          profileLogger{},
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
			pyroscope.ProfileBlockCount,
			pyroscope.ProfileBlockDuration,
		},
	})
	if err != nil {
		return func() {}, errors.Wrap(err, "start pyroscope")
	}
	return func() { _ = profiler.Stop() }, nil
}
