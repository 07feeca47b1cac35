// Package profiling starts optional continuous profiling (addition N).
// The teacher's go.mod carries grafana/pyroscope-go but no call site was
// present in the retrieved pack; this wires it up the standard way the
// library documents itself, gated entirely behind enable_profiling so its
// absence changes nothing about process behavior.
package profiling

import (
	"github.com/grafana/pyroscope-go"
)

// Start begins sending continuous profiles to serverAddress under the
// given application name. Call the returned stop function on shutdown.
func Start(appName, serverAddress string) (func() error, error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   serverAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, err
	}
	return profiler.Stop, nil
}
