package command

import (
	"context"
	"csbot/internal/core/domain"
	"fmt"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"time"

	"github.com/rs/zerolog/log"
)

// Status reports runtime statistics of the bot process.
type Status struct {
	started time.Time
	now     func() time.Time
}

func NewStatus(started time.Time) *Status {
	return &Status{started: started, now: time.Now}
}

const StatusDescription = "Show runtime statistics of the bot. [administrator rights needed]"

const kb = 1024
const statusTemplate = `uptime: %s
allocated mem: %d KB
goroutines running: %d
heap: %d KB
stack: %d KB
compiled with %s for %s-%s`
const metricCount = 3

func (s *Status) Handle(_ context.Context, sender domain.Sender, _ string, message *domain.Message) (string, error) {
	l := log.With().
		Int64("messageId", message.ID).
		Int64("senderId", sender.ID).
		Str("traceId", message.TraceID).
		Logger()

	data := make([]metrics.Sample, metricCount)
	data[0] = metrics.Sample{Name: "/memory/classes/heap/objects:bytes"}
	data[1] = metrics.Sample{Name: "/memory/classes/heap/stacks:bytes"}
	data[2] = metrics.Sample{Name: "/memory/classes/total:bytes"}

	metrics.Read(data)

	for _, sample := range data {
		l.Debug().Str("name", sample.Name).Msgf("%d", sampleValue(sample))
	}

	l.Info().Msg("handling status request")

	goos, goarch := runtime.GOOS, runtime.GOARCH
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "GOOS":
				goos = setting.Value
			case "GOARCH":
				goarch = setting.Value
			}
		}
	}

	return fmt.Sprintf(
		statusTemplate,
		s.now().Sub(s.started).Truncate(time.Second),
		sampleValue(data[2])/kb,
		runtime.NumGoroutine(),
		sampleValue(data[0])/kb,
		sampleValue(data[1])/kb,
		runtime.Version(), goos, goarch,
	), nil
}

func sampleValue(sample metrics.Sample) uint64 {
	if sample.Value.Kind() != metrics.KindUint64 {
		return 0
	}

	return sample.Value.Uint64()
}
