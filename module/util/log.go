package util

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LogProgressFunc adds to the progress. It can be called concurrently;
// negative values are ignored.
type LogProgressFunc func(addProgress int)

type LogProgressConfig struct {
	// Message prefixes every progress line.
	Message string
	// Total is the progress value considered to be 100%.
	Total int
	// Ticks is the number of progress lines logged between 0% and 100%, both included.
	// Values below 2 are raised to 2.
	Ticks int
	// NoDataLogDuration forces a progress line when new data arrives after a gap
	// longer than this duration.
	NoDataLogDuration time.Duration
}

// DefaultLogProgressConfig logs every 10% and after one minute without progress.
func DefaultLogProgressConfig(message string, total int) LogProgressConfig {
	return LogProgressConfig{
		Message:           message,
		Total:             total,
		Ticks:             11,
		NoDataLogDuration: 60 * time.Second,
	}
}

// LogProgress returns a function that accumulates progress and logs it at every
// tick reached. The eta assumes linear progress.
func LogProgress(log zerolog.Logger, config LogProgressConfig) LogProgressFunc {
	start := time.Now()
	var lastData atomic.Int64
	lastData.Store(start.UnixMilli())
	var current atomic.Uint64

	// guards the logger, whose writer might not be safe for concurrent use
	var mu sync.Mutex
	logAt := func(progress uint64) {
		mu.Lock()
		defer mu.Unlock()

		elapsed := time.Since(start)
		percentage := float64(100)
		if config.Total > 0 {
			percentage = float64(progress) / float64(config.Total) * 100
		}

		event := log.Info().
			Uint64("done", progress).
			Int("total", config.Total).
			Str("elapsed", elapsed.Round(time.Second).String())
		if progress < uint64(config.Total) && percentage > 0 {
			eta := time.Duration(float64(elapsed) / percentage * (100 - percentage))
			event = event.Str("eta", eta.Round(time.Second).String())
		}
		event.Msgf("%s progress %.1f%%", config.Message, percentage)
	}

	logAt(0)

	total := uint64(config.Total)
	ticks := uint64(config.Ticks)
	if ticks < 2 {
		ticks = 2
	}
	step := total / (ticks - 1)
	if step == 0 {
		step = 1
	}
	// the last tick must land exactly on total
	overflow := total % step
	noDataMillis := config.NoDataLogDuration.Milliseconds()

	return func(add int) {
		if add < 0 {
			return
		}
		diff := uint64(add)
		now := time.Now().UnixMilli()
		progress := current.Add(diff)
		last := lastData.Swap(now)

		var fromTick, toTick uint64
		if previous := progress - diff; previous > overflow {
			fromTick = (previous - overflow) / step
		}
		if progress > overflow {
			toTick = (progress - overflow) / step
		}

		if fromTick == toTick {
			if now-last > noDataMillis {
				logAt(progress)
			}
			return
		}
		for t := fromTick; t < toTick; t++ {
			logAt(step*(t+1) + overflow)
		}
	}
}
