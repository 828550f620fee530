package tickbench

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/arloliu/tickstream"
	"github.com/arloliu/tickstream/config"
	"github.com/arloliu/tickstream/format"
	"github.com/arloliu/tickstream/measurement"
	"github.com/arloliu/tickstream/publisher"
	"github.com/arloliu/tickstream/subscriber"
	"github.com/arloliu/tickstream/transport"
)

// Options controls one benchmark run.
type Options struct {
	Config config.Config
	// Modes lists the compression modes to run, in order.
	Modes []format.CompressionMode
	// Signals is the number of synthetic signals published every cycle.
	Signals int
	// Cycles is the number of publishing cycles.
	Cycles int
	// Interval spaces the timestamps of consecutive cycles.
	Interval time.Duration
	// BufferBlocks is the number of buffer blocks sent after the measurements.
	BufferBlocks int
	// Seed makes the synthetic data reproducible.
	Seed uint64
}

// DefaultOptions returns the options used by the command without flags.
func DefaultOptions() Options {
	return Options{
		Config:   config.Default(),
		Modes:    []format.CompressionMode{format.ModeNone, format.ModeCompact, format.ModePattern, format.ModeTSSC},
		Signals:  1000,
		Cycles:   300,
		Interval: time.Second / 30,
		Seed:     1,
	}
}

// Validate checks the run size.
func (o Options) Validate() error {
	switch {
	case len(o.Modes) == 0:
		return fmt.Errorf("no compression mode selected")
	case o.Signals <= 0:
		return fmt.Errorf("signals must be positive, got %d", o.Signals)
	case o.Cycles <= 0:
		return fmt.Errorf("cycles must be positive, got %d", o.Cycles)
	case o.Interval <= 0:
		return fmt.Errorf("interval must be positive, got %s", o.Interval)
	case o.BufferBlocks < 0:
		return fmt.Errorf("buffer blocks must not be negative, got %d", o.BufferBlocks)
	}

	return nil
}

// Result summarizes the run of one mode.
type Result struct {
	Mode                format.CompressionMode `json:"mode"`
	Published           int64                  `json:"published"`
	Received            int64                  `json:"received"`
	Packets             int64                  `json:"packets"`
	Bytes               int64                  `json:"bytes"`
	BytesPerMeasurement float64                `json:"bytesPerMeasurement"`
	BufferBlocks        int64                  `json:"bufferBlocks"`
	PatternAccepted     int64                  `json:"patternAccepted,omitempty"`
	PatternAttempts     int64                  `json:"patternAttempts,omitempty"`
	DecodeErrors        int64                  `json:"decodeErrors"`
	Completed           bool                   `json:"completed"`
	Elapsed             time.Duration          `json:"elapsed"`
}

// Run benchmarks every mode in opts.Modes.
func Run(ctx context.Context, opts Options, logger *slog.Logger) ([]Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	keys := syntheticKeys(opts.Signals)
	results := make([]Result, 0, len(opts.Modes))
	for _, mode := range opts.Modes {
		res, err := runMode(ctx, opts, keys, mode, logger.With(slog.String("mode", mode.String())))
		if err != nil {
			return results, fmt.Errorf("%s: %w", mode, err)
		}
		results = append(results, res)
	}

	return results, nil
}

func runMode(ctx context.Context, opts Options, keys []measurement.Key, mode format.CompressionMode, logger *slog.Logger) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	cfg := opts.Config.Publisher
	cfg.CompressionMode = mode
	cfg.AllowedCompressionModes = nil

	var (
		received  atomic.Int64
		blocks    atomic.Int64
		completed atomic.Bool
	)
	session, err := tickstream.Connect(ctx, cfg, tickstream.SessionOptions{
		Publisher: []publisher.Option{publisher.WithLogger(logger)},
		Subscriber: []subscriber.Option{
			subscriber.WithLogger(logger),
			subscriber.WithMeasurementHandler(func(ms []measurement.Measurement) { received.Add(int64(len(ms))) }),
			subscriber.WithBufferBlockHandler(func(subscriber.BufferBlock) { blocks.Add(1) }),
			subscriber.WithProcessingCompleteHandler(func() { completed.Store(true) }),
		},
		Loopback: []transport.LoopbackOption{transport.WithLogger(logger)},
	})
	if err != nil {
		return Result{}, err
	}
	defer session.Close()

	pub := session.Publisher
	if err := pub.Subscribe(publisher.Request{Keys: keys}, nil); err != nil {
		return Result{}, err
	}

	gen := newGenerator(keys, opts.Seed, time.Now(), opts.Interval)
	start := time.Now()
	for range opts.Cycles {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		ts, batch := gen.next()
		if err := pub.PublishFrame(ts, batch); err != nil {
			return Result{}, err
		}
	}
	for i := range opts.BufferBlocks {
		block := measurement.NewBufferBlock(keys[i%len(keys)], fmt.Appendf(nil, "buffer block %d", i))
		if err := pub.Publish([]measurement.Measurement{block}); err != nil {
			return Result{}, err
		}
	}
	if err := pub.NotifyProcessingComplete(); err != nil {
		return Result{}, err
	}
	if err := session.Flush(ctx); err != nil {
		return Result{}, err
	}
	elapsed := time.Since(start)

	stats := pub.Stats()
	res := Result{
		Mode:                mode,
		Published:           stats.MeasurementsProcessed,
		Received:            received.Load(),
		Packets:             stats.PacketsSent,
		Bytes:               stats.BytesSent,
		BytesPerMeasurement: stats.BytesPerMeasurement(),
		BufferBlocks:        blocks.Load(),
		PatternAccepted:     stats.PatternCompression.Accepted,
		PatternAttempts:     stats.PatternCompression.Attempts,
		DecodeErrors:        session.Subscriber.Stats().DecodeErrors,
		Completed:           completed.Load(),
		Elapsed:             elapsed,
	}
	if pending := pub.PendingBufferBlocks(); pending > 0 {
		logger.Warn("buffer blocks left unacknowledged", slog.Int("count", pending))
	}
	logger.Info("mode finished",
		slog.Int64("measurements", res.Received),
		slog.Float64("bytesPerMeasurement", res.BytesPerMeasurement),
		slog.Duration("elapsed", elapsed),
	)

	return res, nil
}

func syntheticKeys(n int) []measurement.Key {
	keys := make([]measurement.Key, n)
	for i := range keys {
		keys[i] = tickstream.NewKey("TICKBENCH", uint32(i), fmt.Sprintf("tickbench/%d", i)) //nolint:gosec
	}

	return keys
}

// generator produces phasor-like signals: a slowly drifting sinusoid per
// signal with a little noise, and the occasional quality flag.
type generator struct {
	keys     []measurement.Key
	rng      *rand.Rand
	phases   []float64
	ts       measurement.Ticks
	interval measurement.Ticks
	cycle    int
}

func newGenerator(keys []measurement.Key, seed uint64, start time.Time, interval time.Duration) *generator {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)) //nolint:gosec
	phases := make([]float64, len(keys))
	for i := range phases {
		phases[i] = rng.Float64() * 2 * math.Pi
	}

	return &generator{
		keys:     keys,
		rng:      rng,
		phases:   phases,
		ts:       measurement.FromTime(start),
		interval: measurement.FromDuration(interval),
	}
}

func (g *generator) next() (measurement.Ticks, []measurement.Measurement) {
	ts := g.ts
	batch := make([]measurement.Measurement, len(g.keys))
	for i, key := range g.keys {
		value := 60 + 0.02*math.Sin(g.phases[i]+float64(g.cycle)*0.01) + g.rng.NormFloat64()*0.0005
		flags := measurement.Normal
		if g.rng.IntN(1000) == 0 {
			flags = measurement.SuspectData
		}
		batch[i] = measurement.New(key, value, ts, flags)
	}

	g.cycle++
	g.ts += g.interval

	return ts, batch
}
