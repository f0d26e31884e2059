package sim

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/strideml/simlink/brain"
	"github.com/strideml/simlink/protocol"
	"github.com/strideml/simlink/transport"
	"github.com/strideml/simlink/types"
)

// DriverConfig configures a Driver.
type DriverConfig struct {
	// Name of the simulator, must match the name the brain expects
	Name string
	// Sim is the user simulation driven by the session
	Sim   types.Simulation
	Brain *brain.Brain
	// Dial overrides the transport, used by tests. When nil the driver
	// connects to the brain's session endpoint.
	Dial   protocol.DialFunc
	Logger *slog.Logger
	// TraceFile, when set, records one JSONL trace line per episode
	TraceFile string
}

// Driver connects a user simulation to a brain and drives the session,
// keeping per-episode statistics. Call Run in a loop until it returns
// false.
type Driver struct {
	name    string
	session *protocol.Session
	log     *slog.Logger

	episodeReward  float64
	episodeCount   int
	iterationCount int
	episodeRate    *RateCounter
	// cumulative across episodes, not per episode
	iterationRate *RateCounter
	stats         *EpisodeStats

	traceFile string
	trace     *Trace

	stopped atomic.Bool
	err     error
}

func NewDriver(cfg DriverConfig) *Driver {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	d := &Driver{
		name:          cfg.Name,
		log:           log,
		episodeRate:   NewRateCounter(),
		iterationRate: NewRateCounter(),
		stats:         NewEpisodeStats(),
		traceFile:     cfg.TraceFile,
	}

	dial := cfg.Dial
	predict := false
	if cfg.Brain != nil {
		predict = cfg.Brain.Predict()
		if dial == nil {
			b := cfg.Brain
			dial = func() (protocol.Channel, error) {
				url, err := b.SessionURL()
				if err != nil {
					return nil, err
				}
				return transport.Connect(url, b.Headers(), transport.DefaultConnectTimeout, log)
			}
		}
	}

	d.session = protocol.NewSession(protocol.SessionConfig{
		Name:    cfg.Name,
		Predict: predict,
		Sim:     &countedSim{driver: d, inner: cfg.Sim},
		Dial:    dial,
		Logger:  log,
	})
	return d
}

// Run drives one round trip with the server. It returns false once the
// session has finished, was stopped, or hit an error; Err reports the error
// when there was one.
func (d *Driver) Run() bool {
	if d.stopped.Load() {
		return false
	}

	cont, err := d.session.Run()
	if err == nil {
		return cont
	}
	if d.stopped.Load() {
		// the teardown in Stop makes the blocked receive fail; that is
		// the clean-stop path, not a session failure
		return false
	}

	d.err = err
	var connErr *transport.ConnectionError
	var closedErr *transport.ConnectionClosedError
	switch {
	case errors.As(err, &connErr), errors.As(err, &closedErr):
		d.log.Error("connection lost", "err", err)
	case isCallbackError(err):
		d.log.Error("simulation callback failed", "err", err)
	default:
		d.log.Error("session failed", "err", err)
	}
	return false
}

func isCallbackError(err error) bool {
	var epErr *protocol.EpisodeStartError
	var simErr *protocol.SimulateError
	return errors.As(err, &epErr) || errors.As(err, &simErr)
}

// Stop requests a clean stop. The session channel is torn down so a cycle
// blocked on receive unwinds.
func (d *Driver) Stop() {
	d.stopped.Store(true)
	d.session.Close()
}

// Err returns the error that ended the run, if any. Callback errors usually
// indicate a simulation bug and should be surfaced to the operator.
func (d *Driver) Err() error { return d.err }

// ObjectiveName returns the current episode objective.
func (d *Driver) ObjectiveName() string { return d.session.ObjectiveName() }

// LastAction returns the most recently received action, for predictor-style
// callers inspecting what the brain chose.
func (d *Driver) LastAction() types.Values { return d.session.LastAction() }

// EpisodeReward returns the cumulative reward of the episode so far.
func (d *Driver) EpisodeReward() float64 { return d.episodeReward }

// EpisodeCount returns the number of completed episodes.
func (d *Driver) EpisodeCount() int { return d.episodeCount }

// IterationCount returns the number of iterations of the current episode.
func (d *Driver) IterationCount() int { return d.iterationCount }

// EpisodeRate returns the smoothed episodes/sec.
func (d *Driver) EpisodeRate() float64 { return d.episodeRate.Rate() }

// IterationRate returns the smoothed iterations/sec.
func (d *Driver) IterationRate() float64 { return d.iterationRate.Rate() }

// Stats returns the per-episode reward statistics.
func (d *Driver) Stats() *EpisodeStats { return d.stats }

// countedSim wraps the user simulation so the driver's counters and traces
// update on every callback before the user code runs.
type countedSim struct {
	driver *Driver
	inner  types.Simulation
}

var _ types.Simulation = &countedSim{}

func (c *countedSim) EpisodeStart(config types.Values) (types.Values, error) {
	d := c.driver
	d.iterationCount = 0
	d.episodeReward = 0
	if d.traceFile != "" {
		d.trace = NewTrace(d.episodeCount)
	}
	return c.inner.EpisodeStart(config)
}

func (c *countedSim) Simulate(action types.Values) (types.Values, float64, bool, error) {
	d := c.driver
	d.iterationRate.Update()
	d.iterationCount++

	state, reward, terminal, err := c.inner.Simulate(action)
	if err != nil {
		return nil, 0, false, err
	}
	d.episodeReward += reward
	if d.trace != nil {
		d.trace.Append(action, state, reward, terminal)
	}
	return state, reward, terminal, nil
}

func (c *countedSim) EpisodeFinish() error {
	d := c.driver
	d.episodeRate.Update()
	d.episodeCount++
	d.stats.Add(d.episodeReward)
	if d.trace != nil {
		if err := d.trace.record(d.traceFile); err != nil {
			d.log.Warn("failed to record episode trace", "err", err)
		}
		d.trace = nil
	}
	return c.inner.EpisodeFinish()
}

func (c *countedSim) Standby(reason string) {
	c.inner.Standby(reason)
}
