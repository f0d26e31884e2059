package envs

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/strideml/simlink/types"
)

// cartpole physics constants
const (
	gravity        = 9.8
	cartMass       = 1.0
	poleMass       = 0.1
	totalMass      = cartMass + poleMass
	poleHalfLength = 0.5
	poleMassLength = poleMass * poleHalfLength
	forceMag       = 10.0
	tau            = 0.02 // seconds per step

	thetaThreshold = 12 * 2 * math.Pi / 360
	xThreshold     = 2.4
)

// Cartpole is a self-contained cart-and-pole balancing simulation used by
// the demo command. The action schema carries a single `command` field
// (0 pushes left, anything else pushes right); the state schema carries
// position, velocity, angle and rotation. An `iteration_limit` episode
// property bounds episode length.
type Cartpole struct {
	x        float64
	xDot     float64
	theta    float64
	thetaDot float64

	iteration      int
	iterationLimit int64

	rng *rand.Rand
	log *slog.Logger
}

var _ types.Simulation = &Cartpole{}

func NewCartpole(log *slog.Logger) *Cartpole {
	if log == nil {
		log = slog.Default()
	}
	return &Cartpole{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		log: log,
	}
}

func (c *Cartpole) EpisodeStart(config types.Values) (types.Values, error) {
	c.iterationLimit = config.Int("iteration_limit")
	c.iteration = 0

	c.x = c.uniform()
	c.xDot = c.uniform()
	c.theta = c.uniform()
	c.thetaDot = c.uniform()
	return c.state(), nil
}

func (c *Cartpole) Simulate(action types.Values) (types.Values, float64, bool, error) {
	c.iteration++

	force := -forceMag
	if action.Int("command") > 0 {
		force = forceMag
	}

	cosTheta := math.Cos(c.theta)
	sinTheta := math.Sin(c.theta)

	temp := (force + poleMassLength*c.thetaDot*c.thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) /
		(poleHalfLength * (4.0/3.0 - poleMass*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	c.x += tau * c.xDot
	c.xDot += tau * xAcc
	c.theta += tau * c.thetaDot
	c.thetaDot += tau * thetaAcc

	terminal := math.Abs(c.x) > xThreshold || math.Abs(c.theta) > thetaThreshold
	if c.iterationLimit > 0 && int64(c.iteration) >= c.iterationLimit {
		terminal = true
	}

	// one unit of reward for every step the pole stays up
	reward := 1.0
	if terminal {
		reward = 0.0
	}
	return c.state(), reward, terminal, nil
}

func (c *Cartpole) EpisodeFinish() error {
	return nil
}

func (c *Cartpole) Standby(reason string) {
	c.log.Info("standby", "reason", reason)
	time.Sleep(time.Second)
}

func (c *Cartpole) state() types.Values {
	return types.Values{
		"position": c.x,
		"velocity": c.xDot,
		"angle":    c.theta,
		"rotation": c.thetaDot,
	}
}

func (c *Cartpole) uniform() float64 {
	return c.rng.Float64()*0.1 - 0.05
}
