package types

// Values is a generic field-name to value mapping. It is used wherever the
// shape of the data is only known from a server-delivered schema.
type Values map[string]any

// Simulation is implemented by the user and driven by the protocol session
type Simulation interface {
	// EpisodeStart called at the start of each episode with the decoded
	// episode configuration. Returns the initial state.
	EpisodeStart(config Values) (Values, error)
	// Step the simulation with the decoded action.
	// Returns the resulting state, the reward and whether the episode ended
	Simulate(action Values) (Values, float64, bool, error)
	// EpisodeFinish called at the end of every episode before the next
	// EpisodeStart
	EpisodeFinish() error
	// Standby reports a wait reason from the server
	Standby(reason string)
}

// Float reads the named value as a float64, coercing the numeric types the
// codec and JSON decoding can produce.
func (v Values) Float(name string) float64 {
	switch val := v[name].(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	}
	return 0
}

// Int reads the named value as an int64
func (v Values) Int(name string) int64 {
	switch val := v[name].(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case float32:
		return int64(val)
	}
	return 0
}

// Bool reads the named value as a bool
func (v Values) Bool(name string) bool {
	val, _ := v[name].(bool)
	return val
}

// String reads the named value as a string
func (v Values) String(name string) string {
	val, _ := v[name].(string)
	return val
}
