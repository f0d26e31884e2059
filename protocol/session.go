package protocol

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/strideml/simlink/types"
)

// Channel is the duplex frame transport a session drives. Send and Receive
// block; Receive reports a closed channel as an error, never as a nil frame.
type Channel interface {
	Send(frame []byte) error
	Receive() ([]byte, error)
	Close() error
}

// DialFunc opens the channel on first use.
type DialFunc func() (Channel, error)

// simStep tracks one batch-processed round trip through the simulator.
// A batch of these is packed into a single state reply.
type simStep struct {
	prediction json.RawMessage // dynamic action payload from the server
	action     types.Values    // decoded against the prediction schema
	state      json.RawMessage // encoded resulting state, nil until advanced
	reward     float64
	terminal   bool
}

// SessionConfig carries the collaborators a session needs.
type SessionConfig struct {
	// Name of the simulator, registered with the server
	Name string
	// Predict selects prediction mode over training mode
	Predict bool
	Sim     types.Simulation
	Dial    DialFunc
	Logger  *slog.Logger
}

// Session tracks the protocol state of one simulator-to-server connection
// and translates between server messages and the user simulation.
//
// A session is driven by calling Run in a loop. Each call performs exactly
// one send and one receive; the outgoing message is selected from the type
// of the previous incoming message.
type Session struct {
	name    string
	predict bool
	sim     types.Simulation
	dial    DialFunc
	log     *slog.Logger

	// mu guards channel: Close may be called from another goroutine to
	// unblock a cycle waiting in Receive
	mu      sync.Mutex
	channel Channel
	// type of the last successfully processed incoming message
	prevType MessageType

	simID            int64
	propertiesSchema types.Schema
	outputSchema     types.Schema
	predictionSchema types.Schema
	objectiveName    string
	initProperties   types.Values

	// current batch of simulation steps
	steps []*simStep
	// last decoded action, kept for predictor-style callers
	lastAction types.Values
}

func NewSession(cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		name:           cfg.Name,
		predict:        cfg.Predict,
		sim:            cfg.Sim,
		dial:           cfg.Dial,
		log:            log,
		prevType:       MsgUnknown,
		simID:          -1,
		initProperties: types.Values{},
	}
}

// ObjectiveName returns the reward objective of the current episode.
func (s *Session) ObjectiveName() string { return s.objectiveName }

// SimID returns the server-assigned simulator id, -1 until registered.
func (s *Session) SimID() int64 { return s.simID }

// LastAction returns the most recently decoded action.
func (s *Session) LastAction() types.Values { return s.lastAction }

// Close tears down the channel if one is open. Safe to call at any time,
// from any goroutine; a cycle blocked in Receive unwinds with an error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel == nil {
		return nil
	}
	err := s.channel.Close()
	s.channel = nil
	return err
}

// openChannel dials lazily and hands out the channel for one cycle. The
// cycle holds its own reference so a concurrent Close surfaces as a
// send/receive error rather than a nil channel.
func (s *Session) openChannel() (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		return s.channel, nil
	}
	ch, err := s.dial()
	if err != nil {
		return nil, err
	}
	s.channel = ch
	return ch, nil
}

// Run performs one request/response round trip with the server: advance any
// pending prediction batch, send one message, receive one message and
// dispatch it. It reports false once the server has finished the session.
func (s *Session) Run() (bool, error) {
	channel, err := s.openChannel()
	if err != nil {
		return false, err
	}

	// a batch of predictions is cued up, step through it
	if s.prevType == MsgPrediction {
		for _, step := range s.steps {
			if err := s.advance(step); err != nil {
				return false, err
			}
		}
	}

	out, err := s.buildOutgoing()
	if err != nil {
		return false, err
	}
	if out != nil && out.Type != MsgNone {
		frame, err := EncodeFrame(out)
		if err != nil {
			return false, fmt.Errorf("encode %s frame: %w", out.Type, err)
		}
		if err := channel.Send(frame); err != nil {
			return false, err
		}
	}

	frame, err := channel.Receive()
	if err != nil {
		return false, err
	}
	in, err := DecodeFrame(frame)
	if err != nil {
		return false, &ProtocolError{Type: MsgUnknown, Reason: err.Error()}
	}
	if err := s.handleIncoming(in); err != nil {
		return false, err
	}

	if s.prevType == MsgFinished {
		s.Close()
		return false, nil
	}
	return true, nil
}

// buildOutgoing selects the next outgoing message from the type of the
// previous incoming message and the session mode. A nil message means
// nothing is to be sent.
func (s *Session) buildOutgoing() (*SimMessage, error) {
	switch s.prevType {
	case MsgUnknown:
		return s.registerMessage(), nil
	case MsgAcknowledgeRegister, MsgSetProperties, MsgReset, MsgStop:
		if s.predict {
			return s.initialStateMessage()
		}
		return s.readyMessage(), nil
	case MsgStart:
		return s.initialStateMessage()
	case MsgPrediction:
		return s.stateMessage(), nil
	}
	// MsgFinished: the session is over, nothing left to say
	return nil, nil
}

func (s *Session) registerMessage() *SimMessage {
	s.log.Debug("sending registration", "simulator", s.name)
	return &SimMessage{
		Type:     MsgRegister,
		Register: &RegisterData{SimulatorName: s.name},
	}
}

func (s *Session) readyMessage() *SimMessage {
	s.log.Debug("sending ready", "sim_id", s.simID)
	return &SimMessage{Type: MsgReady, SimID: s.simID}
}

// initialStateMessage starts a new episode and carries its initial state.
// The start-of-episode baseline is never terminal and carries no reward.
func (s *Session) initialStateMessage() (*SimMessage, error) {
	s.log.Debug("sending initial state", "sim_id", s.simID)

	initial, err := s.sim.EpisodeStart(s.initProperties)
	if err != nil {
		return nil, &EpisodeStartError{Cause: err}
	}
	payload, err := EncodeValues(initial, s.outputSchema)
	if err != nil {
		return nil, err
	}
	return &SimMessage{
		Type:   MsgState,
		SimID:  s.simID,
		States: []StateData{{State: payload, Reward: 0, Terminal: false}},
	}, nil
}

// stateMessage packs the advanced batch into one consolidated reply. Steps
// that were never advanced to a resulting state are dropped rather than sent
// malformed. The batch is cleared unconditionally.
func (s *Session) stateMessage() *SimMessage {
	s.log.Debug("sending state", "sim_id", s.simID, "steps", len(s.steps))

	msg := &SimMessage{Type: MsgState, SimID: s.simID}
	for _, step := range s.steps {
		if step.state == nil {
			s.log.Warn("missing resulting state for step, dropping it from the reply")
			continue
		}
		msg.States = append(msg.States, StateData{
			State:       step.state,
			Reward:      step.reward,
			Terminal:    step.terminal,
			ActionTaken: step.prediction,
		})
	}
	s.steps = nil
	return msg
}

// advance runs one pending step through the simulation and stores the
// result on the step. A terminal step finishes the episode and immediately
// starts the next one, so the simulation is reset before the reply goes out
// while the reply still reflects the episode that just ended.
func (s *Session) advance(step *simStep) error {
	if step.action == nil {
		action, err := DecodeValues(step.prediction, s.predictionSchema)
		if err != nil {
			return err
		}
		step.action = action
	}

	state, reward, terminal, err := s.sim.Simulate(step.action)
	if err != nil {
		return &SimulateError{Cause: err}
	}
	payload, err := EncodeValues(state, s.outputSchema)
	if err != nil {
		return err
	}
	step.state = payload
	step.reward = reward
	step.terminal = terminal

	if terminal {
		if err := s.sim.EpisodeFinish(); err != nil {
			return err
		}
		if _, err := s.sim.EpisodeStart(s.initProperties); err != nil {
			return &EpisodeStartError{Cause: err}
		}
	}
	return nil
}

// handleIncoming dispatches one server message. The previous-message-type
// marker only advances once the message has been fully processed, so a
// failed dispatch leaves the session in its prior state.
func (s *Session) handleIncoming(msg *ServerMessage) error {
	switch msg.Type {
	case MsgAcknowledgeRegister:
		if err := s.onAcknowledgeRegister(msg.AcknowledgeRegister); err != nil {
			return err
		}
	case MsgSetProperties:
		if err := s.onSetProperties(msg.SetProperties); err != nil {
			return err
		}
	case MsgStart:
		// the next outgoing message carries the initial state
	case MsgPrediction:
		if err := s.onPrediction(msg.Predictions); err != nil {
			return err
		}
	case MsgReset:
		// structural no-op at this layer
	case MsgStop:
		if err := s.sim.EpisodeFinish(); err != nil {
			return err
		}
	case MsgFinished:
	default:
		return &ProtocolError{Type: msg.Type}
	}
	s.prevType = msg.Type
	return nil
}

func (s *Session) onAcknowledgeRegister(data *AcknowledgeRegisterData) error {
	if data == nil {
		return &ProtocolError{Type: MsgAcknowledgeRegister, Reason: "missing handshake payload"}
	}
	s.log.Debug("registration acknowledged", "sim_id", data.SimID,
		"state_fields", data.OutputSchema.Names(),
		"action_fields", data.PredictionSchema.Names())
	s.propertiesSchema = data.PropertiesSchema
	s.outputSchema = data.OutputSchema
	s.predictionSchema = data.PredictionSchema
	s.simID = data.SimID
	return nil
}

func (s *Session) onSetProperties(data *SetPropertiesData) error {
	if data == nil {
		data = &SetPropertiesData{}
	}
	s.log.Debug("setting properties", "objective", data.RewardName)
	if len(data.PredictionSchema) > 0 {
		s.predictionSchema = data.PredictionSchema
	}
	props, err := DecodeValues(data.DynamicProperties, s.propertiesSchema)
	if err != nil {
		return err
	}
	s.objectiveName = data.RewardName
	s.initProperties = props
	return nil
}

// onPrediction appends one pending step per prediction entry. The batch is
// only extended once every entry decodes, keeping the session consistent if
// the message is malformed halfway through.
func (s *Session) onPrediction(predictions []PredictionData) error {
	steps := make([]*simStep, 0, len(predictions))
	var last types.Values
	for _, p := range predictions {
		action, err := DecodeValues(p.DynamicPrediction, s.predictionSchema)
		if err != nil {
			return err
		}
		steps = append(steps, &simStep{prediction: p.DynamicPrediction, action: action})
		last = action
	}
	s.steps = append(s.steps, steps...)
	if last != nil {
		s.lastAction = last
	}
	return nil
}
