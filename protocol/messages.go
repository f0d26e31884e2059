package protocol

import (
	"encoding/json"

	"github.com/strideml/simlink/types"
)

// MessageType identifies a frame sent by the server.
type MessageType int

const (
	MsgUnknown MessageType = iota
	MsgAcknowledgeRegister
	MsgSetProperties
	MsgStart
	MsgPrediction
	MsgReset
	MsgStop
	MsgFinished
)

func (t MessageType) String() string {
	switch t {
	case MsgUnknown:
		return "UNKNOWN"
	case MsgAcknowledgeRegister:
		return "ACKNOWLEDGE_REGISTER"
	case MsgSetProperties:
		return "SET_PROPERTIES"
	case MsgStart:
		return "START"
	case MsgPrediction:
		return "PREDICTION"
	case MsgReset:
		return "RESET"
	case MsgStop:
		return "STOP"
	case MsgFinished:
		return "FINISHED"
	}
	return "INVALID"
}

// SimMessageType identifies a frame sent by the simulator.
type SimMessageType int

const (
	MsgNone SimMessageType = iota
	MsgRegister
	MsgReady
	MsgState
)

func (t SimMessageType) String() string {
	switch t {
	case MsgRegister:
		return "REGISTER"
	case MsgReady:
		return "READY"
	case MsgState:
		return "STATE"
	}
	return "NONE"
}

// ServerMessage is one incoming frame. Exactly one of the payload fields is
// populated, selected by Type.
type ServerMessage struct {
	Type                MessageType              `json:"type"`
	AcknowledgeRegister *AcknowledgeRegisterData `json:"acknowledge_register,omitempty"`
	SetProperties       *SetPropertiesData       `json:"set_properties,omitempty"`
	Predictions         []PredictionData         `json:"predictions,omitempty"`
}

// AcknowledgeRegisterData carries the handshake schemas and the session id
// assigned by the server.
type AcknowledgeRegisterData struct {
	SimID            int64        `json:"sim_id"`
	PropertiesSchema types.Schema `json:"properties_schema"`
	OutputSchema     types.Schema `json:"output_schema"`
	PredictionSchema types.Schema `json:"prediction_schema"`
}

// SetPropertiesData carries the episode configuration for the next episodes.
type SetPropertiesData struct {
	RewardName        string          `json:"reward_name"`
	PredictionSchema  types.Schema    `json:"prediction_schema,omitempty"`
	DynamicProperties json.RawMessage `json:"dynamic_properties,omitempty"`
}

// PredictionData is one opaque action payload, decoded against the
// prediction schema.
type PredictionData struct {
	DynamicPrediction json.RawMessage `json:"dynamic_prediction,omitempty"`
}

// SimMessage is one outgoing frame. SimID is never elided: the server may
// legitimately assign id 0.
type SimMessage struct {
	Type     SimMessageType `json:"type"`
	Register *RegisterData  `json:"register,omitempty"`
	SimID    int64          `json:"sim_id"`
	States   []StateData    `json:"states,omitempty"`
}

type RegisterData struct {
	SimulatorName string `json:"simulator_name"`
}

// StateData is one (state, reward, terminal, action-taken) tuple of a
// state reply.
type StateData struct {
	State       json.RawMessage `json:"state"`
	Reward      float64         `json:"reward"`
	Terminal    bool            `json:"terminal"`
	ActionTaken json.RawMessage `json:"action_taken,omitempty"`
}

// EncodeFrame serializes an outgoing message into one binary frame.
func EncodeFrame(msg *SimMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeFrame parses one binary frame into a server message.
func DecodeFrame(frame []byte) (*ServerMessage, error) {
	msg := &ServerMessage{}
	if err := json.Unmarshal(frame, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeServerFrame serializes a server message. Used by the trainer side.
func EncodeServerFrame(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeSimFrame parses one binary frame into a simulator message. Used by
// the trainer side.
func DecodeSimFrame(frame []byte, msg *SimMessage) error {
	return json.Unmarshal(frame, msg)
}
