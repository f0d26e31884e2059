package brainsrv

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/strideml/simlink/protocol"
	"github.com/strideml/simlink/types"
)

// Config tunes the mock trainer.
type Config struct {
	// Addr to listen on, host:port. Port 0 picks a free one.
	Addr string
	// EpisodeLength is the number of iterations before the trainer stops an
	// episode that did not terminate on its own
	EpisodeLength int
	// Episodes before the session is finished
	Episodes int
	// BatchSize is the number of predictions delivered per message
	BatchSize int

	PropertiesSchema types.Schema
	OutputSchema     types.Schema
	PredictionSchema types.Schema
	// IterationLimit is handed to the simulator as an episode property
	IterationLimit int64
	ObjectiveName  string

	Logger *slog.Logger
}

// Server speaks the training side of the simulator protocol over a local
// websocket endpoint, for development and tests. It registers simulators,
// delivers schemas and episode properties, and drives episodes with random
// actions.
type Server struct {
	cfg      Config
	log      *slog.Logger
	server   *http.Server
	listener net.Listener

	nextSimID atomic.Int64
	upgrader  websocket.Upgrader
}

func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:0"
	}
	if cfg.EpisodeLength == 0 {
		cfg.EpisodeLength = 100
	}
	if cfg.Episodes == 0 {
		cfg.Episodes = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}
	if cfg.ObjectiveName == "" {
		cfg.ObjectiveName = "open_ended_reward"
	}
	if cfg.PropertiesSchema == nil {
		cfg.PropertiesSchema = types.Schema{{Name: "iteration_limit", Type: types.FieldInt}}
	}
	if cfg.OutputSchema == nil {
		cfg.OutputSchema = types.Schema{
			{Name: "position", Type: types.FieldFloat},
			{Name: "velocity", Type: types.FieldFloat},
			{Name: "angle", Type: types.FieldFloat},
			{Name: "rotation", Type: types.FieldFloat},
		}
	}
	if cfg.PredictionSchema == nil {
		cfg.PredictionSchema = types.Schema{{Name: "command", Type: types.FieldInt}}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{cfg: cfg, log: log}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/v1/:user/:brain/sims/ws", s.handleSession)
	r.GET("/v1/:user/:brain/:version/predictions/ws", s.handleSession)
	s.server = &http.Server{Handler: r}
	return s
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.log.Info("mock brain listening", "addr", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("mock brain server stopped", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// URL returns the http base URL of the server.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// simSession is the per-connection trainer state.
type simSession struct {
	srv *Server
	ws  *websocket.Conn
	log *slog.Logger
	rng *rand.Rand

	simID          int64
	sentProperties bool
	iterations     int
	episodesDone   int
}

func (s *Server) handleSession(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	session := &simSession{
		srv:   s,
		ws:    ws,
		log:   s.log.With("brain", c.Param("brain")),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		simID: s.nextSimID.Add(1),
	}
	session.loop()
}

// loop answers every simulator frame with exactly one trainer frame, until
// the session finishes or the connection drops.
func (session *simSession) loop() {
	for {
		_, frame, err := session.ws.ReadMessage()
		if err != nil {
			session.log.Debug("simulator connection closed", "err", err)
			return
		}

		var in protocol.SimMessage
		if err := protocol.DecodeSimFrame(frame, &in); err != nil {
			session.log.Warn("bad frame from simulator", "err", err)
			return
		}

		out, done := session.respond(&in)
		if out != nil {
			frame, err := protocol.EncodeServerFrame(out)
			if err != nil {
				session.log.Error("encode trainer frame", "err", err)
				return
			}
			if err := session.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				session.log.Debug("simulator connection closed", "err", err)
				return
			}
		}
		if done {
			session.close()
			return
		}
	}
}

func (session *simSession) respond(in *protocol.SimMessage) (*protocol.ServerMessage, bool) {
	cfg := session.srv.cfg
	switch in.Type {
	case protocol.MsgRegister:
		name := ""
		if in.Register != nil {
			name = in.Register.SimulatorName
		}
		session.log.Info("registering simulator", "simulator", name, "sim_id", session.simID)
		return &protocol.ServerMessage{
			Type: protocol.MsgAcknowledgeRegister,
			AcknowledgeRegister: &protocol.AcknowledgeRegisterData{
				SimID:            session.simID,
				PropertiesSchema: cfg.PropertiesSchema,
				OutputSchema:     cfg.OutputSchema,
				PredictionSchema: cfg.PredictionSchema,
			},
		}, false

	case protocol.MsgReady:
		if !session.sentProperties {
			session.sentProperties = true
			return session.setPropertiesMessage()
		}
		if session.episodesDone >= cfg.Episodes {
			return &protocol.ServerMessage{Type: protocol.MsgFinished}, true
		}
		return &protocol.ServerMessage{Type: protocol.MsgStart}, false

	case protocol.MsgState:
		return session.onState(in)
	}

	session.log.Warn("unexpected simulator message", "type", int(in.Type))
	return nil, true
}

func (session *simSession) onState(in *protocol.SimMessage) (*protocol.ServerMessage, bool) {
	cfg := session.srv.cfg

	terminal := false
	for _, state := range in.States {
		if state.ActionTaken != nil {
			session.iterations++
		}
		if state.Terminal {
			terminal = true
		}
	}

	// a terminal step means the simulator already reset itself for the
	// next episode, only the bookkeeping moves on
	if terminal {
		session.episodesDone++
		session.iterations = 0
		if session.episodesDone >= cfg.Episodes {
			return &protocol.ServerMessage{Type: protocol.MsgFinished}, true
		}
		return session.predictionMessage()
	}

	if session.iterations >= cfg.EpisodeLength {
		session.episodesDone++
		session.iterations = 0
		return &protocol.ServerMessage{Type: protocol.MsgStop}, false
	}
	return session.predictionMessage()
}

func (session *simSession) setPropertiesMessage() (*protocol.ServerMessage, bool) {
	cfg := session.srv.cfg
	props, err := protocol.EncodeValues(types.Values{
		"iteration_limit": cfg.IterationLimit,
	}, cfg.PropertiesSchema)
	if err != nil {
		session.log.Error("encode episode properties", "err", err)
		return nil, true
	}
	return &protocol.ServerMessage{
		Type: protocol.MsgSetProperties,
		SetProperties: &protocol.SetPropertiesData{
			RewardName:        cfg.ObjectiveName,
			DynamicProperties: props,
		},
	}, false
}

func (session *simSession) predictionMessage() (*protocol.ServerMessage, bool) {
	cfg := session.srv.cfg
	predictions := make([]protocol.PredictionData, 0, cfg.BatchSize)
	for i := 0; i < cfg.BatchSize; i++ {
		action, err := protocol.EncodeValues(types.Values{
			"command": int64(session.rng.Intn(2)),
		}, cfg.PredictionSchema)
		if err != nil {
			session.log.Error("encode prediction", "err", err)
			return nil, true
		}
		predictions = append(predictions, protocol.PredictionData{DynamicPrediction: action})
	}
	return &protocol.ServerMessage{
		Type:        protocol.MsgPrediction,
		Predictions: predictions,
	}, false
}

func (session *simSession) close() {
	deadline := time.Now().Add(time.Second)
	session.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"), deadline)
	session.ws.Close()
}
