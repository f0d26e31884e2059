package sim

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/strideml/simlink/protocol"
	"github.com/strideml/simlink/types"
)

// scriptChannel replays a fixed sequence of server frames and swallows
// everything sent.
type scriptChannel struct {
	frames [][]byte
	closed bool
}

func (c *scriptChannel) Send(frame []byte) error { return nil }

func (c *scriptChannel) Receive() ([]byte, error) {
	if len(c.frames) == 0 {
		return nil, errors.New("out of script")
	}
	frame := c.frames[0]
	c.frames = c.frames[1:]
	return frame, nil
}

func (c *scriptChannel) Close() error {
	c.closed = true
	return nil
}

func scriptedChannel(t *testing.T, msgs ...*protocol.ServerMessage) *scriptChannel {
	t.Helper()
	channel := &scriptChannel{}
	for _, msg := range msgs {
		frame, err := protocol.EncodeServerFrame(msg)
		if err != nil {
			t.Fatalf("encoding server frame: %v", err)
		}
		channel.frames = append(channel.frames, frame)
	}
	return channel
}

// trainingScript is a one-episode training session: register, start, one
// prediction, stop, finished.
func trainingScript(t *testing.T) *scriptChannel {
	t.Helper()
	action, err := protocol.EncodeValues(types.Values{"command": int64(1)},
		types.Schema{{Name: "command", Type: types.FieldInt}})
	if err != nil {
		t.Fatalf("encoding action: %v", err)
	}
	return scriptedChannel(t,
		&protocol.ServerMessage{
			Type: protocol.MsgAcknowledgeRegister,
			AcknowledgeRegister: &protocol.AcknowledgeRegisterData{
				SimID:            3,
				PropertiesSchema: types.Schema{{Name: "iteration_limit", Type: types.FieldInt}},
				OutputSchema:     types.Schema{{Name: "angle", Type: types.FieldFloat}},
				PredictionSchema: types.Schema{{Name: "command", Type: types.FieldInt}},
			},
		},
		&protocol.ServerMessage{Type: protocol.MsgStart},
		&protocol.ServerMessage{
			Type:        protocol.MsgPrediction,
			Predictions: []protocol.PredictionData{{DynamicPrediction: action}},
		},
		&protocol.ServerMessage{Type: protocol.MsgStop},
		&protocol.ServerMessage{Type: protocol.MsgFinished},
	)
}

// fixedSim reports a constant state and reward.
type fixedSim struct {
	reward      float64
	simulateErr error
}

func (s *fixedSim) EpisodeStart(config types.Values) (types.Values, error) {
	return types.Values{"angle": 0.0}, nil
}

func (s *fixedSim) Simulate(action types.Values) (types.Values, float64, bool, error) {
	if s.simulateErr != nil {
		return nil, 0, false, s.simulateErr
	}
	return types.Values{"angle": 0.1}, s.reward, false, nil
}

func (s *fixedSim) EpisodeFinish() error { return nil }

func (s *fixedSim) Standby(reason string) {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScriptedDriver(channel protocol.Channel, sim types.Simulation, traceFile string) *Driver {
	return NewDriver(DriverConfig{
		Name:      "test_simulator",
		Sim:       sim,
		Dial:      func() (protocol.Channel, error) { return channel, nil },
		Logger:    discardLogger(),
		TraceFile: traceFile,
	})
}

func TestDriverCountsEpisodeAndIterations(t *testing.T) {
	channel := trainingScript(t)
	driver := newScriptedDriver(channel, &fixedSim{reward: 2.5}, "")

	cycles := 0
	for driver.Run() {
		cycles++
		if cycles > 20 {
			t.Fatalf("session never finished")
		}
	}
	if err := driver.Err(); err != nil {
		t.Fatalf("run ended with error: %v", err)
	}
	if !channel.closed {
		t.Errorf("channel left open after the session finished")
	}

	if driver.EpisodeCount() != 1 {
		t.Errorf("episode count %d, expected 1", driver.EpisodeCount())
	}
	if driver.IterationCount() != 1 {
		t.Errorf("iteration count %d, expected 1", driver.IterationCount())
	}
	if driver.EpisodeReward() != 2.5 {
		t.Errorf("episode reward %v, expected 2.5", driver.EpisodeReward())
	}

	stats := driver.Stats()
	if stats.Episodes() != 1 || stats.Mean() != 2.5 {
		t.Errorf("stats recorded %d episodes with mean %v", stats.Episodes(), stats.Mean())
	}
}

func TestDriverRecordsEpisodeTrace(t *testing.T) {
	traceFile := t.TempDir() + "/trace.jsonl"
	driver := newScriptedDriver(trainingScript(t), &fixedSim{reward: 1.5}, traceFile)

	for driver.Run() {
	}
	if err := driver.Err(); err != nil {
		t.Fatalf("run ended with error: %v", err)
	}

	bs, err := os.ReadFile(traceFile)
	if err != nil {
		t.Fatalf("reading trace file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(bs)), "\n")
	if len(lines) != 1 {
		t.Fatalf("trace file has %d lines, expected one per episode", len(lines))
	}

	var trace Trace
	if err := json.Unmarshal([]byte(lines[0]), &trace); err != nil {
		t.Fatalf("trace line does not parse: %v", err)
	}
	if trace.Len() != 1 {
		t.Errorf("trace has %d steps, expected 1", trace.Len())
	}
	if trace.Reward != 1.5 {
		t.Errorf("trace reward %v, expected 1.5", trace.Reward)
	}
	if trace.Steps[0].Action.Int("command") != 1 {
		t.Errorf("trace step lost the action: %v", trace.Steps[0].Action)
	}
}

func TestDriverSurfacesCallbackError(t *testing.T) {
	cause := errors.New("model blew up")
	driver := newScriptedDriver(trainingScript(t), &fixedSim{simulateErr: cause}, "")

	for driver.Run() {
	}
	err := driver.Err()
	var simErr *protocol.SimulateError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected SimulateError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("error lost the original cause")
	}
}

func TestDriverStopIsNotAFailure(t *testing.T) {
	driver := newScriptedDriver(scriptedChannel(t), &fixedSim{}, "")
	driver.Stop()

	if driver.Run() {
		t.Errorf("run continued after stop")
	}
	if driver.Err() != nil {
		t.Errorf("clean stop recorded an error: %v", driver.Err())
	}
}

// blockedChannel never delivers a frame; Receive unwinds only when the
// channel is closed.
type blockedChannel struct {
	closed chan struct{}
	once   sync.Once
}

func (c *blockedChannel) Send(frame []byte) error { return nil }

func (c *blockedChannel) Receive() ([]byte, error) {
	<-c.closed
	return nil, errors.New("channel closed")
}

func (c *blockedChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestStopFromAnotherGoroutineUnblocksRun(t *testing.T) {
	channel := &blockedChannel{closed: make(chan struct{})}
	driver := newScriptedDriver(channel, &fixedSim{}, "")

	done := make(chan bool, 1)
	go func() {
		cont := true
		for cont {
			cont = driver.Run()
		}
		done <- cont
	}()

	// stop while the run goroutine sits in the blocking receive
	time.Sleep(20 * time.Millisecond)
	driver.Stop()

	select {
	case cont := <-done:
		if cont {
			t.Errorf("run continued after stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not unwind after stop")
	}
	if driver.Err() != nil {
		t.Errorf("concurrent stop recorded an error: %v", driver.Err())
	}
}

func TestDriverExposesLastAction(t *testing.T) {
	driver := newScriptedDriver(trainingScript(t), &fixedSim{reward: 1}, "")
	for driver.Run() {
	}
	if err := driver.Err(); err != nil {
		t.Fatalf("run ended with error: %v", err)
	}
	if driver.LastAction().Int("command") != 1 {
		t.Errorf("last action %v, expected the scripted command", driver.LastAction())
	}
}
