package brain

import (
	"strings"
	"testing"

	"github.com/strideml/simlink/config"
)

func TestTrainingSessionURL(t *testing.T) {
	b := New(&config.Config{
		URL:      "https://api.strideml.ai",
		Username: "alice",
		Brain:    "cartpole",
	})

	url, err := b.SessionURL()
	if err != nil {
		t.Fatalf("resolving session URL: %v", err)
	}
	if url != "wss://api.strideml.ai/v1/alice/cartpole/sims/ws" {
		t.Errorf("unexpected training URL %q", url)
	}
}

func TestPredictionSessionURL(t *testing.T) {
	cases := []struct {
		version int
		path    string
	}{
		{config.VersionLatest, "/v1/alice/cartpole/latest/predictions/ws"},
		{4, "/v1/alice/cartpole/4/predictions/ws"},
	}
	for _, tc := range cases {
		b := New(&config.Config{
			URL:          "http://localhost:9000",
			Username:     "alice",
			Brain:        "cartpole",
			Predict:      true,
			BrainVersion: tc.version,
		})
		url, err := b.SessionURL()
		if err != nil {
			t.Fatalf("version %d: resolving session URL: %v", tc.version, err)
		}
		if url != "ws://localhost:9000"+tc.path {
			t.Errorf("version %d: unexpected prediction URL %q", tc.version, url)
		}
	}
}

func TestWebsocketSchemePassedThrough(t *testing.T) {
	b := New(&config.Config{URL: "ws://localhost:9000", Username: "alice", Brain: "cartpole"})
	url, err := b.SessionURL()
	if err != nil {
		t.Fatalf("resolving session URL: %v", err)
	}
	if !strings.HasPrefix(url, "ws://") {
		t.Errorf("ws scheme rewritten: %q", url)
	}
}

func TestHeaders(t *testing.T) {
	b := New(&config.Config{AccessKey: "secret-key", Brain: "cartpole"})
	headers := b.Headers()
	if headers.Get("Authorization") != "secret-key" {
		t.Errorf("authorization header %q", headers.Get("Authorization"))
	}
	agent := headers.Get("User-Agent")
	if !strings.HasPrefix(agent, "simlink/") || !strings.Contains(agent, b.clientID) {
		t.Errorf("user agent %q does not identify the client", agent)
	}

	// no access key, no authorization header
	anon := New(&config.Config{Brain: "cartpole"})
	if anon.Headers().Get("Authorization") != "" {
		t.Errorf("authorization header set without an access key")
	}
}
