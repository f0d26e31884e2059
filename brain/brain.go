package brain

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/google/uuid"

	"github.com/strideml/simlink/config"
)

const clientVersion = "0.1.0"

// Brain resolves the session endpoint and connection headers for one brain.
// The endpoint differs between training and prediction mode.
type Brain struct {
	cfg      *config.Config
	clientID string
}

func New(cfg *config.Config) *Brain {
	return &Brain{
		cfg:      cfg,
		clientID: uuid.NewString(),
	}
}

// Name of the brain.
func (b *Brain) Name() string { return b.cfg.Brain }

// Predict reports whether the session runs in prediction mode.
func (b *Brain) Predict() bool { return b.cfg.Predict }

// Version of the brain used for prediction, 0 for latest.
func (b *Brain) Version() int { return b.cfg.BrainVersion }

// SessionURL resolves the websocket URL of the duplex session channel.
func (b *Brain) SessionURL() (string, error) {
	u, err := url.Parse(b.cfg.URL)
	if err != nil {
		return "", &config.ConfigurationError{Msg: fmt.Sprintf("invalid server URL %q", b.cfg.URL), Cause: err}
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	if b.cfg.Predict {
		version := "latest"
		if b.cfg.BrainVersion != config.VersionLatest {
			version = strconv.Itoa(b.cfg.BrainVersion)
		}
		u.Path = path.Join("/v1", b.cfg.Username, b.cfg.Brain, version, "predictions/ws")
	} else {
		u.Path = path.Join("/v1", b.cfg.Username, b.cfg.Brain, "sims/ws")
	}
	return u.String(), nil
}

// Headers builds the per-connection headers for authentication and client
// identification.
func (b *Brain) Headers() http.Header {
	headers := http.Header{}
	if b.cfg.AccessKey != "" {
		headers.Set("Authorization", b.cfg.AccessKey)
	}
	headers.Set("User-Agent", fmt.Sprintf("simlink/%s (client %s)", clientVersion, b.clientID))
	return headers
}
