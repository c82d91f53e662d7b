// Package gateway implements the /ws entry point: accepting connections,
// running the per-connection read loop and keepalive task, and adapting a
// coder/websocket connection to the session package's narrow Transport
// interface.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/vocalis-ai/voxrelay/internal/logging"
	"github.com/vocalis-ai/voxrelay/internal/session"
)

// writeTimeout bounds any single outbound write; a slower client triggers a
// session teardown rather than blocking the session indefinitely.
const writeTimeout = 2 * time.Second

// keepaliveInterval is how often the gateway sends a ping to defeat
// intermediary idle-timeout proxies.
const keepaliveInterval = 25 * time.Second

// ProviderFactory builds one fresh vendor adapter set per connection. A
// fresh set per connection (rather than one shared instance) matters most
// for TTS adapters that hold per-call mutable state (a persistent socket,
// an in-flight-request cancel func) — sharing one across concurrent
// sessions would let one session's barge-in cancel another's turn.
type ProviderFactory struct {
	NewSTT func() session.STTProvider
	NewLLM func() session.LLMProvider
	NewTTS func() session.TTSProvider
}

// Gateway serves the /ws endpoint plus health and static routes.
type Gateway struct {
	factory ProviderFactory
	opts    session.Options
	logger  logging.Logger
	mux     *http.ServeMux
}

// New builds a Gateway. staticDir may be empty to skip serving a browser
// shell (useful in tests).
func New(factory ProviderFactory, opts session.Options, logger logging.Logger, staticDir string) *Gateway {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	g := &Gateway{factory: factory, opts: opts, logger: logger, mux: http.NewServeMux()}

	g.mux.HandleFunc("/ws", g.handleWS)
	g.mux.HandleFunc("/healthz", g.handleHealthz)
	if staticDir != "" {
		g.mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}

	return g
}

// Handler returns the gateway's http.Handler, for use with http.Server or
// httptest.NewServer.
func (g *Gateway) Handler() http.Handler { return g.mux }

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket accept failed", "error", err)
		return
	}

	id := uuid.NewString()
	transport := &wsTransport{conn: conn}

	stt := g.factory.NewSTT()
	llm := g.factory.NewLLM()
	tts := g.factory.NewTTS()

	sess, err := session.New(id, stt, llm, tts, transport, g.logger, g.opts)
	if err != nil {
		g.logger.Error("failed to construct session", "session", id, "error", err)
		conn.Close(websocket.StatusInternalError, "session init failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go sess.Run(ctx)
	go g.keepalive(ctx, transport)

	g.logger.Info("session started", "session", id)
	g.readLoop(ctx, conn, sess)
	sess.Close()
	conn.Close(websocket.StatusNormalClosure, "")
	g.logger.Info("session ended", "session", id)
}

func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType == websocket.MessageBinary {
			sess.HandleAudioFrame(data)
		}
		// Text frames are reserved for future client-initiated controls and
		// are otherwise ignored, per wire protocol.
	}
}

func (g *Gateway) keepalive(ctx context.Context, transport *wsTransport) {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = transport.WriteJSON(map[string]string{"type": "ping"})
		}
	}
}

// wsTransport adapts a *websocket.Conn to session.Transport, serializing
// every write (binary and JSON share one connection-level write lock via
// coder/websocket's own internal mutex) and bounding each write to
// writeTimeout.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) WriteJSON(v interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, t.conn, v)
}

func (t *wsTransport) WriteBinary(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return t.conn.Write(ctx, websocket.MessageBinary, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "forced close")
}
