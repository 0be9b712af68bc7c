package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mirelabs/mira/internal/protocol"
)

type WSDialerConfig struct {
	// URL is the realtime endpoint, e.g. wss://api.openai.com/v1/realtime.
	URL     string
	ModelID string
}

// WSDialer dials the realtime speech service over websocket. The session
// token goes in the Authorization header only; it never appears in the URL.
type WSDialer struct {
	cfg WSDialerConfig
	log zerolog.Logger
}

func NewWSDialer(cfg WSDialerConfig, log zerolog.Logger) *WSDialer {
	return &WSDialer{cfg: cfg, log: log}
}

func (d *WSDialer) Dial(ctx context.Context, token string) (Transport, error) {
	endpoint := d.cfg.URL
	if d.cfg.ModelID != "" {
		endpoint += "?model=" + url.QueryEscape(d.cfg.ModelID)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime handshake rejected: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	t := &wsTransport{
		conn:   conn,
		events: make(chan any, 64),
		closed: make(chan struct{}),
		log:    d.log,
	}
	go t.readLoop()
	return t, nil
}

type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	events  chan any

	// closed releases the read loop if it is parked on a full events
	// channel nobody is draining anymore.
	closed    chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

func (t *wsTransport) Send(msg any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("realtime send: %w", err)
	}
	return nil
}

func (t *wsTransport) Events() <-chan any { return t.events }

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.conn.Close()
	})
	return nil
}

// readLoop pumps inbound frames into the events channel until the connection
// dies, then closes the channel so the session client sees the disconnect.
func (t *wsTransport) readLoop() {
	defer close(t.events)
	defer t.Close()

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.log.Debug().Err(err).Msg("realtime read ended")
			}
			return
		}

		event, err := protocol.ParseServerEvent(raw)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedType) {
				continue
			}
			t.log.Warn().Err(err).Msg("discarding malformed realtime event")
			continue
		}
		select {
		case t.events <- event:
		case <-t.closed:
			return
		}
	}
}
