package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultStreamURL is the Wallex Socket.IO endpoint.
const DefaultStreamURL = "wss://api.wallex.ir/socket.io/?EIO=4&transport=websocket"

// TradeStream follows the public trade channel of one symbol over Wallex's
// Socket.IO websocket and reconnects with backoff until its context ends.
type TradeStream struct {
	url    string
	symbol string
	logger *zap.Logger
	dialer *websocket.Dialer

	readTimeout time.Duration
	maxBackoff  time.Duration
}

func NewTradeStream(rawURL, symbol string, logger *zap.Logger) *TradeStream {
	if rawURL == "" {
		rawURL = DefaultStreamURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeStream{
		url:         rawURL,
		symbol:      NormalizeSymbol(symbol),
		logger:      logger,
		dialer:      websocket.DefaultDialer,
		readTimeout: 30 * time.Second,
		maxBackoff:  60 * time.Second,
	}
}

func (s *TradeStream) channel() string { return s.symbol + "@trade" }

// Run streams trades into out until ctx is done. out is never closed by Run.
func (s *TradeStream) Run(ctx context.Context, out chan<- WallexTrade) error {
	retryDelay := time.Second
	for {
		err := s.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("WallexStream | disconnected, retrying", zap.Duration("delay", retryDelay), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
		retryDelay = min(retryDelay*2, s.maxBackoff)
	}
}

// session handles a single websocket connection.
func (s *TradeStream) session(ctx context.Context, out chan<- WallexTrade) error {
	c, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer c.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.Close()
		case <-done:
		}
	}()

	s.logger.Info("WallexStream | connection established", zap.String("symbol", s.symbol))

	// Socket.IO connect; the subscription follows the server's "40" ack.
	if err := c.WriteMessage(websocket.TextMessage, []byte("40")); err != nil {
		return err
	}

	subscribed := false
	for {
		_ = c.SetReadDeadline(time.Now().Add(s.readTimeout))
		_, message, err := c.ReadMessage()
		if err != nil {
			return err
		}
		msg := string(message)

		switch {
		case msg == "2":
			if err := c.WriteMessage(websocket.TextMessage, []byte("3")); err != nil {
				return err
			}
		case strings.HasPrefix(msg, "40") && !subscribed:
			sub, err := subscribeFrame(s.channel())
			if err != nil {
				return err
			}
			if err := c.WriteMessage(websocket.TextMessage, sub); err != nil {
				return err
			}
			subscribed = true
			s.logger.Info("WallexStream | subscribed", zap.String("channel", s.channel()))
		case strings.HasPrefix(msg, "42"):
			t, ok := parseBroadcast(message[2:], s.channel())
			if !ok {
				continue
			}
			select {
			case out <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// subscribeFrame builds 42["subscribe",{"channel":"<channel>"}].
func subscribeFrame(channel string) ([]byte, error) {
	payload, err := json.Marshal([]any{"subscribe", map[string]string{"channel": channel}})
	if err != nil {
		return nil, err
	}
	return append([]byte("42"), payload...), nil
}

// parseBroadcast decodes ["Broadcaster","<channel>",{trade}].
func parseBroadcast(data []byte, channel string) (WallexTrade, bool) {
	var event []json.RawMessage
	if err := json.Unmarshal(data, &event); err != nil || len(event) < 3 {
		return WallexTrade{}, false
	}
	var name, ch string
	if json.Unmarshal(event[0], &name) != nil || name != "Broadcaster" {
		return WallexTrade{}, false
	}
	if json.Unmarshal(event[1], &ch) != nil || ch != channel {
		return WallexTrade{}, false
	}
	var t WallexTrade
	if err := json.Unmarshal(event[2], &t); err != nil {
		return WallexTrade{}, false
	}
	return t, true
}
