package newsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"hermes/internal/domain/models"
	drepo "hermes/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements an EventStream backed by the classifier's WebSocket feed.
// Frames carry already-classified events; scoring happens downstream.
type Client struct {
	apiKey         string
	websocketURL   string
	channels       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a new newsfeed EventStream.
func New(apiKey, websocketURL string, channels []string, reconnectDelay, pingInterval time.Duration) drepo.EventStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		channels:       channels,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("newsfeed connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("newsfeed: connected")
	return nil
}

// Subscribe subscribes to configured channels (e.g. "bist", "global").
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("newsfeed not connected")
	}
	for _, ch := range c.channels {
		msg := map[string]string{"type": "subscribe", "channel": ch}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", ch, err)
		}
		log.Printf("newsfeed: subscribed %s", ch)
	}
	return nil
}

type feedEvent struct {
	ID                string   `json:"id"`
	Scope             string   `json:"scope"`
	Symbol            string   `json:"symbol"`
	ArticleID         string   `json:"articleId"`
	Headline          string   `json:"headline"`
	EventType         string   `json:"eventType"`
	Polarity          string   `json:"polarity"`
	Severity          float64  `json:"severity"`
	Confidence        float64  `json:"confidence"`
	HorizonHint       string   `json:"horizonHint"`
	RiskFlags         []string `json:"riskFlags"`
	SourceName        string   `json:"sourceName"`
	SourceReliability float64  `json:"sourceReliability"`
	PublishedAt       int64    `json:"publishedAt"` // ms
	ArticleURL        string   `json:"articleUrl"`
}

type feedMessage struct {
	Type string      `json:"type"`
	Data []feedEvent `json:"data"`
}

// Read streams classified events and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.Event, <-chan error) {
	events := make(chan *models.Event, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("newsfeed conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("newsfeed read: %w", err)
					return
				}
				var m feedMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-event frames
					continue
				}
				if m.Type != "event" {
					continue
				}
				for _, d := range m.Data {
					select {
					case events <- toEvent(d):
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return events, errs
}

func toEvent(d feedEvent) *models.Event {
	flags := make([]models.RiskFlag, 0, len(d.RiskFlags))
	for _, f := range d.RiskFlags {
		flags = append(flags, models.RiskFlag(f))
	}
	return &models.Event{
		ID:                d.ID,
		Scope:             models.EventScope(d.Scope),
		Symbol:            d.Symbol,
		ArticleID:         d.ArticleID,
		Headline:          d.Headline,
		EventType:         models.EventType(d.EventType),
		Polarity:          models.Polarity(d.Polarity),
		Severity:          d.Severity,
		Confidence:        d.Confidence,
		HorizonHint:       models.Horizon(d.HorizonHint),
		RiskFlags:         flags,
		SourceName:        d.SourceName,
		SourceReliability: d.SourceReliability,
		PublishedAt:       time.Unix(0, d.PublishedAt*int64(time.Millisecond)),
		CreatedAt:         time.Now(),
		ArticleURL:        d.ArticleURL,
	}
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
