package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/climate-agent/internal/logger"
	"github.com/sweeney/climate-agent/internal/logic"
	"github.com/sweeney/climate-agent/internal/store"
)

// CredentialsKey is the blob key holding the broker username and password.
const CredentialsKey = "mqtt.credentials"

// Credentials are the broker login, stored as JSON under CredentialsKey.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Options configures a Client.
type Options struct {
	Broker         string
	ClientID       string
	Topics         Topics
	SendTimeout    time.Duration
	ConnectTimeout time.Duration
}

// Client is the real broker connection. It is the operator Channel, the
// structured Publisher, and the network link driven by the reconnection
// manager: paho's own reconnect logic is disabled.
type Client struct {
	client  paho.Client
	topics  Topics
	inbox   *Inbox
	blobs   store.BlobStore
	log     *logger.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending paho.Token // in-flight connect, nil when idle
}

// NewClient builds a client. It does not connect; the reconnection manager
// calls RequestReconnect.
func NewClient(opts Options, blobs store.BlobStore, log *logger.Logger) *Client {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	c := &Client{
		topics:  opts.Topics,
		inbox:   NewInbox(DefaultInboxCapacity),
		blobs:   blobs,
		log:     log.Component("mqtt"),
		timeout: opts.SendTimeout,
	}
	c.inbox.onOverflow = func(capacity int) {
		c.log.Warnw("command inbox full, dropping oldest", "capacity", capacity)
	}

	offline, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(opts.ConnectTimeout).
		SetKeepAlive(30 * time.Second).
		SetCleanSession(false).
		SetWill(opts.Topics.System, string(offline), 1, true).
		SetCredentialsProvider(c.credentials).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(pahoOpts)
	return c
}

// credentials is called by paho before every connect attempt.
func (c *Client) credentials() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	creds, err := LoadCredentials(ctx, c.blobs)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warnw("cannot read broker credentials", "err", err)
		}
		return "", ""
	}
	return creds.Username, creds.Password
}

func (c *Client) onConnect(client paho.Client) {
	c.log.Infow("connected to broker", "commands", c.topics.Commands)

	token := client.Subscribe(c.topics.Commands, 1, func(_ paho.Client, msg paho.Message) {
		seq := c.inbox.Push(string(msg.Payload()))
		c.log.Debugw("command received", "seq", seq)
	})
	if !token.WaitTimeout(c.timeout) {
		c.log.Warnw("subscribe timeout", "topic", c.topics.Commands)
		return
	}
	if err := token.Error(); err != nil {
		c.log.Warnw("subscribe failed", "topic", c.topics.Commands, "err", err)
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warnw("connection to broker lost", "err", err)
}

// Status reports the link state.
func (c *Client) Status() logic.NetworkStatus {
	if c.client.IsConnectionOpen() {
		return logic.Connected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return logic.Disconnected
	}
	select {
	case <-c.pending.Done():
		if err := c.pending.Error(); err != nil {
			c.log.Warnw("connect attempt failed", "err", err)
		}
		c.pending = nil
		return logic.Disconnected
	default:
		return logic.Connecting
	}
}

// RequestReconnect starts a connect attempt and returns immediately.
func (c *Client) RequestReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		select {
		case <-c.pending.Done():
		default:
			return // attempt already in flight
		}
	}
	c.pending = c.client.Connect()
}

// ResetCredentials forgets the stored broker login.
func (c *Client) ResetCredentials() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.blobs.DeleteBlob(ctx, CredentialsKey)
}

// FetchSince implements Channel.
func (c *Client) FetchSince(cursor uint64) ([]Message, error) {
	return c.inbox.Since(cursor), nil
}

// Send implements Channel.
func (c *Client) Send(ctx context.Context, text string) error {
	return c.publish(ctx, "send", c.topics.Replies, 1, false, []byte(text))
}

// PublishReading implements Publisher.
func (c *Client) PublishReading(ctx context.Context, r Reading) error {
	payload, err := FormatReadingPayload(r)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return c.publish(ctx, "publish reading", c.topics.Telemetry, 0, false, payload)
}

// PublishSystem implements Publisher.
func (c *Client) PublishSystem(ctx context.Context, event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(ctx, "publish system", c.topics.System, 1, event.Retained, payload)
}

func (c *Client) publish(ctx context.Context, op, topic string, qos byte, retained bool, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	token := c.client.Publish(topic, qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return &TransportError{Op: op, Err: ctx.Err()}
	}
	if err := token.Error(); err != nil {
		return &TransportError{Op: op, Err: err}
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}

// LoadCredentials reads the stored broker login.
func LoadCredentials(ctx context.Context, blobs store.BlobStore) (Credentials, error) {
	data, err := blobs.ReadBlob(ctx, CredentialsKey)
	if err != nil {
		return Credentials{}, err
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

// SeedCredentials stores creds unless credentials are already stored. It
// reports whether it wrote anything. Empty usernames are ignored.
func SeedCredentials(ctx context.Context, blobs store.BlobStore, creds Credentials) (bool, error) {
	if creds.Username == "" {
		return false, nil
	}
	if _, err := blobs.ReadBlob(ctx, CredentialsKey); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return false, fmt.Errorf("encode credentials: %w", err)
	}
	if err := blobs.WriteBlob(ctx, CredentialsKey, data); err != nil {
		return false, err
	}
	return true, nil
}
