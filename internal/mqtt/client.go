package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/logger"
)

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	log             logger.Logger

	// lookupHost resolves the broker host before paho dials it.
	lookupHost func(ctx context.Context, host string) ([]string, error)

	reconnecting  bool
	reconnectStop chan struct{}
	stopOnce      sync.Once
}

// resolveError marks a broker host that did not resolve. Paho never gets a
// client for it, so the reconnect loop retries the resolution.
type resolveError struct {
	host string
	err  error
}

func (e *resolveError) Error() string {
	return fmt.Sprintf("failed to resolve hostname %s: %v", e.host, e.err)
}

func (e *resolveError) Unwrap() error { return e.err }

// NewClient creates a new MQTT client. Unset timeouts take their
// DefaultConfig values; a nil log uses the "mqtt" module logger.
func NewClient(config Config, log logger.Logger) (Client, error) {
	if config.Broker == "" {
		return nil, errors.Newf("mqtt broker is required").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, err := url.Parse(config.Broker); err != nil {
		return nil, errors.New(fmt.Errorf("invalid broker URL: %w", err)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", config.Broker).
			Build()
	}

	config = withDefaults(config)
	if log == nil {
		log = logger.Global().Module("mqtt")
	}

	return &client{
		config:        config,
		log:           log,
		lookupHost:    net.DefaultResolver.LookupHost,
		reconnectStop: make(chan struct{}),
	}, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
//
// Once paho has a client it keeps retrying on its own, including after a
// failed first attempt. When the hostname does not resolve, Connect starts
// a background loop that retries with backoff until Disconnect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", since)
	}
	c.lastConnAttempt = time.Now()

	err := c.connectLocked(ctx)
	var rerr *resolveError
	if errors.As(err, &rerr) {
		c.startReconnectLocked()
	}
	return err
}

func (c *client) connectLocked(ctx context.Context) error {
	if c.internalClient != nil {
		if c.internalClient.IsConnectionOpen() {
			return nil
		}
		// Replace a client still retrying against the old resolution.
		c.internalClient.Disconnect(0)
		c.internalClient = nil
	}

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("invalid broker URL %q: missing host", c.config.Broker)
	}
	if net.ParseIP(host) == nil {
		if _, err := c.lookupHost(ctx, host); err != nil {
			return &resolveError{host: host, err: err}
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(c.config.ReconnectCooldown)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectInterval)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = mqtt.NewClient(opts)

	if err := c.wait(ctx, c.internalClient.Connect(), c.config.ConnectTimeout); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	return nil
}

// startReconnectLocked runs reconnectWithBackoff once at a time.
func (c *client) startReconnectLocked() {
	if c.reconnecting {
		return
	}
	select {
	case <-c.reconnectStop:
		return
	default:
	}
	c.reconnecting = true
	go c.reconnectWithBackoff()
}

// reconnectWithBackoff retries the connection starting at ReconnectCooldown
// and doubling up to MaxReconnectInterval. It stops once paho owns a client,
// which then retries by itself, or when Disconnect is called.
func (c *client) reconnectWithBackoff() {
	backoff := c.config.ReconnectCooldown
	timer := time.NewTimer(backoff)
	defer timer.Stop()

	for {
		select {
		case <-c.reconnectStop:
			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		c.mu.Lock()
		err := c.connectLocked(ctx)
		owned := c.internalClient != nil
		if owned {
			c.reconnecting = false
		}
		c.mu.Unlock()
		cancel()

		if owned {
			if err != nil {
				c.log.Info("MQTT broker resolved, connection retries continue in the client",
					logger.String("broker", c.config.Broker),
					logger.Error(err))
			}
			return
		}

		backoff = min(backoff*2, c.config.MaxReconnectInterval)
		c.log.Warn("MQTT reconnect failed",
			logger.String("broker", c.config.Broker),
			logger.Duration("retry_in", backoff),
			logger.Error(err))
		timer.Reset(backoff)
	}
}

// Publish sends a message to the specified topic on the MQTT broker.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internalClient
	c.mu.Unlock()

	if internal == nil || !internal.IsConnectionOpen() {
		return fmt.Errorf("not connected to MQTT broker")
	}

	token := internal.Publish(topic, c.config.QoS, c.config.Retain, payload)
	if err := c.wait(ctx, token, c.config.PublishTimeout); err != nil {
		c.log.Warn("publish failed",
			logger.String("topic", topic),
			logger.Error(err))
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	c.log.Trace("published",
		logger.String("topic", topic),
		logger.Int("bytes", len(payload)))
	return nil
}

// withDefaults fills zero timeouts from DefaultConfig and clamps QoS.
func withDefaults(c Config) Config {
	d := DefaultConfig()
	for _, f := range []struct{ v, def *time.Duration }{
		{&c.ReconnectCooldown, &d.ReconnectCooldown},
		{&c.MaxReconnectInterval, &d.MaxReconnectInterval},
		{&c.ConnectTimeout, &d.ConnectTimeout},
		{&c.PublishTimeout, &d.PublishTimeout},
		{&c.DisconnectTimeout, &d.DisconnectTimeout},
	} {
		if *f.v <= 0 {
			*f.v = *f.def
		}
	}
	if c.QoS > 2 {
		c.QoS = d.QoS
	}
	return c
}

// wait blocks until token completes, timeout passes or ctx ends.
func (c *client) wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnectionOpen()
}

// Disconnect closes the connection to the MQTT broker and stops every
// reconnect attempt. The client cannot be reconnected afterwards.
func (c *client) Disconnect() {
	c.stopOnce.Do(func() { close(c.reconnectStop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient == nil {
		return
	}
	wasOpen := c.internalClient.IsConnectionOpen()
	c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.internalClient = nil
	if wasOpen {
		c.log.Info("disconnected from MQTT broker", logger.String("broker", c.config.Broker))
	}
}

// isReconnecting reports whether the backoff loop is running.
func (c *client) isReconnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnecting
}

func (c *client) onConnect(mqtt.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
}

func (c *client) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	c.log.Debug("reconnecting to MQTT broker", logger.String("broker", c.config.Broker))
}
