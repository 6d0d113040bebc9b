package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/imageclassifier-go/internal/conf"
	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
	"github.com/tphakala/imageclassifier-go/internal/observability/metrics"
)

// maxReconnectBackoff caps the delay between reconnect attempts.
const maxReconnectBackoff = 5 * time.Minute

// client implements the Client interface on top of paho.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopOnce        sync.Once
	metrics         *metrics.MQTTMetrics
	log             logger.Logger
}

// NewClient creates a new MQTT client from settings. m may be nil.
func NewClient(settings *conf.Settings, m *metrics.MQTTMetrics) (Client, error) {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.Main.Name
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Topic = settings.MQTT.Topic
	cfg.Retain = settings.MQTT.Retain
	return NewClientWithConfig(cfg, m)
}

// NewClientWithConfig creates a new MQTT client from cfg.
func NewClientWithConfig(cfg Config, m *metrics.MQTTMetrics) (Client, error) {
	if _, err := parseBroker(cfg.Broker); err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "imageclassifier"
	}
	return &client{
		config:        cfg,
		reconnectStop: make(chan struct{}),
		metrics:       m,
		log:           GetLogger().With(logger.String("broker", cfg.Broker)),
	}, nil
}

func parseBroker(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		if err == nil {
			err = fmt.Errorf("broker %q must be scheme://host:port", broker)
		}
		return nil, errors.New(fmt.Errorf("invalid broker URL: %w", err)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return u, nil
}

// Connect resolves the broker host and connects.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt))
	}
	c.lastConnAttempt = time.Now()

	u, err := parseBroker(c.config.Broker)
	if err != nil {
		return err
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve hostname %s: %w", host, err)).
				Component("mqtt").
				Category(errors.CategoryMQTTConnect).
				Build()
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectTimeout(c.config.ConnectTimeout)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return errors.Newf("connection timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTConnect).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnect).
			Build()
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

// Publish sends payload to topic, or to the configured topic when topic is empty.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if topic == "" {
		topic = c.config.Topic
	}
	if !c.isConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 0, c.config.Retain, payload)

	var err error
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		err = fmt.Errorf("publish timeout")
	} else {
		err = token.Error()
	}
	c.metrics.RecordPublish(len(payload), time.Since(start), err)

	if err != nil {
		c.log.Warn("publish failed", logger.String("topic", topic), logger.Error(err))
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection and stops reconnect attempts.
func (c *client) Disconnect() {
	c.stopOnce.Do(func() { close(c.reconnectStop) })

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	if c.isConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds())) //nolint:gosec // G115: small positive timeout
		c.metrics.UpdateConnectionStatus(false)
	}
}

func (c *client) onConnect(_ mqtt.Client) {
	c.log.Info("Connected to MQTT broker")
	c.metrics.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("Connection to MQTT broker lost", logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := time.Second

	for {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			c.log.Info("Successfully reconnected to MQTT broker")
			return
		}

		c.log.Warn("Failed to reconnect to MQTT broker",
			logger.Error(err),
			logger.Duration("retry_in", backoff))

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnectBackoff)
		case <-c.reconnectStop:
			return
		}
	}
}

// waitToken waits for token until timeout or ctx is done.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	select {
	case <-token.Done():
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}
