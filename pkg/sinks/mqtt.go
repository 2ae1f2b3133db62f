package sinks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kabili207/mesh-web-client/pkg/config"
	"github.com/kabili207/mesh-web-client/pkg/connection"
)

const mqttConnectTimeout = 10 * time.Second

var ErrMQTTTimeout = errors.New("mqtt operation timed out")

// MQTTMirror republishes radio events as JSON to <root>/<owner id>/<kind>.
type MQTTMirror struct {
	client pahomqtt.Client
	root   string
	qos    byte
	retain bool
	log    *slog.Logger
}

func NewMQTTMirror(cfg config.MQTTSettings, logger *slog.Logger) (*MQTTMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "mqtt")

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "meshweb"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout).
		SetOrderMatters(false)
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		log.Info("mqtt connected", "broker", cfg.Broker)
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, ErrMQTTTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}

	root := strings.TrimSuffix(cfg.Root, "/")
	if root == "" {
		root = "meshweb"
	}
	return &MQTTMirror{
		client: client,
		root:   root,
		qos:    cfg.QoS,
		retain: cfg.Retain,
		log:    log,
	}, nil
}

func (m *MQTTMirror) Topic(ev connection.Event) string {
	return fmt.Sprintf("%s/%s/%s", m.root, ev.Owner.String(), ev.Kind.String())
}

func (m *MQTTMirror) HandleEvent(ctx context.Context, ev connection.Event) error {
	payload, ok, err := eventPayload(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	if !ok {
		return nil
	}

	topic := m.Topic(ev)
	token := m.client.Publish(topic, m.qos, m.retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	m.log.Debug("published event", "topic", topic)
	return nil
}

func (m *MQTTMirror) Close() {
	m.client.Disconnect(250)
}
