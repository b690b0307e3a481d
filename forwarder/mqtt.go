package forwarder

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/jd3nn1s/ecusim"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// ThingsBoard device telemetry topic
	defaultTelemetryTopic = "v1/devices/me/telemetry"
	defaultKeepAlive      = 60
	disconnectWait        = 5 * time.Second
	publishWait           = 5 * time.Second
)

type MQTTConfig struct {
	ServerURL string `toml:"server_url" yaml:"server_url"`
	// for ThingsBoard set the username to the device access token
	Username  string `toml:"username" yaml:"username"`
	Password  string `toml:"password" yaml:"password"`
	ClientID  string `toml:"client_id" yaml:"client_id"`
	Topic     string `toml:"topic" yaml:"topic"`
	QoS       byte   `toml:"qos" yaml:"qos"`
	KeepAlive uint16 `toml:"keep_alive" yaml:"keep_alive"`
}

type mqttClient interface {
	AwaitConnection(ctx context.Context) error
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Disconnect(ctx context.Context) error
}

// to allow testing
var mqttConnect = func(ctx context.Context, cfg autopaho.ClientConfig) (mqttClient, error) {
	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cm, nil
}

// telemetryMessage is the ThingsBoard timeseries shape.
type telemetryMessage struct {
	Timestamp int64            `json:"ts"`
	Values    *ecusim.LiveData `json:"values"`
}

type MQTTForwarder struct {
	Config *MQTTConfig

	serverURL *url.URL
	fwdChan   chan *ecusim.LiveData

	mu     sync.Mutex
	client mqttClient
}

func NewMQTTForwarder(config *MQTTConfig) (*MQTTForwarder, error) {
	serverURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse mqtt server url %s", config.ServerURL)
	}
	if serverURL.Host == "" {
		return nil, errors.Errorf("mqtt server url %s has no host", config.ServerURL)
	}
	if config.Topic == "" {
		config.Topic = defaultTelemetryTopic
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = defaultKeepAlive
	}
	if config.ClientID == "" {
		config.ClientID = "ecusim-" + uuid.NewString()
	}
	if config.QoS > 2 {
		return nil, errors.Errorf("invalid mqtt qos %d", config.QoS)
	}
	return &MQTTForwarder{
		Config:    config,
		serverURL: serverURL,
		fwdChan:   make(chan *ecusim.LiveData, 1),
	}, nil
}

func (mqtt *MQTTForwarder) Name() string {
	return "mqtt"
}

func (mqtt *MQTTForwarder) Forward(newData *ecusim.LiveData, prevData *ecusim.LiveData) error {
	dataCopy := *newData
	select {
	case mqtt.fwdChan <- &dataCopy:
	default:
	}
	return nil
}

// Start connects to the broker and publishes queued samples until ctx is done.
// autopaho reconnects on its own.
func (mqtt *MQTTForwarder) Start(ctx context.Context) error {
	client, err := mqttConnect(ctx, mqtt.clientConfig())
	if err != nil {
		return errors.Wrap(err, "unable to connect to mqtt broker")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), disconnectWait)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.WithField("err", err).Warn("unable to disconnect from mqtt broker")
		}
	}()
	if err := client.AwaitConnection(ctx); err != nil {
		return err
	}
	mqtt.setClient(client)
	defer mqtt.setClient(nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-mqtt.fwdChan:
			// an in-flight publish outlives ctx so the last sample is not cut off
			publishCtx, cancel := context.WithTimeout(context.Background(), publishWait)
			if err := mqtt.publish(publishCtx, client, d); err != nil {
				log.WithField("err", err).Error("unable to publish telemetry")
			}
			cancel()
		}
	}
}

// Flush publishes the queued sample, if any.
func (mqtt *MQTTForwarder) Flush(ctx context.Context) error {
	mqtt.mu.Lock()
	client := mqtt.client
	mqtt.mu.Unlock()

	select {
	case d := <-mqtt.fwdChan:
		if client == nil {
			return errors.New("mqtt client is not connected")
		}
		return mqtt.publish(ctx, client, d)
	default:
	}
	return nil
}

func (mqtt *MQTTForwarder) setClient(client mqttClient) {
	mqtt.mu.Lock()
	defer mqtt.mu.Unlock()
	mqtt.client = client
}

func (mqtt *MQTTForwarder) publish(ctx context.Context, client mqttClient, data *ecusim.LiveData) error {
	payload, err := telemetryPayload(data)
	if err != nil {
		return err
	}
	_, err = client.Publish(ctx, &paho.Publish{
		QoS:     mqtt.Config.QoS,
		Topic:   mqtt.Config.Topic,
		Payload: payload,
	})
	return err
}

func (mqtt *MQTTForwarder) clientConfig() autopaho.ClientConfig {
	cfg := autopaho.ClientConfig{
		BrokerUrls:                    []*url.URL{mqtt.serverURL},
		KeepAlive:                     mqtt.Config.KeepAlive,
		CleanStartOnInitialConnection: true,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			log.WithField("server", mqtt.serverURL.Host).Info("mqtt connection up")
		},
		OnConnectError: func(err error) {
			log.WithField("err", err).Error("error whilst attempting mqtt connection")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: mqtt.Config.ClientID,
			OnClientError: func(err error) {
				log.WithField("err", err).Error("mqtt client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				log.WithField("reasonCode", d.ReasonCode).Warn("mqtt server requested disconnect")
			},
		},
	}
	if mqtt.Config.Username != "" {
		cfg.ConnectUsername = mqtt.Config.Username
		cfg.ConnectPassword = []byte(mqtt.Config.Password)
	}
	return cfg
}

func telemetryPayload(data *ecusim.LiveData) ([]byte, error) {
	ts, err := time.Parse(ecusim.TimestampLayout, data.Timestamp)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid telemetry timestamp %q", data.Timestamp)
	}
	return json.Marshal(&telemetryMessage{
		Timestamp: ts.UnixNano() / int64(time.Millisecond),
		Values:    data,
	})
}
