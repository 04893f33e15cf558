package main

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"i4.energy/across/loragw/modem"
)

// MQTTBridge connects the gateway to a broker: uplink jobs arrive as
// JSON on the uplink topic, and every dispatched downlink is published
// to the downlink topic.
type MQTTBridge struct {
	config  MQTTConfig
	log     *logrus.Logger
	gateway *Gateway
	client  mqtt.Client
}

// NewMQTTBridge prepares the bridge; Connect starts it.
func NewMQTTBridge(config MQTTConfig, log *logrus.Logger, gateway *Gateway) *MQTTBridge {
	return &MQTTBridge{config: config, log: log, gateway: gateway}
}

// Connect dials the broker and hooks the gateway's downlink path up to
// the downlink topic. Reconnects are automatic; the subscription is
// re-established by the connect handler every time.
func (b *MQTTBridge) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.config.Broker)
	opts.SetClientID(b.config.ClientID)
	if b.config.Username != "" {
		opts.SetUsername(b.config.Username)
		opts.SetPassword(b.config.Password)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.WithError(err).Warn("mqtt connection lost")
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.log.WithField("topic", b.config.UplinkTopic).Info("mqtt connected, subscribing")
		token := c.Subscribe(b.config.UplinkTopic, 0, b.onUplink)
		if token.Wait() && token.Error() != nil {
			b.log.WithError(token.Error()).Error("mqtt subscribe failed")
		}
	})

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", b.config.Broker, err)
	}

	b.gateway.SetDownlinkPublisher(b.PublishDownlink)
	return nil
}

// onUplink decodes an uplink job from the broker and queues it.
func (b *MQTTBridge) onUplink(_ mqtt.Client, msg mqtt.Message) {
	var job UplinkJob
	if err := json.Unmarshal(msg.Payload(), &job); err != nil {
		b.log.WithError(err).Warn("mqtt uplink with bad payload")
		return
	}
	if job.Payload == "" {
		b.log.Warn("mqtt uplink without payload")
		return
	}
	id, err := b.gateway.Enqueue(job)
	if err != nil {
		b.log.WithError(err).WithField("id", job.ID).Warn("mqtt uplink rejected")
		return
	}
	b.log.WithField("id", id).Debug("mqtt uplink queued")
}

// PublishDownlink forwards one downlink to the downlink topic. It runs
// on the event-draining goroutine, so it fires and forgets instead of
// waiting for the broker.
func (b *MQTTBridge) PublishDownlink(msg modem.DownlinkMessage) {
	body, err := json.Marshal(map[string]any{
		"type":    msg.MsgType,
		"port":    msg.Port,
		"length":  msg.Length,
		"payload": msg.Payload,
	})
	if err != nil {
		b.log.WithError(err).Error("downlink encode failed")
		return
	}
	b.client.Publish(b.config.DownlinkTopic, 0, false, body)
}

// Disconnect stops the bridge.
func (b *MQTTBridge) Disconnect() {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(500)
	}
}
