package utim

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/connax-utim/utim/umqtt"
)

// senderSeparator splits the sender prefix from the rest of every broker
// payload: sender ∥ 0x20 ∥ message.
const senderSeparator byte = 0x20

// frameSenderPayload prepends the sender prefix.
func frameSenderPayload(sender, message []byte) []byte {
	out := make([]byte, 0, len(sender)+1+len(message))
	out = append(out, sender...)
	out = append(out, senderSeparator)
	return append(out, message...)
}

// splitSenderPayload splits at the first separator. Payloads without a
// separator come back with an empty message.
func splitSenderPayload(payload []byte) (sender, message []byte) {
	if i := bytes.IndexByte(payload, senderSeparator); i >= 0 {
		return payload[:i], payload[i+1:]
	}
	return payload, nil
}

// uhostTransport is the raw broker connection shared by the paho and the
// embedded umqtt paths. Publish frames the sender prefix; Subscribe delivers
// the split (sender, message) pair.
type uhostTransport interface {
	Subscribe(topic string, callback func(sender, message []byte)) error
	Unsubscribe(topic string) error
	Publish(sender []byte, destination string, message []byte) error
	Disconnect()
}

// brokerConn is the paho-backed transport.
type brokerConn struct {
	client   paho.Client
	clientID string
}

func validateBrokerConfig(config *Config) error {
	if config.MQTT.User == "" || config.MQTT.Pass == "" {
		return ErrConnectivityCredentials
	}
	if config.MQTT.Host == "" {
		return ErrConnectivityHost
	}
	return nil
}

// newBrokerConn connects to the configured broker. Credential and host
// validation errors surface as connectivity errors so bring-up can map them
// to status codes.
func newBrokerConn(config *Config, clientID string) (*brokerConn, error) {
	if err := validateBrokerConfig(config); err != nil {
		return nil, err
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:1883", config.MQTT.Host)).
		SetClientID(clientID).
		SetUsername(config.MQTT.User).
		SetPassword(config.MQTT.Pass).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetryInterval(time.Duration(config.MQTT.ReconnectTime) * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("broker connection lost: client_id=%s, error=%v", clientID, err)
		})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("%w: %v", ErrUhostConnection, token.Error())
	}
	log.Printf("broker connected: client_id=%s, host=%s", clientID, config.MQTT.Host)
	return &brokerConn{client: client, clientID: clientID}, nil
}

func (b *brokerConn) Subscribe(topic string, callback func(sender, message []byte)) error {
	handler := func(_ paho.Client, m paho.Message) {
		sender, message := splitSenderPayload(m.Payload())
		callback(sender, message)
	}
	if token := b.client.Subscribe(topic, 0, handler); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrUhostConnection, token.Error())
	}
	log.Printf("broker subscribed: client_id=%s, topic=%s", b.clientID, topic)
	return nil
}

func (b *brokerConn) Unsubscribe(topic string) error {
	if token := b.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %v", ErrUhostConnection, token.Error())
	}
	return nil
}

func (b *brokerConn) Publish(sender []byte, destination string, message []byte) error {
	if destination == "" || message == nil || sender == nil {
		return ErrExchange
	}
	payload := frameSenderPayload(sender, message)
	if token := b.client.Publish(destination, 0, false, payload); token.Wait() && token.Error() != nil {
		log.Printf("broker publish failed: client_id=%s, destination=%s, error=%v", b.clientID, destination, token.Error())
		return fmt.Errorf("%w: %v", ErrUhostConnection, token.Error())
	}
	return nil
}

func (b *brokerConn) Disconnect() {
	b.client.Disconnect(250)
	log.Printf("broker disconnected: client_id=%s", b.clientID)
}

// umqttConn is the embedded-client transport for constrained links.
type umqttConn struct {
	client *umqtt.Client
	cb     func(sender, message []byte)
}

func newUMQTTConn(config *Config, clientID string) (*umqttConn, error) {
	if err := validateBrokerConfig(config); err != nil {
		return nil, err
	}
	u := &umqttConn{
		client: umqtt.NewClient(fmt.Sprintf("%s:1883", config.MQTT.Host), clientID, config.MQTT.User, config.MQTT.Pass),
	}
	u.client.OnMessage(func(_ string, payload []byte) {
		if u.cb == nil {
			return
		}
		sender, message := splitSenderPayload(payload)
		u.cb(sender, message)
	})
	if err := u.client.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUhostConnection, err)
	}
	return u, nil
}

func (u *umqttConn) Subscribe(topic string, callback func(sender, message []byte)) error {
	u.cb = callback
	if err := u.client.Subscribe(context.Background(), topic); err != nil {
		return fmt.Errorf("%w: %v", ErrUhostConnection, err)
	}
	return nil
}

func (u *umqttConn) Unsubscribe(topic string) error {
	return u.client.Unsubscribe(topic)
}

func (u *umqttConn) Publish(sender []byte, destination string, message []byte) error {
	if destination == "" || message == nil || sender == nil {
		return ErrExchange
	}
	return u.client.Publish(destination, frameSenderPayload(sender, message))
}

func (u *umqttConn) Disconnect() {
	if err := u.client.Disconnect(); err != nil {
		log.Printf("umqtt disconnect: error=%v", err)
	}
}
