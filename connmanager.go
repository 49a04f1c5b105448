package utim

import (
	"fmt"
	"log"
)

// ConnManager selects the Uhost transport by protocol: "mqtt" is the paho
// client wrapped in the at-least-once layer, "umqtt" is the raw embedded
// client.
type ConnManager struct {
	conn uhostTransport
}

func newConnManager(config *Config, protocol, clientID string) (*ConnManager, error) {
	log.Printf("initializing connmanager: type=%s", protocol)
	switch protocol {
	case ConnectionTypeMQTT:
		raw, err := newBrokerConn(config, clientID)
		if err != nil {
			return nil, err
		}
		return &ConnManager{conn: newAckedConn(raw)}, nil
	case ConnectionTypeUMQTT:
		raw, err := newUMQTTConn(config, clientID)
		if err != nil {
			return nil, err
		}
		return &ConnManager{conn: raw}, nil
	default:
		return nil, fmt.Errorf("%w: protocol=%s", ErrConnectivityConfig, protocol)
	}
}

func (m *ConnManager) Subscribe(topic string, callback func(sender, message []byte)) error {
	log.Printf("subscribing for %s", topic)
	return m.conn.Subscribe(topic, callback)
}

func (m *ConnManager) Unsubscribe(topic string) error {
	log.Printf("unsubscribing from %s", topic)
	return m.conn.Unsubscribe(topic)
}

func (m *ConnManager) Publish(sender []byte, destination string, message []byte) error {
	return m.conn.Publish(sender, destination, message)
}

func (m *ConnManager) Disconnect() {
	log.Printf("disconnecting...")
	m.conn.Disconnect()
}
