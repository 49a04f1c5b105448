package utim

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"time"
)

// publishDrainInterval paces the UtimConnection outbound drain.
var publishDrainInterval = time.Second

// UtimConnection is the queueing façade over the Uhost link: inbound
// messages fan into a bounded queue, outbound messages drain to the broker
// once a second.
type UtimConnection struct {
	inbound  *Queue[[]byte]
	outbound *Queue[[]byte]

	topic    string
	utimName string
	protocol string
	clientID string

	destination string // unhexlified uhost name
	client      *ConnManager

	cancel context.CancelFunc
	done   chan struct{}
}

// NewUtimConnection prepares a connection listening on topic, publishing as
// name over the given protocol.
func NewUtimConnection(config *Config, topic, name, protocol, clientID string) (*UtimConnection, error) {
	uhostName, err := hex.DecodeString(config.UhostName)
	if err != nil {
		return nil, fmt.Errorf("%w: uhost_name=%s", ErrConnectivityConfig, config.UhostName)
	}
	return &UtimConnection{
		inbound:     NewQueue[[]byte](),
		outbound:    NewQueue[[]byte](),
		topic:       topic,
		utimName:    name,
		protocol:    protocol,
		clientID:    clientID,
		destination: string(uhostName),
	}, nil
}

// Connect establishes the broker connection.
func (u *UtimConnection) Connect(config *Config) error {
	client, err := newConnManager(config, u.protocol, u.clientID)
	if err != nil {
		return err
	}
	u.client = client
	return nil
}

// Run subscribes on the utim topic and starts the publish drain.
func (u *UtimConnection) Run() error {
	if err := u.client.Subscribe(u.topic, u.onMessage); err != nil {
		return err
	}
	log.Printf("subscribed to topic: %s", u.topic)

	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.done = make(chan struct{})
	go u.publishLoop(ctx)
	return nil
}

func (u *UtimConnection) publishLoop(ctx context.Context) {
	defer close(u.done)
	ticker := time.NewTicker(publishDrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopping uhost publishing..")
			return
		case <-ticker.C:
		}
		for {
			message, err := u.outbound.TryGet()
			if err != nil {
				break
			}
			if err := u.client.Publish([]byte(u.utimName), u.destination, message); err != nil {
				log.Printf("uhost publish failed: destination=%s, error=%v", u.destination, err)
				continue
			}
			stat.UhostSent.Inc()
		}
	}
}

func (u *UtimConnection) onMessage(_, message []byte) {
	// The broker callback blocks until the bounded queue accepts the
	// message.
	for u.inbound.TryPut(message) != nil {
		time.Sleep(pollInterval)
	}
	stat.UhostReceived.Inc()
}

// Receive returns the next inbound message, or nil when there is none.
func (u *UtimConnection) Receive() []byte {
	message, err := u.inbound.TryGet()
	if err != nil {
		return nil
	}
	return message
}

// Send queues data for publishing. It reports false when the outbound queue
// is full.
func (u *UtimConnection) Send(data []byte) bool {
	return u.outbound.TryPut(data) == nil
}

// Stop halts the publish drain and disconnects. It is safe to call on a
// connection that never ran.
func (u *UtimConnection) Stop() {
	if u.cancel != nil {
		u.cancel()
		<-u.done
		u.cancel = nil
	}
	if u.client != nil {
		u.client.Disconnect()
	}
}
