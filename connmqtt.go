package utim

import (
	"context"
	"encoding/binary"
	"log"
	"math/rand/v2"
	"sync"
	"time"
)

// Message kind bytes inside the broker payload, right after the sender
// prefix.
const (
	kindData byte = 0x01
	kindAck  byte = 0x02
)

// ackTopic is the sender name acks are published under.
var ackTopic = []byte("ack")

// Republish schedule: first retry after republishDelay, then every
// republishInterval until the ack arrives. Variables so the tests can run
// the schedule at millisecond scale.
var (
	republishDelay    = 10 * time.Second
	republishInterval = 5 * time.Second
	republishScan     = time.Second
)

type sentMessage struct {
	sender       []byte
	destination  string
	message      []byte
	nextDeadline time.Time
}

// ackedConn layers at-least-once delivery over a raw transport. Every data
// frame is kind ∥ u16-be id ∥ message; the entry for id stays in the sent
// table, and the frame keeps being republished, until the matching ack
// arrives. Receivers must treat duplicate deliveries as idempotent.
type ackedConn struct {
	conn uhostTransport

	mu            sync.Mutex
	messageNumber uint16
	sent          map[uint16]*sentMessage

	callback func(sender, message []byte)

	cancel context.CancelFunc
	done   chan struct{}
}

func newAckedConn(conn uhostTransport) *ackedConn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &ackedConn{
		conn: conn,
		// Random start so ids do not trivially collide after a restart.
		messageNumber: uint16(rand.Uint32()),
		sent:          make(map[uint16]*sentMessage),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go c.republisher(ctx)
	return c
}

func (c *ackedConn) Subscribe(topic string, callback func(sender, message []byte)) error {
	c.callback = callback
	return c.conn.Subscribe(topic, c.onMessage)
}

func (c *ackedConn) Unsubscribe(topic string) error {
	return c.conn.Unsubscribe(topic)
}

// Publish allocates a fresh id, records the message for republishing and
// emits the framed data message.
func (c *ackedConn) Publish(sender []byte, destination string, message []byte) error {
	c.mu.Lock()
	id := c.messageNumber
	c.messageNumber++
	c.sent[id] = &sentMessage{
		sender:       sender,
		destination:  destination,
		message:      message,
		nextDeadline: time.Now().Add(republishDelay),
	}
	stat.PendingAcks.Set(float64(len(c.sent)))
	c.mu.Unlock()

	return c.conn.Publish(sender, destination, frameData(id, message))
}

// republisher re-emits every unacked message past its deadline. A single
// scan loop replaces one timer per message; the table is checked under the
// lock right before each re-emit so an ack landing mid-cycle wins.
func (c *ackedConn) republisher(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(republishScan)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		type due struct {
			id uint16
			m  sentMessage
		}
		var pending []due
		c.mu.Lock()
		for id, m := range c.sent {
			if now.After(m.nextDeadline) {
				m.nextDeadline = now.Add(republishInterval)
				pending = append(pending, due{id: id, m: *m})
			}
		}
		c.mu.Unlock()

		for _, d := range pending {
			log.Printf("republish: id=%d, destination=%s", d.id, d.m.destination)
			stat.Republishes.Inc()
			if err := c.conn.Publish(d.m.sender, d.m.destination, frameData(d.id, d.m.message)); err != nil {
				log.Printf("republish failed: id=%d, error=%v", d.id, err)
			}
		}
	}
}

// onMessage handles the inner framing: acks clear the sent table, data
// frames are acked back to the sender and handed upward.
func (c *ackedConn) onMessage(sender, message []byte) {
	if len(message) < 3 {
		log.Printf("message too short to be something: len=%d", len(message))
		return
	}
	id := binary.BigEndian.Uint16(message[1:3])
	switch message[0] {
	case kindAck:
		c.mu.Lock()
		_, ok := c.sent[id]
		if ok {
			delete(c.sent, id)
			stat.PendingAcks.Set(float64(len(c.sent)))
		}
		c.mu.Unlock()
		if ok {
			stat.AcksReceived.Inc()
			log.Printf("message delivered: id=%d", id)
		}
	case kindData:
		ack := []byte{kindAck, message[1], message[2]}
		if err := c.conn.Publish(ackTopic, string(sender), ack); err != nil {
			log.Printf("ack publish failed: id=%d, error=%v", id, err)
		}
		if c.callback != nil {
			c.callback(sender, message[3:])
		}
	default:
		log.Printf("unknown message kind: kind=0x%02X, id=%d", message[0], id)
	}
}

func (c *ackedConn) Disconnect() {
	c.cancel()
	<-c.done
	c.conn.Disconnect()
}

func frameData(id uint16, message []byte) []byte {
	out := make([]byte, 3, 3+len(message))
	out[0] = kindData
	binary.BigEndian.PutUint16(out[1:3], id)
	return append(out, message...)
}
