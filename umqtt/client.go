package umqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

// Client is a minimal MQTT 3.1.1 client. One connection, clean session,
// QoS 0 in both directions. Clients are safe for use by one publisher
// goroutine plus the internal receive loop.
type Client struct {
	Server    string // host:port
	ClientID  string
	Username  string
	Password  string
	KeepAlive time.Duration

	conn     net.Conn
	recv     [0xF + 1]chan Packet
	packetID uint16

	onMessage func(topic string, payload []byte)
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewClient prepares a client for server (host:port). Connect establishes
// the session.
func NewClient(server, clientID, username, password string) *Client {
	c := &Client{
		Server:    server,
		ClientID:  clientID,
		Username:  username,
		Password:  password,
		KeepAlive: 60 * time.Second,
	}
	for i := 1; i <= 0xF; i++ {
		c.recv[i] = make(chan Packet, 1)
	}
	c.recv[PUBLISH] = make(chan Packet, 128)
	return c
}

// OnMessage installs the handler invoked for every inbound PUBLISH.
func (c *Client) OnMessage(fn func(topic string, payload []byte)) {
	c.onMessage = fn
}

// Connect dials the server, performs the CONNECT/CONNACK exchange and starts
// the receive, dispatch and keepalive loops.
func (c *Client) Connect(ctx context.Context) error {
	log.Printf("umqtt client attempting to dial: client_id=%s, server=%s", c.ClientID, c.Server)
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", c.Server)
	if err != nil {
		return err
	}
	c.conn = conn

	connect := &ConnectPacket{
		FixedHeader: &FixedHeader{Kind: CONNECT},
		ClientID:    c.ClientID,
		Username:    c.Username,
		Password:    c.Password,
		KeepAlive:   uint16(c.KeepAlive / time.Second),
	}
	if err := connect.Pack(c.conn); err != nil {
		return err
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return c.unpack(ctx) })
	group.Go(func() error { return c.serveMessageLoop(ctx) })
	group.Go(func() error { return c.keepaliveLoop(ctx) })
	group.Go(func() error {
		<-ctx.Done()
		return c.conn.Close()
	})
	go func() {
		defer close(c.done)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, net.ErrClosed) {
			log.Printf("umqtt client loops exited: client_id=%s, error=%v", c.ClientID, err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case pkt, ok := <-c.recv[CONNACK]:
		if !ok {
			return ErrInvalidPacket
		}
		connack, ok := pkt.(*ConnackPacket)
		if !ok {
			return ErrInvalidPacket
		}
		if connack.ReturnCode != 0 {
			return fmt.Errorf("umqtt: connect refused, return code %d", connack.ReturnCode)
		}
	}
	log.Printf("umqtt client connected: client_id=%s, server=%s", c.ClientID, c.Server)
	return nil
}

func (c *Client) unpack(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		pkt, err := Unpack(c.conn)
		if err != nil {
			if errors.Is(err, ErrUnsupportedPacket) {
				log.Printf("umqtt client dropping packet: client_id=%s, error=%v", c.ClientID, err)
				continue
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.recv[pkt.Kind()] <- pkt:
		}
	}
}

func (c *Client) serveMessageLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-c.recv[PUBLISH]:
			if !ok {
				return ErrInvalidPacket
			}
			pub, ok := pkt.(*PublishPacket)
			if !ok {
				return ErrInvalidPacket
			}
			if c.onMessage != nil {
				c.onMessage(pub.TopicName, pub.Payload)
			}
		case <-c.recv[PINGRESP]:
		}
	}
}

func (c *Client) keepaliveLoop(ctx context.Context) error {
	if c.KeepAlive <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(c.KeepAlive / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ping := &PingreqPacket{FixedHeader: &FixedHeader{Kind: PINGREQ}}
			if err := ping.Pack(c.conn); err != nil {
				return err
			}
		}
	}
}

// Subscribe requests topic at QoS 0 and waits for the SUBACK.
func (c *Client) Subscribe(ctx context.Context, topic string) error {
	c.packetID++
	sub := &SubscribePacket{
		FixedHeader: &FixedHeader{Kind: SUBSCRIBE, QoS: 1},
		PacketID:    c.packetID,
		TopicFilter: topic,
	}
	if err := sub.Pack(c.conn); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case pkt, ok := <-c.recv[SUBACK]:
		if !ok {
			return ErrInvalidPacket
		}
		suback, ok := pkt.(*SubackPacket)
		if !ok {
			return ErrInvalidPacket
		}
		for _, code := range suback.ReturnCodes {
			if code == 0x80 {
				return fmt.Errorf("umqtt: subscription rejected: topic=%s", topic)
			}
		}
	}
	log.Printf("umqtt client subscribed: client_id=%s, topic=%s", c.ClientID, topic)
	return nil
}

// Unsubscribe cancels topic without waiting for the UNSUBACK.
func (c *Client) Unsubscribe(topic string) error {
	c.packetID++
	unsub := &UnsubscribePacket{
		FixedHeader: &FixedHeader{Kind: UNSUBSCRIBE, QoS: 1},
		PacketID:    c.packetID,
		TopicFilter: topic,
	}
	return unsub.Pack(c.conn)
}

// Publish sends payload to topic at QoS 0.
func (c *Client) Publish(topic string, payload []byte) error {
	if c.conn == nil {
		return errors.New("umqtt: not connected")
	}
	pub := &PublishPacket{
		FixedHeader: &FixedHeader{Kind: PUBLISH},
		TopicName:   topic,
		Payload:     payload,
	}
	return pub.Pack(c.conn)
}

// Disconnect sends DISCONNECT and tears the connection down.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	disconnect := &DisconnectPacket{FixedHeader: &FixedHeader{Kind: DISCONNECT}}
	err := disconnect.Pack(c.conn)
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	return err
}
