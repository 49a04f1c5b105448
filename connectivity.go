package utim

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/connax-utim/utim/packet"
)

// pollInterval is the idle sleep of every queue-polling loop.
const pollInterval = time.Millisecond

// DataType is the wire-level routing classifier carried in the TLV
// envelopes between the Device and the utim.
type DataType byte

const (
	DataTypeDevice   DataType = 0
	DataTypeUhost    DataType = 1
	DataTypePlatform DataType = 2
)

func (t DataType) Valid() bool {
	switch t {
	case DataTypeDevice, DataTypeUhost, DataTypePlatform:
		return true
	}
	return false
}

// ConnStatus reports the outcome of a connection bring-up.
type ConnStatus int

const (
	StatusNotInitialized     ConnStatus = -1
	StatusSuccess            ConnStatus = 0
	StatusInvalidConfig      ConnStatus = 1
	StatusInvalidHost        ConnStatus = 2
	StatusInvalidCredentials ConnStatus = 3
	StatusUnknownPlatform    ConnStatus = 4

	StatusAzureError              ConnStatus = 10
	StatusAzureUnknownAuthMethod  ConnStatus = 11
	StatusAzureNoConnectionString ConnStatus = 12

	StatusAWSError              ConnStatus = 20
	StatusAWSUnknownAuthMethod  ConnStatus = 21
	StatusAWSNoConnectionString ConnStatus = 22

	StatusUhostError           ConnStatus = 30
	StatusUhostConnectionError ConnStatus = 31

	StatusDeviceError ConnStatus = 90
)

// RoutedItem pairs a wire data type with a message body.
type RoutedItem struct {
	Type DataType
	Body []byte
}

// UhostConnectionConfig selects how RunUhostConnection reaches the broker.
type UhostConnectionConfig struct {
	Topic    string
	Name     string
	Protocol string
	ClientID string
}

// ConnectivityManager owns the datalink pipeline and the Uhost connection.
// Inbound traffic from both is multiplexed into one queue read by Receive;
// Send demultiplexes by data type.
type ConnectivityManager struct {
	config *Config

	tx *Queue[[]byte] // datalink, towards the Device
	rx *Queue[[]byte] // datalink, from the Device

	inbound  *Queue[RoutedItem]
	outbound *Queue[RoutedItem]

	// mu guards the Uhost connection fields: bring-up runs concurrently
	// with the loops.
	mu          sync.RWMutex
	uhost       *UtimConnection
	uhostStatus ConnStatus

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewConnectivityManager wires the datalink queues and starts the inbound
// and outbound loops. The Uhost side stays down until RunUhostConnection.
func NewConnectivityManager(config *Config, tx, rx *Queue[[]byte]) (*ConnectivityManager, error) {
	if tx == nil || rx == nil {
		return nil, ErrDataLinkWrongArgs
	}
	m := &ConnectivityManager{
		config:      config,
		tx:          tx,
		rx:          rx,
		inbound:     NewQueue[RoutedItem](),
		outbound:    NewQueue[RoutedItem](),
		uhostStatus: StatusNotInitialized,
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); m.inboundLoop(ctx) }()
		go func() { defer wg.Done(); m.outboundLoop(ctx) }()
		wg.Wait()
	}()
	return m, nil
}

// inboundLoop fans datalink and Uhost traffic into the inbound queue.
func (m *ConnectivityManager) inboundLoop(ctx context.Context) {
	log.Printf("process_inbound starting..")
	for ctx.Err() == nil {
		idle := true

		if body, ok := m.inboundDatalink(); ok {
			m.putInbound(ctx, RoutedItem{Type: DataTypeDevice, Body: body})
			idle = false
		}

		if uhost, status := m.uhostState(); uhost != nil && status == StatusSuccess {
			if message := uhost.Receive(); message != nil {
				m.putInbound(ctx, RoutedItem{Type: DataTypeUhost, Body: message})
				idle = false
			}
		}

		if idle {
			time.Sleep(pollInterval)
		}
	}
}

// inboundDatalink pulls one frame off the datalink and strips the network
// and transport envelopes. Anything malformed is logged and dropped.
func (m *ConnectivityManager) inboundDatalink() ([]byte, bool) {
	frame, err := m.rx.TryGet()
	if err != nil {
		return nil, false
	}
	stat.FramesReceived.Inc()

	// Network level: only DEVICE-tagged frames continue upward.
	network, _, err := packet.Parse(frame)
	if err != nil {
		log.Printf("invalid datalink frame: len=%d, error=%v", len(frame), err)
		return nil, false
	}
	if DataType(network.Tag) != DataTypeDevice {
		log.Printf("unknown network data type: tag=0x%02X", network.Tag)
		return nil, false
	}

	// Transport level: any valid data type passes.
	transport, _, err := packet.Parse(network.Value)
	if err != nil {
		log.Printf("invalid transport frame: len=%d, error=%v", len(network.Value), err)
		return nil, false
	}
	if !DataType(transport.Tag).Valid() {
		log.Printf("unknown transport data type: tag=0x%02X", transport.Tag)
		return nil, false
	}
	return transport.Value, true
}

func (m *ConnectivityManager) putInbound(ctx context.Context, item RoutedItem) {
	for ctx.Err() == nil {
		if m.inbound.TryPut(item) == nil {
			return
		}
		time.Sleep(pollInterval)
	}
}

// outboundLoop demultiplexes by destination data type.
func (m *ConnectivityManager) outboundLoop(ctx context.Context) {
	log.Printf("process_outbound starting..")
	for ctx.Err() == nil {
		item, err := m.outbound.TryGet()
		if err != nil {
			time.Sleep(pollInterval)
			continue
		}
		switch item.Type {
		case DataTypeDevice:
			m.outboundDatalink(ctx, item.Body)
		case DataTypeUhost:
			uhost, status := m.uhostState()
			if uhost == nil || status != StatusSuccess {
				log.Printf("manager has no active uhost connection")
				continue
			}
			for ctx.Err() == nil && !uhost.Send(item.Body) {
				time.Sleep(pollInterval)
			}
		case DataTypePlatform:
			// Extension point: platform connections are terminated
			// elsewhere.
			log.Printf("manager has no active platform connection")
		default:
			log.Printf("unknown outbound data type: type=%d", item.Type)
		}
	}
	log.Printf("stopping outbound processing..")
}

// outboundDatalink wraps data in the transport and network envelopes and
// pushes the frame to the datalink.
func (m *ConnectivityManager) outboundDatalink(ctx context.Context, data []byte) {
	transport := packet.Assemble(byte(DataTypeDevice), data)
	if transport == nil {
		log.Printf("transport assembly failed: len=%d", len(data))
		return
	}
	frame := packet.Assemble(byte(DataTypeDevice), transport)
	if frame == nil {
		log.Printf("network assembly failed: len=%d", len(transport))
		return
	}
	for ctx.Err() == nil {
		if m.tx.TryPut(frame) == nil {
			stat.FramesSent.Inc()
			return
		}
		time.Sleep(pollInterval)
	}
}

// Send queues data for delivery by destination type. It reports false when
// the outbound queue is full.
func (m *ConnectivityManager) Send(item RoutedItem) (bool, error) {
	if !item.Type.Valid() {
		return false, ErrManagerDataType
	}
	return m.outbound.TryPut(item) == nil, nil
}

// Receive returns the next multiplexed inbound item, or false when there is
// none.
func (m *ConnectivityManager) Receive() (RoutedItem, bool) {
	item, err := m.inbound.TryGet()
	return item, err == nil
}

func (m *ConnectivityManager) uhostState() (*UtimConnection, ConnStatus) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uhost, m.uhostStatus
}

func (m *ConnectivityManager) setUhostState(uhost *UtimConnection, status ConnStatus) ConnStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uhost, m.uhostStatus = uhost, status
	return status
}

// RunUhostConnection brings the Uhost link up and reports the resulting
// status.
func (m *ConnectivityManager) RunUhostConnection(config UhostConnectionConfig) ConnStatus {
	if config.Topic == "" || config.Name == "" || config.Protocol == "" {
		log.Printf("invalid uhost connection config: %+v", config)
		return m.setUhostState(nil, StatusInvalidConfig)
	}

	uhost, err := NewUtimConnection(m.config, config.Topic, config.Name, config.Protocol, config.ClientID)
	if err != nil {
		log.Printf("uhost connection setup failed: error=%v", err)
		return m.setUhostState(nil, StatusInvalidConfig)
	}
	if err := uhost.Connect(m.config); err != nil {
		log.Printf("uhost connect failed: error=%v", err)
		return m.setUhostState(nil, uhostStatusFor(err))
	}
	if err := uhost.Run(); err != nil {
		log.Printf("uhost run failed: error=%v", err)
		uhost.Stop()
		return m.setUhostState(nil, StatusUhostError)
	}

	return m.setUhostState(uhost, StatusSuccess)
}

func uhostStatusFor(err error) ConnStatus {
	switch {
	case errors.Is(err, ErrConnectivityConfig):
		return StatusInvalidConfig
	case errors.Is(err, ErrConnectivityHost):
		return StatusInvalidHost
	case errors.Is(err, ErrConnectivityCredentials):
		return StatusInvalidCredentials
	case errors.Is(err, ErrUhostConnection):
		return StatusUhostConnectionError
	}
	return StatusUhostError
}

// Stop halts the loops and the Uhost connection. It is idempotent.
func (m *ConnectivityManager) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		<-m.done
		if uhost, _ := m.uhostState(); uhost != nil {
			uhost.Stop()
		}
	})
}
