// Package utim implements the device-side trusted identity agent: it
// establishes a mutually authenticated session with the Uhost control plane
// over MQTT using SRP-6a, derives a per-session symmetric key, terminates
// the signed and encrypted Uhost channel and routes tagged messages among
// the Device, Uhost and Platform endpoints.
package utim

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/connax-utim/utim/crypto"
)

// SRP progress of the running session.
const (
	srpStepNone       = 0
	srpStepStarted    = 1 // hello sent
	srpStepChallenged = 2 // challenge answered
)

// Utim owns all the stateful pieces of the agent: configuration, the SRP
// client and step, the session key, the queues, the connectivity manager and
// the processor. SRP fields and the session key are only touched from the
// processor goroutine.
type Utim struct {
	config    *Config
	options   Options
	utimName  string // hex string, uppercased
	masterKey []byte

	srpClient  *crypto.SRPClient
	srpStep    int
	sessionKey []byte

	platformConfig map[string]string

	inbound  *Queue[Envelope]
	outbound *Queue[Envelope]

	connection  *ConnectivityManager
	uhostStatus ConnStatus
	processor   *Processor

	cancel     context.CancelFunc
	done       chan struct{}
	procCancel context.CancelFunc
	stopOnce   sync.Once
}

// New builds the agent on top of the datalink queue pair and brings the
// Uhost connection up. A failed bring-up is fatal: the constructor stops
// everything it started and returns the connection error.
func New(tx, rx *Queue[[]byte], opts ...Option) (*Utim, error) {
	options := newOptions(opts...)
	config := options.Config

	masterKey, err := hex.DecodeString(config.MasterKey)
	if err != nil || len(masterKey) == 0 {
		return nil, fmt.Errorf("%w: master_key=%q", ErrConnectivityConfig, config.MasterKey)
	}

	u := &Utim{
		config:    config,
		options:   options,
		utimName:  config.Topic(),
		masterKey: masterKey,
		srpStep:   srpStepNone,
		inbound:   NewQueue[Envelope](),
		outbound:  NewQueue[Envelope](),
	}

	if err := u.connect(tx, rx); err != nil {
		return nil, err
	}

	if u.processor, err = NewProcessor(u, u.inbound, u.outbound); err != nil {
		u.Stop()
		return nil, err
	}
	return u, nil
}

// connect wires the connectivity manager, runs the Uhost connection and
// starts the façade pumps.
func (u *Utim) connect(tx, rx *Queue[[]byte]) error {
	connection, err := NewConnectivityManager(u.config, tx, rx)
	if err != nil {
		return err
	}
	u.connection = connection

	u.uhostStatus = connection.RunUhostConnection(UhostConnectionConfig{
		Topic:    u.utimName,
		Name:     u.utimName,
		Protocol: u.config.Protocol,
		ClientID: u.options.ClientID,
	})
	log.Printf("uhost connection status: %d", u.uhostStatus)
	if u.uhostStatus != StatusSuccess {
		connection.Stop()
		return fmt.Errorf("%w: protocol=%s, status=%d", ErrUhostConnection, u.config.Protocol, u.uhostStatus)
	}
	log.Printf("uhost connection ok")

	ctx, cancel := context.WithCancel(context.Background())
	u.cancel = cancel
	u.done = make(chan struct{})
	go func() {
		defer close(u.done)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); u.inboundProcess(ctx) }()
		go func() { defer wg.Done(); u.outboundProcess(ctx) }()
		wg.Wait()
	}()
	return nil
}

// inboundProcess converts wire data types to addresses and feeds the
// processor queue.
func (u *Utim) inboundProcess(ctx context.Context) {
	for ctx.Err() == nil {
		item, ok := u.connection.Receive()
		if !ok {
			time.Sleep(pollInterval)
			continue
		}
		var addr Address
		switch item.Type {
		case DataTypeDevice:
			addr = AddressDevice
		case DataTypeUhost:
			addr = AddressUhost
		case DataTypePlatform:
			addr = AddressPlatform
		default:
			log.Printf("unknown inbound tag: tag=%d", item.Type)
			continue
		}
		for ctx.Err() == nil {
			if u.inbound.TryPut(Envelope{Addr: addr, Body: item.Body}) == nil {
				break
			}
			time.Sleep(pollInterval)
		}
	}
}

// outboundProcess converts addresses back to wire data types and hands the
// processor output to connectivity.
func (u *Utim) outboundProcess(ctx context.Context) {
	for ctx.Err() == nil {
		env, err := u.outbound.TryGet()
		if err != nil {
			time.Sleep(pollInterval)
			continue
		}
		var dataType DataType
		switch env.Addr {
		case AddressDevice:
			dataType = DataTypeDevice
		case AddressUhost:
			dataType = DataTypeUhost
		case AddressPlatform:
			dataType = DataTypePlatform
		default:
			log.Printf("unknown outbound tag: addr=%s", env.Addr)
			continue
		}
		if ok, err := u.connection.Send(RoutedItem{Type: dataType, Body: env.Body}); err != nil || !ok {
			log.Printf("connectivity send dropped: type=%d, ok=%t, error=%v", dataType, ok, err)
		}
	}
}

// SRPClient returns the SRP client, constructing it on first use from the
// utim name and the master key.
func (u *Utim) SRPClient() *crypto.SRPClient {
	if u.srpClient == nil {
		username, err := hex.DecodeString(u.utimName)
		if err != nil {
			log.Printf("invalid utim name: name=%s, error=%v", u.utimName, err)
			return nil
		}
		log.Printf("creating new srp user")
		u.srpClient = crypto.NewSRPClient(username, u.masterKey)
	}
	return u.srpClient
}

func (u *Utim) SRPStep() int        { return u.srpStep }
func (u *Utim) setSRPStep(step int) { u.srpStep = step }

// SessionKey returns the established session key, or nil before SRP
// completes.
func (u *Utim) SessionKey() []byte       { return u.sessionKey }
func (u *Utim) setSessionKey(key []byte) { u.sessionKey = key }

// PlatformConfig returns the platform configuration delivered by Uhost.
func (u *Utim) PlatformConfig() map[string]string { return u.platformConfig }

func (u *Utim) setPlatformConfig(config map[string]string) {
	u.platformConfig = config
}

// Run starts the processor.
func (u *Utim) Run(ctx context.Context) {
	log.Printf("running utim")
	ctx, u.procCancel = context.WithCancel(ctx)
	go u.processor.Run(ctx)
}

// Stop cooperatively halts the processor, the façade pumps and the
// connectivity manager. It is idempotent.
func (u *Utim) Stop() {
	u.stopOnce.Do(func() {
		if u.procCancel != nil {
			u.procCancel()
		}
		if u.cancel != nil {
			u.cancel()
			<-u.done
		}
		if u.connection != nil {
			u.connection.Stop()
		}
		log.Printf("utim was stopped")
	})
}

// Die kills the agent on Uhost command.
func (u *Utim) Die() {
	go u.Stop()
}
