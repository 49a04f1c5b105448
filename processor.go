package utim

import (
	"context"
	"log"
	"time"
)

// Address is the logical routing identity of a message inside the
// processor.
type Address byte

const (
	AddressDevice Address = iota
	AddressUtim
	AddressUhost
	AddressPlatform
)

var addressName = map[Address]string{
	AddressDevice:   "DEVICE",
	AddressUtim:     "UTIM",
	AddressUhost:    "UHOST",
	AddressPlatform: "PLATFORM",
}

func (a Address) String() string {
	if name, ok := addressName[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// Status is the lifecycle token of a routed item.
type Status int

const (
	StatusProcess   Status = iota // still flowing through workers
	StatusToSend                  // route to destination and stop
	StatusFinalized               // drop, terminal
)

// Item is one message moving through the subprocessor state machine.
type Item struct {
	Source      Address
	Destination Address
	Status      Status
	Body        []byte
}

func (i Item) terminal() bool {
	return i.Status == StatusToSend || i.Status == StatusFinalized
}

// Envelope pairs an address with a message body on the façade queues.
type Envelope struct {
	Addr Address
	Body []byte
}

// subprocessor handles all items for one address.
type subprocessor interface {
	process(Item) Item
}

// Processor pulls one envelope at a time and runs it through the
// subprocessors until the item is terminal. All worker transitions happen on
// this single goroutine, so the context state they touch needs no locking.
type Processor struct {
	utim *Utim

	inbound  *Queue[Envelope]
	outbound *Queue[Envelope]

	device   subprocessor
	uhost    subprocessor
	platform subprocessor
}

// NewProcessor wires the subprocessors around the shared context.
func NewProcessor(utim *Utim, inbound, outbound *Queue[Envelope]) (*Processor, error) {
	if inbound == nil || outbound == nil {
		return nil, ErrProcessItemInput
	}
	p := &Processor{
		utim:     utim,
		inbound:  inbound,
		outbound: outbound,
		device:   &deviceProcessor{utim: utim},
		uhost:    &uhostProcessor{utim: utim},
		platform: &platformProcessor{},
	}
	log.Printf("processor is initialized")
	return p, nil
}

// Run drains the inbound queue until the context is cancelled.
func (p *Processor) Run(ctx context.Context) {
	for ctx.Err() == nil {
		env, err := p.inbound.TryGet()
		if err != nil {
			time.Sleep(pollInterval)
			continue
		}
		if result, ok := p.process(env); ok {
			for ctx.Err() == nil {
				if p.outbound.TryPut(result) == nil {
					break
				}
				time.Sleep(pollInterval)
			}
		}
	}
	log.Printf("stopping processing..")
}

// process runs one envelope to a terminal status. Dispatch starts at the
// item source; after each worker pass the active address follows the
// outbound (source UTIM) or still-ingesting (destination UTIM) direction.
// Any other shape is a processing error and finalizes the item.
func (p *Processor) process(env Envelope) (Envelope, bool) {
	item := Item{
		Source:      env.Addr,
		Destination: AddressUtim,
		Status:      StatusProcess,
		Body:        env.Body,
	}
	stat.ItemsProcessed.Inc()

	address := env.Addr
	for !item.terminal() {
		switch address {
		case AddressDevice:
			item = p.device.process(item)
		case AddressUhost:
			item = p.uhost.process(item)
		case AddressPlatform:
			item = p.platform.process(item)
		default:
			log.Printf("unknown dispatch address: address=%d", address)
			item = p.errorHandler(item)
			continue
		}

		switch {
		case item.Source == AddressUtim && item.Destination != AddressUtim:
			address = item.Destination
		case item.Source != AddressUtim && item.Destination == AddressUtim:
			address = item.Source
		default:
			item = p.errorHandler(item)
		}
	}
	return p.returnItem(item)
}

// returnItem emits terminal items that still have somewhere to go.
func (p *Processor) returnItem(item Item) (Envelope, bool) {
	if item.Destination != AddressUtim && item.Status != StatusFinalized {
		return Envelope{Addr: item.Destination, Body: item.Body}, true
	}
	return Envelope{}, false
}

func (p *Processor) errorHandler(item Item) Item {
	log.Printf("item processing error: source=%s, destination=%s, status=%d", item.Source, item.Destination, item.Status)
	item.Status = StatusFinalized
	return item
}
