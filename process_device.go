package utim

import (
	"log"

	"github.com/connax-utim/utim/packet"
)

// deviceProcessor dispatches Device-originated items by the leading command
// tag.
type deviceProcessor struct {
	utim *Utim
}

func (p *deviceProcessor) process(item Item) Item {
	log.Printf("starting device processing")
	res := item

	for !res.terminal() && res.Source == AddressDevice {
		if len(res.Body) == 0 {
			res.Status = StatusFinalized
			break
		}
		switch res.Body[0] {
		case packet.InboundDataToPlatform:
			res = deviceWorkerForward(p.utim, res)
		case packet.InboundNetworkReady:
			res = deviceWorkerStartup(p.utim, res)
		default:
			res.Status = StatusFinalized
		}
	}
	return res
}
