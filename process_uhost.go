package utim

import (
	"log"

	"github.com/connax-utim/utim/packet"
)

// uhostProcessor handles Uhost-originated items: strip the secured envelope
// on the way in, dispatch by command tag, and re-apply the envelope on
// anything still flowing back out to Uhost.
type uhostProcessor struct {
	utim *Utim
}

func (p *uhostProcessor) process(item Item) Item {
	res := item

	if res.Source == AddressUhost && res.Status == StatusProcess {
		res = utimWorkerUnsign(p.utim, res)
	}
	if res.Source == AddressUhost && res.Status == StatusProcess {
		res = utimWorkerDecrypt(p.utim, res)
	}

	for !res.terminal() && res.Source == AddressUhost {
		if len(res.Body) == 0 {
			res.Status = StatusFinalized
			break
		}
		switch res.Body[0] {
		case packet.UCommandTryFirst:
			res = utimWorkerTry(p.utim, res)
		case packet.UCommandInit:
			res = utimWorkerInit(p.utim, res)
		case packet.UCommandConnectionString:
			res = utimWorkerConnectionString(p.utim, res)
		case packet.UCommandTestPlatformData:
			res = utimWorkerPlatformVerify(p.utim, res)
		case packet.UCommandAuthentic:
			res = utimWorkerAuthentic(p.utim, res)
		case packet.UCommandError:
			res = utimWorkerError(p.utim, res)
		case packet.UCommandKeepalive:
			res = utimWorkerKeepalive(p.utim, res)
		default:
			log.Printf("unknown ucommand tag: tag=0x%02X", res.Body[0])
			res.Status = StatusFinalized
		}
	}

	// Egress to Uhost: encrypt, then sign. The sign worker flips the item
	// to TO_SEND.
	if res.Destination == AddressUhost && res.Status == StatusProcess {
		res = utimWorkerEncrypt(p.utim, res)
		if res.Status == StatusProcess {
			res = utimWorkerSign(p.utim, res)
		}
	}
	return res
}
