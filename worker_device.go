package utim

import (
	"log"

	"github.com/connax-utim/utim/packet"
)

// deviceWorkerStartup handles NETWORK_READY: open the SRP sequence by
// sending the hello with the client public value A.
func deviceWorkerStartup(u *Utim, item Item) Item {
	if item.Source == AddressDevice && item.Destination == AddressUtim && item.Status == StatusProcess {
		if item.Body[0] == packet.InboundNetworkReady {
			if step := u.SRPStep(); step == srpStepNone {
				if client := u.SRPClient(); client != nil {
					_, a := client.StartAuthentication()
					command := packet.AssembleHello(a)
					u.setSRPStep(srpStepStarted)
					log.Printf("starting srp sequence...")
					return Item{
						Source:      AddressUtim,
						Destination: AddressUhost,
						Status:      StatusProcess,
						Body:        command,
					}
				}
				log.Printf("srp client is nil")
			} else {
				log.Printf("invalid srp step: step=%d", step)
			}
		} else {
			log.Printf("invalid tag: tag=0x%02X", item.Body[0])
		}
	} else {
		log.Printf("invalid metadata: source=%s, destination=%s, status=%d", item.Source, item.Destination, item.Status)
	}

	item.Status = StatusFinalized
	return item
}

// deviceWorkerForward hands DATA_TO_PLATFORM payloads to the platform path.
func deviceWorkerForward(u *Utim, item Item) Item {
	if item.Source == AddressDevice && item.Destination == AddressUtim && item.Status == StatusProcess {
		tlv, _, err := packet.Parse(item.Body)
		if err == nil && tlv.Tag == packet.InboundDataToPlatform {
			return Item{
				Source:      AddressUtim,
				Destination: AddressPlatform,
				Status:      StatusToSend,
				Body:        tlv.Value,
			}
		}
		log.Printf("invalid platform data: error=%v", err)
	} else {
		log.Printf("invalid metadata: source=%s, destination=%s, status=%d", item.Source, item.Destination, item.Status)
	}

	item.Status = StatusFinalized
	return item
}
