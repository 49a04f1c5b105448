package utim

import (
	"crypto/rand"
	"log"

	"github.com/connax-utim/utim/packet"
)

// utimWorkerTry answers the Uhost TRY challenge: parse the salt and the
// server public value B, compute the SRP proof M and send it back as the
// check command.
func utimWorkerTry(u *Utim, item Item) Item {
	var answer []byte

	first, n, err := packet.Parse(item.Body)
	if err == nil {
		second, _, err2 := packet.Parse(item.Body[n:])
		err = err2
		if err2 == nil && first.Tag == packet.UCommandTryFirst && second.Tag == packet.UCommandTrySecond {
			client := u.SRPClient()
			if client == nil {
				log.Printf("srp client is nil")
				item.Status = StatusFinalized
				return item
			}
			m := client.ProcessChallenge(first.Value, second.Value)
			if m == nil {
				log.Printf("error try processing")
				answer = packet.AssembleError([]byte("try processing"))
			} else {
				u.setSRPStep(srpStepChallenged)
				answer = packet.AssembleCheck(m)
			}
		}
	}
	if answer == nil {
		log.Printf("error try wrong_parameters: error=%v", err)
		answer = packet.AssembleForNetwork(packet.AssembleError([]byte("try wrong_parameters")))
	}

	return Item{
		Source:      AddressUtim,
		Destination: AddressUhost,
		Status:      StatusProcess,
		Body:        answer,
	}
}

// utimWorkerInit verifies the Uhost session proof and, on success, fixes the
// session key and confirms with fresh random data.
func utimWorkerInit(u *Utim, item Item) Item {
	if item.Source == AddressUhost && item.Destination == AddressUtim && item.Status == StatusProcess {
		tlv, _, err := packet.Parse(item.Body)
		if err == nil && tlv.Tag == packet.UCommandInit {
			if u.SRPStep() == srpStepChallenged {
				if client := u.SRPClient(); client != nil {
					if err := client.VerifySession(tlv.Value); err != nil {
						log.Printf("srp verify failed: error=%v", err)
					}
					u.setSessionKey(client.SessionKey())

					var command []byte
					if key := u.SessionKey(); key != nil {
						random := make([]byte, 32)
						if _, err := rand.Read(random); err != nil {
							log.Printf("random generation failed: error=%v", err)
							command = packet.AssembleError([]byte("init processing"))
						} else {
							command = packet.AssembleTrusted(random)
							log.Printf("srp completed")
						}
					} else {
						log.Printf("error init processing")
						command = packet.AssembleError([]byte("init processing"))
					}

					return Item{
						Source:      AddressUtim,
						Destination: AddressUhost,
						Status:      StatusProcess,
						Body:        command,
					}
				}
				log.Printf("srp client is nil")
			} else {
				log.Printf("invalid srp step: step=%d", u.SRPStep())
			}
		} else {
			log.Printf("invalid tag: error=%v", err)
		}
	} else {
		log.Printf("invalid metadata: source=%s, destination=%s, status=%d", item.Source, item.Destination, item.Status)
	}

	item.Status = StatusFinalized
	return item
}

// utimWorkerAuthentic completes the protocol: the session key travels to
// the Device.
func utimWorkerAuthentic(u *Utim, item Item) Item {
	log.Printf("utim is authentic now")
	return Item{
		Source:      AddressUtim,
		Destination: AddressDevice,
		Status:      StatusToSend,
		Body:        u.SessionKey(),
	}
}

// utimWorkerConnectionString unwraps the platform connection string and
// loops the inner payload back for further dispatch.
func utimWorkerConnectionString(u *Utim, item Item) Item {
	if item.Source == AddressUhost && item.Destination == AddressUtim && item.Status == StatusProcess {
		outer, _, err := packet.Parse(item.Body)
		if err == nil && outer.Tag == packet.UCommandConnectionString {
			inner, _, err := packet.Parse(outer.Value)
			if err == nil && (inner.Tag == packet.PlatformAzure || inner.Tag == packet.PlatformAWS) {
				platform := "azure"
				if inner.Tag == packet.PlatformAWS {
					platform = "aws"
				}
				u.setPlatformConfig(map[string]string{"platform": platform})
				log.Printf("connecting to cloud...")
				return Item{
					Source:      AddressUhost,
					Destination: AddressUtim,
					Status:      StatusProcess,
					Body:        inner.Value,
				}
			}
			log.Printf("invalid platform tag: error=%v", err)
		} else {
			log.Printf("invalid connection string tag: error=%v", err)
		}
	} else {
		log.Printf("invalid metadata: source=%s, destination=%s, status=%d", item.Source, item.Destination, item.Status)
	}

	item.Status = StatusFinalized
	return item
}

// utimWorkerPlatformVerify routes a platform test command to the platform
// path for verification.
func utimWorkerPlatformVerify(u *Utim, item Item) Item {
	if item.Source == AddressUhost && item.Destination == AddressUtim && item.Status == StatusProcess {
		tlv, _, err := packet.Parse(item.Body)
		if err == nil && tlv.Tag == packet.UCommandTestPlatformData {
			log.Printf("send test data via platform: len=%d", len(tlv.Value))
			return Item{
				Source:      AddressUtim,
				Destination: AddressPlatform,
				Status:      StatusToSend,
				Body:        packet.AssembleVerify(tlv.Value),
			}
		}
		log.Printf("invalid tag: error=%v", err)
	} else {
		log.Printf("invalid metadata: source=%s, destination=%s, status=%d", item.Source, item.Destination, item.Status)
	}

	item.Status = StatusFinalized
	return item
}

// utimWorkerKeepalive answers a keepalive probe.
func utimWorkerKeepalive(u *Utim, item Item) Item {
	log.Printf("got keepalive")
	return Item{
		Source:      AddressUtim,
		Destination: AddressUhost,
		Status:      StatusProcess,
		Body:        packet.KeepaliveAnswer(),
	}
}

// utimWorkerError finalizes an Uhost error report.
func utimWorkerError(u *Utim, item Item) Item {
	log.Printf("uhost reported error: body=%x", item.Body)
	item.Status = StatusFinalized
	return item
}

// utimWorkerDie tears the utim down on command.
func utimWorkerDie(u *Utim, item Item) Item {
	log.Printf("die command received")
	u.Die()
	item.Status = StatusFinalized
	return item
}
