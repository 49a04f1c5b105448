package utim

import (
	"log"

	"github.com/connax-utim/utim/crypto"
)

// utimWorkerEncrypt wraps an outbound body in the encrypted envelope.
func utimWorkerEncrypt(u *Utim, item Item) Item {
	layer := crypto.NewLayer(u.SessionKey())
	body, err := layer.Encrypt(crypto.CryptoModeAES, item.Body)
	if err != nil {
		log.Printf("encrypt failed: error=%v", err)
		return Item{Source: AddressUtim, Destination: AddressUhost, Status: StatusFinalized}
	}
	return Item{Source: AddressUtim, Destination: AddressUhost, Status: StatusProcess, Body: body}
}

// utimWorkerSign signs an outbound body and marks it ready to send.
func utimWorkerSign(u *Utim, item Item) Item {
	layer := crypto.NewLayer(u.SessionKey())
	body, err := layer.Sign(crypto.SignModeSHA256, item.Body)
	if err != nil {
		log.Printf("sign failed: error=%v", err)
		return Item{Source: AddressUtim, Destination: AddressUhost, Status: StatusFinalized}
	}
	return Item{Source: AddressUtim, Destination: AddressUhost, Status: StatusToSend, Body: body}
}

// utimWorkerUnsign verifies the signature envelope of an inbound body.
func utimWorkerUnsign(u *Utim, item Item) Item {
	layer := crypto.NewLayer(u.SessionKey())
	body, err := layer.Unsign(item.Body)
	if err != nil {
		log.Printf("unsign failed: error=%v", err)
		return Item{Source: AddressUhost, Destination: AddressUtim, Status: StatusFinalized}
	}
	return Item{Source: AddressUhost, Destination: AddressUtim, Status: StatusProcess, Body: body}
}

// utimWorkerDecrypt strips the encryption envelope of an inbound body.
func utimWorkerDecrypt(u *Utim, item Item) Item {
	layer := crypto.NewLayer(u.SessionKey())
	body, err := layer.Decrypt(item.Body)
	if err != nil {
		log.Printf("decrypt failed: error=%v", err)
		return Item{Source: AddressUhost, Destination: AddressUtim, Status: StatusFinalized}
	}
	return Item{Source: AddressUhost, Destination: AddressUtim, Status: StatusProcess, Body: body}
}
