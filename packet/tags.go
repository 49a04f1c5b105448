package packet

// Single-byte protocol tags. Every message body in the Utim/Uhost protocol
// starts with one of these, usually followed by a 2-byte big-endian length
// and the value (see tlv.go).
//
// The families never share a wire position: CRYPTO tags open the secured
// envelope, INBOUND tags open Device-originated bodies, UCOMMAND tags open
// Uhost-originated bodies, UPLATFORM tags open the inner connection-string
// envelope.

// CRYPTO: outer classification of a secured message.
const (
	CryptoEncrypted byte = 0x40
	CryptoSigned    byte = 0x41
)

// INBOUND: commands arriving from the Device.
const (
	InboundDataToPlatform byte = 0x11
	InboundNetworkReady   byte = 0x12
)

// OUTBOUND: wrapper for data addressed to the network layer.
const (
	OutboundToNetwork byte = 0x2D
)

// UCOMMAND: the Uhost command set.
const (
	UCommandTryFirst         byte = 0x21
	UCommandTrySecond        byte = 0x22
	UCommandInit             byte = 0x23
	UCommandConnectionString byte = 0x24
	UCommandTestPlatformData byte = 0x25
	UCommandAuthentic        byte = 0x26
	UCommandError            byte = 0x27
	UCommandKeepalive        byte = 0x28
	UCommandKeepaliveAnswer  byte = 0x29
	UCommandHello            byte = 0x2A
	UCommandCheck            byte = 0x2B
	UCommandTrusted          byte = 0x2C
)

// UPLATFORM: platform selectors inside a CONNECTION_STRING.
const (
	PlatformAzure byte = 0x31
	PlatformAWS   byte = 0x32
)

// TagName maps every known tag to a printable name for logs.
var TagName = map[byte]string{
	CryptoEncrypted: "[0x40]CRYPTO.ENCRYPTED",
	CryptoSigned:    "[0x41]CRYPTO.SIGNED",

	InboundDataToPlatform: "[0x11]INBOUND.DATA_TO_PLATFORM",
	InboundNetworkReady:   "[0x12]INBOUND.NETWORK_READY",

	OutboundToNetwork: "[0x2D]OUTBOUND.TO_NETWORK",

	UCommandTryFirst:         "[0x21]UCOMMAND.TRY_FIRST",
	UCommandTrySecond:        "[0x22]UCOMMAND.TRY_SECOND",
	UCommandInit:             "[0x23]UCOMMAND.INIT",
	UCommandConnectionString: "[0x24]UCOMMAND.CONNECTION_STRING",
	UCommandTestPlatformData: "[0x25]UCOMMAND.TEST_PLATFORM_DATA",
	UCommandAuthentic:        "[0x26]UCOMMAND.AUTHENTIC",
	UCommandError:            "[0x27]UCOMMAND.ERROR",
	UCommandKeepalive:        "[0x28]UCOMMAND.KEEPALIVE",
	UCommandKeepaliveAnswer:  "[0x29]UCOMMAND.KEEPALIVE_ANSWER",
	UCommandHello:            "[0x2A]UCOMMAND.HELLO",
	UCommandCheck:            "[0x2B]UCOMMAND.CHECK",
	UCommandTrusted:          "[0x2C]UCOMMAND.TRUSTED",

	PlatformAzure: "[0x31]UPLATFORM.PL_AZURE",
	PlatformAWS:   "[0x32]UPLATFORM.PL_AWS",
}
