package packet

// UCOMMAND assembly. Each helper builds the body of one protocol message;
// the crypto envelope is applied later by the egress workers.

// AssembleHello builds the session-opening hello carrying the client
// ephemeral public value A.
func AssembleHello(a []byte) []byte {
	return Assemble(UCommandHello, a)
}

// AssembleCheck builds the challenge response carrying the client proof M.
func AssembleCheck(m []byte) []byte {
	return Assemble(UCommandCheck, m)
}

// AssembleTrusted builds the session confirmation carrying fresh random data.
func AssembleTrusted(random []byte) []byte {
	return Assemble(UCommandTrusted, random)
}

// AssembleError builds an error report for Uhost.
func AssembleError(reason []byte) []byte {
	return Assemble(UCommandError, reason)
}

// AssembleVerify builds the platform verification request.
func AssembleVerify(command []byte) []byte {
	return Assemble(UCommandTestPlatformData, command)
}

// KeepaliveAnswer is the bare-tag reply to a keepalive probe.
func KeepaliveAnswer() []byte {
	return []byte{UCommandKeepaliveAnswer}
}

// AssembleForNetwork wraps an already assembled command for the network
// layer.
func AssembleForNetwork(command []byte) []byte {
	return Assemble(OutboundToNetwork, command)
}
