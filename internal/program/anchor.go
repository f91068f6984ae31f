package program

import "crypto/sha256"

// Anchor discriminators: the first 8 bytes of sha256 over a namespaced name.
// Instruction data is discriminator ++ Borsh(args); account data is
// discriminator ++ Borsh(state); events appear in logs as
// "Program data: <base64(discriminator ++ Borsh(fields))>".

func anchorDiscriminator(namespace, name string) [8]byte {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}

func InstructionDiscriminator(name string) [8]byte {
	return anchorDiscriminator("global", name)
}

func AccountDiscriminator(name string) [8]byte {
	return anchorDiscriminator("account", name)
}

func EventDiscriminator(name string) [8]byte {
	return anchorDiscriminator("event", name)
}
