package domain

const (
	// Gateway constants
	DEFAULT_IPFS_GATEWAY = "https://ipfs.io"

	// Blockchain constants
	ETHEREUM_ZERO_ADDRESS = "0x0000000000000000000000000000000000000000"

	// UNKNOWN is the value every metadata field carries when no tier could resolve it
	UNKNOWN = "unknown"

	// Order payment methods
	PAYMENT_METHOD_CARD   = "card"
	PAYMENT_METHOD_CRYPTO = "crypto"
)
