package provider

import "errors"

// Wallet-state errors. These are user-recoverable conditions, not
// transport failures, and are never retried by the client.
var (
	ErrLocked           = errors.New("wallet is locked")
	ErrCapabilityDenied = errors.New("capability denied")
)

// Error codes reported by the wallet node
const (
	codeLocked           = 4100
	codeCapabilityDenied = 4001
)

func mapRPCError(e *RPCError) error {
	switch e.Code {
	case codeLocked:
		return ErrLocked
	case codeCapabilityDenied:
		return ErrCapabilityDenied
	}
	return e
}
