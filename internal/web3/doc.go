// Package web3 defines the chain-facing contracts of the wallet pipeline:
// unsigned transaction descriptions, fee suggestions, receipts, the signing
// session that holds key material and the read-only chain calls the
// transaction builder depends on. Concrete implementations live in the
// ethereum sub-package; provider maps chain ids to connected clients.
package web3
