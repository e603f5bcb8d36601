// Package txbuilder converts complete transactional intents into unsigned
// chain transactions. Swaps spending an ERC-20 token may carry an approval
// transaction that has to be confirmed before the router call is sent.
package txbuilder
