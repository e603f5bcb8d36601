// Package provider keeps one chain client per configured network and hands
// out readers by chain id.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ChatWallet/internal/registry"
	"ChatWallet/internal/web3"
	"ChatWallet/internal/web3/ethereum"
)

// DialFunc opens a client for a chain. Tests replace it.
type DialFunc func(ctx context.Context, cfg ethereum.Config) (*ethereum.Client, error)

// Registry manages chain clients keyed by chain id. Clients are dialled on
// first use.
type Registry struct {
	chains  *registry.Registry
	dial    DialFunc
	mu      sync.Mutex
	clients map[uint64]*ethereum.Client
}

var _ web3.ReaderSource = (*Registry)(nil)

// Option customises a Registry.
type Option func(*Registry)

// WithDialer replaces ethereum.Dial.
func WithDialer(d DialFunc) Option {
	return func(r *Registry) {
		if d != nil {
			r.dial = d
		}
	}
}

// NewRegistry creates a Registry over the chain table.
func NewRegistry(chains *registry.Registry, opts ...Option) *Registry {
	r := &Registry{
		chains:  chains,
		dial:    ethereum.Dial,
		clients: make(map[uint64]*ethereum.Client),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register installs an already connected client for chainID.
func (r *Registry) Register(chainID uint64, client *ethereum.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.clients[chainID]; ok && old != client {
		old.Close()
	}
	r.clients[chainID] = client
}

// Client returns the client of chainID, dialling it if needed.
func (r *Registry) Client(ctx context.Context, chainID uint64) (*ethereum.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[chainID]; ok {
		return c, nil
	}
	chain, ok := r.chains.ChainByID(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d is not supported", chainID)
	}
	c, err := r.dial(ctx, ethereum.Config{Name: chain.Name, RPCURL: chain.RPCURL})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", chain.Name, err)
	}
	r.clients[chainID] = c
	return c, nil
}

// Reader implements web3.ReaderSource.
func (r *Registry) Reader(ctx context.Context, chainID uint64) (web3.ChainReader, error) {
	c, err := r.Client(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Connected lists the chain ids with an open client.
func (r *Registry) Connected() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uint64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close releases all clients.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
