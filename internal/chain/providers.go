// Package chain manages the long-lived JSON-RPC clients shared by all
// request handling. Clients are dialed once at startup and are safe for
// concurrent use.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Providers holds one ethclient per supported chain.
type Providers struct {
	clients map[uint64]*ethclient.Client
	timeout time.Duration
}

// Dial connects to every configured RPC endpoint. It fails fast on the
// first endpoint that cannot be dialed.
func Dial(ctx context.Context, rpcURLs map[uint64]string, timeout time.Duration) (*Providers, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	p := &Providers{
		clients: make(map[uint64]*ethclient.Client, len(rpcURLs)),
		timeout: timeout,
	}
	for chainID, url := range rpcURLs {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("chain: dial chain %d: %w", chainID, err)
		}
		p.clients[chainID] = client
	}
	return p, nil
}

// Get returns the client for a chain; a missing entry is a configuration
// fault.
func (p *Providers) Get(chainID uint64) (*ethclient.Client, error) {
	client, ok := p.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("chain: no RPC client configured for chain %d", chainID)
	}
	return client, nil
}

// BlockNumber reads the current head block number of a chain with the
// configured per-call timeout.
func (p *Providers) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	client, err := p.Get(chainID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number for chain %d: %w", chainID, err)
	}
	return head, nil
}

// ChainIDs returns every configured chain id.
func (p *Providers) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(p.clients))
	for id := range p.clients {
		ids = append(ids, id)
	}
	return ids
}

// Close releases every client connection.
func (p *Providers) Close() {
	for _, client := range p.clients {
		client.Close()
	}
}
