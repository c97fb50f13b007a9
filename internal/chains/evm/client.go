// Package evm provides the JSON-RPC client used to inspect EVM chains.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is the subset of the Ethereum JSON-RPC API the validator needs.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

// Dialer opens a Client for an RPC url.
type Dialer interface {
	Dial(ctx context.Context, rpcURL string) (Client, error)
}

// ObserveFunc receives the outcome of every RPC call.
type ObserveFunc func(method string, duration time.Duration, err error)

// EthDialer dials endpoints with go-ethereum's ethclient.
type EthDialer struct {
	httpClient *http.Client
	headers    http.Header
	observe    ObserveFunc
}

// DialerOption configures an EthDialer.
type DialerOption func(*EthDialer)

// WithHTTPClient sets the HTTP client used for http(s) endpoints.
func WithHTTPClient(c *http.Client) DialerOption {
	return func(d *EthDialer) {
		d.httpClient = c
	}
}

// WithHeader adds a header to every HTTP request.
func WithHeader(key, value string) DialerOption {
	return func(d *EthDialer) {
		d.headers.Add(key, value)
	}
}

// WithObserver registers a callback invoked after every RPC call.
func WithObserver(fn ObserveFunc) DialerOption {
	return func(d *EthDialer) {
		d.observe = fn
	}
}

// NewDialer creates an EthDialer.
func NewDialer(opts ...DialerOption) *EthDialer {
	d := &EthDialer{
		httpClient: &http.Client{},
		headers:    http.Header{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial connects to rpcURL. For http endpoints no request is made until the
// first call.
func (d *EthDialer) Dial(ctx context.Context, rpcURL string) (Client, error) {
	opts := []rpc.ClientOption{rpc.WithHTTPClient(d.httpClient)}
	if len(d.headers) > 0 {
		opts = append(opts, rpc.WithHeaders(d.headers))
	}

	rc, err := rpc.DialOptions(ctx, rpcURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rpcURL, err)
	}

	var c Client = ethclient.NewClient(rc)
	if d.observe != nil {
		c = &observedClient{next: c, observe: d.observe}
	}
	return c, nil
}

type observedClient struct {
	next    Client
	observe ObserveFunc
}

func (c *observedClient) ChainID(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	id, err := c.next.ChainID(ctx)
	c.observe("eth_chainId", time.Since(start), err)
	return id, err
}

func (c *observedClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	start := time.Now()
	code, err := c.next.CodeAt(ctx, account, blockNumber)
	c.observe("eth_getCode", time.Since(start), err)
	return code, err
}

func (c *observedClient) Close() {
	c.next.Close()
}
