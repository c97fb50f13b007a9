// Package evmtest provides an in-process JSON-RPC endpoint for tests.
package evmtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Node is a fake chain answering eth_chainId and eth_getCode.
type Node struct {
	ChainID uint64

	mu      sync.RWMutex
	code    map[common.Address][]byte
	failing map[string]bool
	calls   atomic.Int64
}

// NewNode creates a node reporting chainID with no deployed code.
func NewNode(chainID uint64) *Node {
	return &Node{
		ChainID: chainID,
		code:    map[common.Address][]byte{},
		failing: map[string]bool{},
	}
}

// SetCode deploys code at addr.
func (n *Node) SetCode(addr common.Address, code []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.code[addr] = code
}

// Fail makes every call to method return a JSON-RPC error.
func (n *Node) Fail(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing[method] = true
}

// Calls returns the number of requests served.
func (n *Node) Calls() int64 {
	return n.calls.Load()
}

// Start serves the node over HTTP. The caller closes the server.
func (n *Node) Start() *httptest.Server {
	return httptest.NewServer(n)
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// ServeHTTP implements http.Handler.
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := response{JSONRPC: "2.0", ID: req.ID}

	n.mu.RLock()
	failing := n.failing[req.Method]
	n.mu.RUnlock()

	switch {
	case failing:
		resp.Error = &rpcError{Code: -32000, Message: "internal error"}
	case req.Method == "eth_chainId":
		resp.Result = hexutil.Uint64(n.ChainID)
	case req.Method == "eth_getCode":
		resp.Result = n.getCode(req.Params)
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found: " + req.Method}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) getCode(params []json.RawMessage) hexutil.Bytes {
	if len(params) == 0 {
		return hexutil.Bytes{}
	}
	var addr string
	if err := json.Unmarshal(params[0], &addr); err != nil {
		return hexutil.Bytes{}
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	code, ok := n.code[common.HexToAddress(strings.TrimSpace(addr))]
	if !ok {
		return hexutil.Bytes{}
	}
	return hexutil.Bytes(code)
}
