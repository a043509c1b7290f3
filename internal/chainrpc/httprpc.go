package chainrpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient is the one concrete Client this repo ships: a minimal
// JSON-RPC-over-HTTP adapter for the ledger's getSignaturesForAddress,
// getTransaction, and getAccountInfo methods. The transport library
// itself is treated as an external collaborator the indexer core never
// depends on directly (spec.md §6) — this type exists only so
// cmd/indexer has something real to construct; it uses the standard
// library rather than a third-party Solana SDK because none is present
// anywhere in the retrieval pack.
type HTTPClient struct {
	endpoint string
	http     *http.Client
}

// NewHTTPClient builds an HTTPClient against the given JSON-RPC endpoint.
func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{endpoint: endpoint, http: &http.Client{Timeout: 30 * time.Second}}
}

type rpcCall struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcCall{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("chainrpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("chainrpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chainrpc: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("chainrpc: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("chainrpc: %s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

type wireSignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	Err       interface{} `json:"err"`
	BlockTime *int64 `json:"blockTime"`
}

func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, pubkey string, params GetSignaturesForAddressParams) ([]SignatureInfo, error) {
	opts := map[string]interface{}{"commitment": string(params.Commitment)}
	if params.Limit > 0 {
		opts["limit"] = params.Limit
	}
	if params.Before != "" {
		opts["before"] = params.Before
	}
	if params.Until != "" {
		opts["until"] = params.Until
	}

	var wire []wireSignatureInfo
	if err := c.call(ctx, "getSignaturesForAddress", []interface{}{pubkey, opts}, &wire); err != nil {
		return nil, err
	}

	out := make([]SignatureInfo, len(wire))
	for i, w := range wire {
		var bt *time.Time
		if w.BlockTime != nil {
			t := time.Unix(*w.BlockTime, 0)
			bt = &t
		}
		out[i] = SignatureInfo{Signature: w.Signature, Slot: w.Slot, Err: w.Err != nil, BlockTime: bt}
	}
	return out, nil
}

type wireTransaction struct {
	Transaction struct {
		Signatures []string `json:"signatures"`
	} `json:"transaction"`
	Slot int `json:"slot"`
	Meta struct {
		Err     interface{} `json:"err"`
		LogMessages []string `json:"logMessages"`
	} `json:"meta"`
}

func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (Transaction, error) {
	opts := map[string]interface{}{"encoding": "jsonParsed", "commitment": string(CommitmentConfirmed), "maxSupportedTransactionVersion": 0}

	var wire wireTransaction
	if err := c.call(ctx, "getTransaction", []interface{}{signature, opts}, &wire); err != nil {
		return Transaction{}, err
	}

	return Transaction{
		Signature:   signature,
		Slot:        uint64(wire.Slot),
		Err:         wire.Meta.Err != nil,
		LogMessages: wire.Meta.LogMessages,
	}, nil
}

type wireAccount struct {
	Owner string   `json:"owner"`
	Data  []string `json:"data"` // [base64, "base64"]
}

func (c *HTTPClient) GetAccountWithCommitment(ctx context.Context, pubkey string, commitment Commitment) (AccountInfo, error) {
	opts := map[string]interface{}{"encoding": "base64", "commitment": string(commitment)}

	var wire struct {
		Value *wireAccount `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", []interface{}{pubkey, opts}, &wire); err != nil {
		return AccountInfo{}, err
	}
	if wire.Value == nil {
		return AccountInfo{}, fmt.Errorf("chainrpc: account not found: %s", pubkey)
	}
	if len(wire.Value.Data) == 0 {
		return AccountInfo{Owner: wire.Value.Owner}, nil
	}

	data, err := base64.StdEncoding.DecodeString(wire.Value.Data[0])
	if err != nil {
		return AccountInfo{}, fmt.Errorf("chainrpc: decode account data: %w", err)
	}
	return AccountInfo{Owner: wire.Value.Owner, Data: data}, nil
}
