package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// weiPerCoin converts between the native coin unit used throughout the
// ledger and the wei amounts the node expects.
var weiPerCoin = new(big.Float).SetFloat64(1e18)

// RPC talks JSON-RPC 2.0 to an execution node. Amounts cross the boundary
// as native coin units and are converted to wei hex quantities on the wire.
type RPC struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Int64
}

func NewRPC(endpoint string) *RPC {
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "http://" + endpoint
	}
	return &RPC{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *RPC) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "rpc call %s failed", method)
	}
	defer resp.Body.Close()

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errors.Wrapf(err, "rpc call %s returned malformed response", method)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result != nil {
		return json.Unmarshal(envelope.Result, result)
	}
	return nil
}

func hexToCoin(quantity string) (float64, error) {
	wei, ok := new(big.Int).SetString(strings.TrimPrefix(quantity, "0x"), 16)
	if !ok {
		return 0, errors.Errorf("malformed quantity %q", quantity)
	}
	coin, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerCoin).Float64()
	return coin, nil
}

func coinToHex(amount float64) string {
	wei, _ := new(big.Float).Mul(new(big.Float).SetFloat64(amount), weiPerCoin).Int(nil)
	return "0x" + wei.Text(16)
}

func (c *RPC) GetBalance(ctx context.Context, address string) (float64, error) {
	var quantity string
	if err := c.call(ctx, "eth_getBalance", []interface{}{address, "latest"}, &quantity); err != nil {
		return 0, err
	}
	return hexToCoin(quantity)
}

func (c *RPC) SendTransaction(ctx context.Context, from, to string, amount float64) (string, error) {
	tx := map[string]string{
		"from":  from,
		"to":    to,
		"value": coinToHex(amount),
	}
	var hash string
	if err := c.call(ctx, "eth_sendTransaction", []interface{}{tx}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

func (c *RPC) GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var raw struct {
		TransactionHash string `json:"transactionHash"`
		Status          string `json:"status"`
	}
	var result json.RawMessage
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{hash}, &result); err != nil {
		return nil, err
	}
	// A null result means the transaction is still pending or unknown; the
	// monitor distinguishes the two by its timeout window.
	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, errors.Wrap(err, "malformed receipt")
	}
	receipt := &Receipt{Hash: raw.TransactionHash, Status: ReceiptReverted}
	if raw.Status == "0x1" {
		receipt.Status = ReceiptSuccess
	}
	return receipt, nil
}

func (c *RPC) GetGasPrice(ctx context.Context) (float64, error) {
	var quantity string
	if err := c.call(ctx, "eth_gasPrice", []interface{}{}, &quantity); err != nil {
		return 0, err
	}
	price, err := hexToCoin(quantity)
	if err != nil {
		return 0, err
	}
	// A flat 21000-gas transfer; round up to keep the buffer conservative.
	return math.Ceil(price*21000*1e6) / 1e6, nil
}
