package sorobanrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/dotandev/sorograph/internal/cache"
	"github.com/dotandev/sorograph/internal/config"
)

// Execution report statuses returned by getTransaction. NOT_FOUND is a
// normal outcome on historical hashes (the RPC server only retains recent
// ledgers) and must degrade, not fail.
const (
	StatusSuccess  = "SUCCESS"
	StatusFailed   = "FAILED"
	StatusNotFound = "NOT_FOUND"
)

// ExecutionReport is the out-of-band view of a transaction from the
// read-execution endpoint: raw XDR blobs plus per-operation results when
// the server still has them.
type ExecutionReport struct {
	Status        string `json:"status"`
	EnvelopeXDR   string `json:"envelopeXdr,omitempty"`
	ResultXDR     string `json:"resultXdr,omitempty"`
	ResultMetaXDR string `json:"resultMetaXdr,omitempty"`
	Ledger        uint32 `json:"ledger,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`

	// Per-operation results, correlated by index.
	Results []OperationResult `json:"results,omitempty"`
}

// OperationResult is one per-operation entry of an execution report.
type OperationResult struct {
	XDR  string   `json:"xdr,omitempty"`
	Auth []string `json:"auth,omitempty"`
}

// Found reports whether the endpoint still retained the transaction.
func (r *ExecutionReport) Found() bool {
	return r != nil && r.Status != StatusNotFound
}

// VersionInfo is the getVersionInfo response subset we gate on.
type VersionInfo struct {
	Version         string `json:"version"`
	ProtocolVersion uint32 `json:"protocolVersion"`
}

// Client is a minimal JSON-RPC 2.0 client for a Soroban RPC server.
type Client struct {
	net   config.Network
	http  *http.Client
	store cache.Store
}

func NewClient(net config.Network, store cache.Store) *Client {
	return &Client{
		net:   net,
		http:  &http.Client{Timeout: 30 * time.Second},
		store: store,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "marshaling rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.net.SorobanRPCURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "calling %s", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading rpc response")
	}

	var envelope rpcResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Wrapf(err, "unmarshaling %s response", method)
	}
	if envelope.Error != nil {
		return errors.Errorf("%s failed: %s (%d)", method, envelope.Error.Message, envelope.Error.Code)
	}
	return json.Unmarshal(envelope.Result, out)
}

// GetExecutionReport fetches the transaction's out-of-band execution view.
// A NOT_FOUND status is returned as a report, not an error, so the caller
// can degrade to metadata-blob-only extraction.
func (c *Client) GetExecutionReport(ctx context.Context, hash string) (*ExecutionReport, error) {
	key := fmt.Sprintf("report:%s:%s", c.net.Name, hash)
	if c.store != nil {
		if raw, ok := c.store.Get(key); ok {
			var report ExecutionReport
			if err := json.Unmarshal(raw, &report); err == nil {
				return &report, nil
			}
		}
	}

	var report ExecutionReport
	params := struct {
		Hash string `json:"hash"`
	}{Hash: hash}
	if err := c.call(ctx, "getTransaction", params, &report); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"package": "sorobanrpc",
		"network": c.net.Name,
		"status":  report.Status,
	}).Debug("execution report fetched")

	// Only settled outcomes are immutable enough to cache.
	if c.store != nil && report.Status != StatusNotFound {
		if raw, err := json.Marshal(report); err == nil {
			c.store.Put(key, raw)
		}
	}
	return &report, nil
}

// GetVersionInfo queries the server build.
func (c *Client) GetVersionInfo(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo
	if err := c.call(ctx, "getVersionInfo", nil, &info); err != nil {
		return VersionInfo{}, err
	}
	return info, nil
}

// CheckVersion fails when the RPC server is older than minVersion and
// therefore predates the execution-report shape this decoder expects.
func (c *Client) CheckVersion(ctx context.Context, minVersion string) error {
	info, err := c.GetVersionInfo(ctx)
	if err != nil {
		return errors.Wrap(err, "querying rpc version")
	}
	return CompareVersion(info.Version, minVersion)
}

// CompareVersion is the pure comparison behind CheckVersion.
func CompareVersion(have, minVersion string) error {
	min, err := goversion.NewVersion(minVersion)
	if err != nil {
		return errors.Wrapf(err, "bad minimum version %q", minVersion)
	}
	got, err := goversion.NewVersion(have)
	if err != nil {
		return errors.Wrapf(err, "bad server version %q", have)
	}
	if got.LessThan(min) {
		return errors.Errorf("rpc server %s is older than minimum supported %s", have, minVersion)
	}
	return nil
}
