package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	hclient "github.com/stellar/go/clients/horizonclient"
	hprotocol "github.com/stellar/go/protocols/horizon"

	"github.com/dotandev/sorograph/internal/cache"
	"github.com/dotandev/sorograph/internal/config"
	"github.com/dotandev/sorograph/internal/schema"
)

// ErrNotFound is the only transport failure the pipeline treats as fatal:
// a transaction that cannot be located at all cannot be decoded at all.
var ErrNotFound = errors.New("transaction not found")

// Client is the ledger transport boundary. Implementations fetch records by
// transaction hash; everything downstream of this interface is pure
// decoding.
type Client interface {
	GetTransaction(ctx context.Context, hash string) (hprotocol.Transaction, error)
	GetOperations(ctx context.Context, hash string) ([]OperationRecord, error)
	GetEffects(ctx context.Context, hash string) ([]schema.Effect, error)
}

// HTTPClient talks to a Horizon instance. The typed transaction endpoint
// goes through the stellar SDK client; operations and effects are fetched
// as raw pages so source-account normalization and the invocation fields
// survive intact. Raw responses are cached by network-scoped hash when a
// store is configured.
type HTTPClient struct {
	net     config.Network
	horizon *hclient.Client
	http    *http.Client
	store   cache.Store
}

func NewClient(net config.Network, store cache.Store) *HTTPClient {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	return &HTTPClient{
		net: net,
		horizon: &hclient.Client{
			HorizonURL: net.HorizonURL,
			HTTP:       httpClient,
		},
		http:  httpClient,
		store: store,
	}
}

func (c *HTTPClient) log() *log.Entry {
	return log.WithFields(log.Fields{
		"package": "horizon",
		"network": c.net.Name,
	})
}

func (c *HTTPClient) GetTransaction(ctx context.Context, hash string) (hprotocol.Transaction, error) {
	key := fmt.Sprintf("tx:%s:%s", c.net.Name, hash)
	if c.store != nil {
		if raw, ok := c.store.Get(key); ok {
			var tx hprotocol.Transaction
			if err := json.Unmarshal(raw, &tx); err == nil {
				return tx, nil
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return hprotocol.Transaction{}, err
	}

	tx, err := c.horizon.TransactionDetail(hash)
	if err != nil {
		if herr, ok := err.(*hclient.Error); ok && herr.Problem.Status == http.StatusNotFound {
			return hprotocol.Transaction{}, errors.Wrapf(ErrNotFound, "hash %s on %s", hash, c.net.Name)
		}
		return hprotocol.Transaction{}, errors.Wrap(err, "fetching transaction")
	}

	if c.store != nil {
		if raw, err := json.Marshal(tx); err == nil {
			c.store.Put(key, raw)
		}
	}
	return tx, nil
}

// rawPage is the generic Horizon collection envelope.
type rawPage[T any] struct {
	Embedded struct {
		Records []T `json:"records"`
	} `json:"_embedded"`
}

func (c *HTTPClient) GetOperations(ctx context.Context, hash string) ([]OperationRecord, error) {
	path := fmt.Sprintf("/transactions/%s/operations?limit=200&include_failed=true", url.PathEscape(hash))
	raw, err := c.fetchRaw(ctx, "ops", hash, path)
	if err != nil {
		return nil, errors.Wrap(err, "fetching operations")
	}
	var page rawPage[OperationRecord]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.Wrap(err, "unmarshaling operations page")
	}
	return page.Embedded.Records, nil
}

type effectRecord struct {
	Type        string `json:"type"`
	Account     string `json:"account"`
	Amount      string `json:"amount"`
	AssetType   string `json:"asset_type"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
}

func (c *HTTPClient) GetEffects(ctx context.Context, hash string) ([]schema.Effect, error) {
	path := fmt.Sprintf("/transactions/%s/effects?limit=200", url.PathEscape(hash))
	raw, err := c.fetchRaw(ctx, "effects", hash, path)
	if err != nil {
		return nil, errors.Wrap(err, "fetching effects")
	}
	var page rawPage[effectRecord]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.Wrap(err, "unmarshaling effects page")
	}
	out := make([]schema.Effect, 0, len(page.Embedded.Records))
	for _, r := range page.Embedded.Records {
		out = append(out, schema.Effect{
			Type:    r.Type,
			Account: r.Account,
			Amount:  r.Amount,
			Asset:   canonicalAsset(r.AssetType, r.AssetCode, r.AssetIssuer),
		})
	}
	return out, nil
}

func (c *HTTPClient) fetchRaw(ctx context.Context, kind, hash, path string) ([]byte, error) {
	key := fmt.Sprintf("%s:%s:%s", kind, c.net.Name, hash)
	if c.store != nil {
		if raw, ok := c.store.Get(key); ok {
			return raw, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.net.HorizonURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "transport failure")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(ErrNotFound, "hash %s on %s", hash, c.net.Name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("horizon returned %d for %s", resp.StatusCode, path)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response")
	}

	if c.store != nil {
		c.store.Put(key, raw)
	}
	c.log().WithField("kind", kind).Debugf("fetched %d bytes", len(raw))
	return raw, nil
}

func canonicalAsset(assetType, code, issuer string) string {
	if assetType == "native" || assetType == "" {
		return "native"
	}
	return code + ":" + issuer
}
