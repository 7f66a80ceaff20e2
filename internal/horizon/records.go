package horizon

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// FlexAccount absorbs the transport quirk where a source-account field
// arrives as a one-element wrapped array instead of a bare string. It is
// always a plain string by the time anything decodes it.
type FlexAccount string

func (f *FlexAccount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		var arr []string
		if err := json.Unmarshal(b, &arr); err != nil {
			return errors.Wrap(err, "unmarshaling wrapped account")
		}
		if len(arr) == 0 {
			*f = ""
			return nil
		}
		*f = FlexAccount(arr[0])
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "unmarshaling account")
	}
	*f = FlexAccount(s)
	return nil
}

// HostFunctionParameter is one entry of an invocation's structured
// parameter list. Value is base64 XDR unless Type says otherwise.
type HostFunctionParameter struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// OperationRecord is the normalized per-operation transport record. Kind
// specific fields are populated per Type; invocation operations carry the
// function descriptor fields the resolver probes.
type OperationRecord struct {
	ID              string      `json:"id"`
	Type            string      `json:"type"`
	TypeI           int32       `json:"type_i"`
	TransactionHash string      `json:"transaction_hash"`
	SourceAccount   FlexAccount `json:"source_account"`

	// Invocation fields.
	Function        string                  `json:"function,omitempty"`
	Parameters      []HostFunctionParameter `json:"parameters,omitempty"`
	Address         string                  `json:"address,omitempty"`
	Contract        string                  `json:"contract,omitempty"`
	Salt            string                  `json:"salt,omitempty"`
	HostFunctionXDR string                  `json:"host_function,omitempty"`

	// Payment and offer fields.
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	Amount          string `json:"amount,omitempty"`
	AssetType       string `json:"asset_type,omitempty"`
	AssetCode       string `json:"asset_code,omitempty"`
	AssetIssuer     string `json:"asset_issuer,omitempty"`
	StartingBalance string `json:"starting_balance,omitempty"`
	OfferID         string `json:"offer_id,omitempty"`
}

const (
	OpTypeInvokeHostFunction = "invoke_host_function"
	OpTypeExtendFootprintTTL = "extend_footprint_ttl"
	OpTypeRestoreFootprint   = "restore_footprint"
	OpTypePayment            = "payment"
)

// IsInvocation reports whether the operation invoked a host function.
func (o OperationRecord) IsInvocation() bool {
	return o.Type == OpTypeInvokeHostFunction
}

// IsSoroban reports whether the operation touches Soroban state at all.
func (o OperationRecord) IsSoroban() bool {
	switch o.Type {
	case OpTypeInvokeHostFunction, OpTypeExtendFootprintTTL, OpTypeRestoreFootprint:
		return true
	}
	return false
}
