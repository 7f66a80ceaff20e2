package resolver

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/stellar/go/xdr"

	"github.com/dotandev/sorograph/internal/address"
	"github.com/dotandev/sorograph/internal/config"
	"github.com/dotandev/sorograph/internal/horizon"
	"github.com/dotandev/sorograph/internal/scval"
	"github.com/dotandev/sorograph/internal/sorobanrpc"
)

// NotInvocation is the sentinel for operations that are not host-function
// invocations at all. It is deliberately distinct from the network-qualified
// unresolved placeholder so tests and the UI can assert on cause.
const NotInvocation = "not-an-invocation"

// Resolution names the invoked contract and, when recoverable, the function
// and arguments. Strategy records which chain step answered.
type Resolution struct {
	ContractID   string
	FunctionName string
	Args         []scval.Value
	Auth         []string
	Strategy     string
}

// Resolved reports whether a real contract identifier was recovered.
func (r Resolution) Resolved() bool {
	return address.IsContract(r.ContractID)
}

// Input is everything a resolution attempt may consult. Report and
// EnvelopeXDR are optional; strategies that need them skip when absent.
type Input struct {
	Op horizon.OperationRecord
	// OpIndex is the operation's position in the transaction envelope.
	OpIndex     int
	Report      *sorobanrpc.ExecutionReport
	EnvelopeXDR string
}

// Resolver walks an ordered list of predicate+extractor strategies and
// returns the first success. The order is part of the contract: lighter
// sources win even when the heavier ones would agree, and especially when
// they would not.
type Resolver struct {
	net config.Network
	dec *scval.Decoder
}

func New(net config.Network) *Resolver {
	return &Resolver{net: net, dec: &scval.Decoder{}}
}

// Placeholder is the network-qualified marker for exhausted resolution.
func (r *Resolver) Placeholder() string {
	return fmt.Sprintf("unresolved (%s)", r.net.Name)
}

type strategy struct {
	name string
	fn   func(Input) (Resolution, bool)
}

func (r *Resolver) strategies() []strategy {
	return []strategy{
		{"direct-field", r.fromDirectFields},
		{"address-parameter", r.fromAddressParameter},
		{"host-function-envelope", r.fromHostFunctionXDR},
		{"resolved-parameter", r.fromResolvedParameter},
		{"execution-report", r.fromExecutionReport},
		{"envelope-redecode", r.fromTransactionEnvelope},
	}
}

// Resolve runs the chain. Non-invocation operations short-circuit to the
// NotInvocation sentinel before any strategy runs.
func (r *Resolver) Resolve(in Input) Resolution {
	if !in.Op.IsInvocation() {
		return Resolution{ContractID: NotInvocation, Strategy: "not-invocation"}
	}
	for _, s := range r.strategies() {
		if res, ok := s.fn(in); ok {
			res.Strategy = s.name
			return res
		}
	}
	log.WithFields(log.Fields{
		"package": "resolver",
		"network": r.net.Name,
		"op":      in.Op.ID,
	}).Debug("resolution exhausted")
	return Resolution{ContractID: r.Placeholder(), Strategy: "exhausted"}
}

// 1: well-known fields on the record that already carry a valid identifier.
func (r *Resolver) fromDirectFields(in Input) (Resolution, bool) {
	for _, candidate := range []string{in.Op.Contract, in.Op.Address} {
		if address.IsContract(candidate) {
			return Resolution{
				ContractID:   candidate,
				FunctionName: functionFromParameters(r.dec, in.Op.Parameters),
			}, true
		}
	}
	return Resolution{}, false
}

// 2: an address-typed entry in the structured parameter list.
func (r *Resolver) fromAddressParameter(in Input) (Resolution, bool) {
	for _, p := range in.Op.Parameters {
		if p.Type != "Address" {
			continue
		}
		v, ok := decodeParameter(r.dec, p)
		if !ok || v.Kind != scval.KindAddress || v.AddrType != scval.AddressContract {
			continue
		}
		return Resolution{
			ContractID:   v.Text,
			FunctionName: functionFromParameters(r.dec, in.Op.Parameters),
		}, true
	}
	return Resolution{}, false
}

// 3: the dedicated invoked-function sub-envelope on the operation.
func (r *Resolver) fromHostFunctionXDR(in Input) (Resolution, bool) {
	if in.Op.HostFunctionXDR == "" {
		return Resolution{}, false
	}
	var hf xdr.HostFunction
	if err := xdr.SafeUnmarshalBase64(in.Op.HostFunctionXDR, &hf); err != nil {
		return Resolution{}, false
	}
	return r.fromHostFunction(hf)
}

// 4: parameter values supplied as already-resolved identifiers.
func (r *Resolver) fromResolvedParameter(in Input) (Resolution, bool) {
	for _, p := range in.Op.Parameters {
		if address.IsContract(p.Value) {
			return Resolution{ContractID: p.Value}, true
		}
	}
	return Resolution{}, false
}

// 5: the out-of-band execution report, correlated by operation index.
func (r *Resolver) fromExecutionReport(in Input) (Resolution, bool) {
	if !in.Report.Found() || in.Report.EnvelopeXDR == "" {
		return Resolution{}, false
	}
	return r.fromEnvelopeBlob(in.Report.EnvelopeXDR, in.OpIndex)
}

// 6: full re-decode of the enclosing transaction envelope. Heaviest and
// most reliable; the lighter paths are frequently absent on historical
// records.
func (r *Resolver) fromTransactionEnvelope(in Input) (Resolution, bool) {
	if in.EnvelopeXDR == "" {
		return Resolution{}, false
	}
	return r.fromEnvelopeBlob(in.EnvelopeXDR, in.OpIndex)
}

func (r *Resolver) fromEnvelopeBlob(envB64 string, opIndex int) (Resolution, bool) {
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(envB64, &env); err != nil {
		return Resolution{}, false
	}
	ops := env.Operations()
	if opIndex < 0 || opIndex >= len(ops) {
		return Resolution{}, false
	}
	body := ops[opIndex].Body
	if body.Type != xdr.OperationTypeInvokeHostFunction || body.InvokeHostFunctionOp == nil {
		return Resolution{}, false
	}
	res, ok := r.fromHostFunction(body.InvokeHostFunctionOp.HostFunction)
	if !ok {
		return Resolution{}, false
	}
	res.Auth = authSummaries(r.dec, body.InvokeHostFunctionOp.Auth)
	return res, true
}

func (r *Resolver) fromHostFunction(hf xdr.HostFunction) (Resolution, bool) {
	if hf.Type != xdr.HostFunctionTypeHostFunctionTypeInvokeContract || hf.InvokeContract == nil {
		return Resolution{}, false
	}
	target := r.dec.DecodeAddress(hf.InvokeContract.ContractAddress)
	if target.Kind != scval.KindAddress || target.AddrType != scval.AddressContract {
		return Resolution{}, false
	}
	args := make([]scval.Value, 0, len(hf.InvokeContract.Args))
	for _, a := range hf.InvokeContract.Args {
		args = append(args, r.dec.Decode(a))
	}
	return Resolution{
		ContractID:   target.Text,
		FunctionName: string(hf.InvokeContract.FunctionName),
		Args:         args,
	}, true
}

// decodeParameter interprets one parameter list entry as base64 XDR.
func decodeParameter(dec *scval.Decoder, p horizon.HostFunctionParameter) (scval.Value, bool) {
	var v xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(p.Value, &v); err != nil {
		return scval.Value{}, false
	}
	return dec.Decode(v), true
}

// functionFromParameters recovers the invoked symbol from the conventional
// [address, symbol, args...] parameter layout when present.
func functionFromParameters(dec *scval.Decoder, params []horizon.HostFunctionParameter) string {
	for _, p := range params {
		if p.Type != "Sym" {
			continue
		}
		if v, ok := decodeParameter(dec, p); ok && v.Kind == scval.KindSymbol {
			return v.Text
		}
	}
	return ""
}

func authSummaries(dec *scval.Decoder, entries []xdr.SorobanAuthorizationEntry) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		switch e.Credentials.Type {
		case xdr.SorobanCredentialsTypeSorobanCredentialsSourceAccount:
			out = append(out, "source_account")
		case xdr.SorobanCredentialsTypeSorobanCredentialsAddress:
			if e.Credentials.Address != nil {
				v := dec.DecodeAddress(e.Credentials.Address.Address)
				if v.Kind == scval.KindAddress {
					out = append(out, v.Text)
					continue
				}
			}
			out = append(out, "address")
		default:
			out = append(out, e.Credentials.Type.String())
		}
	}
	return out
}
