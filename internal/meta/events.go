package meta

import (
	"encoding/base64"
	"encoding/hex"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/sorograph/internal/address"
	"github.com/dotandev/sorograph/internal/schema"
	"github.com/dotandev/sorograph/internal/scval"
)

// Synthetic diagnostic markers emitted by the host around each contract
// invocation, plus the resource counter channel. None of these are user
// events and all are filtered before the graph sees the event list.
const (
	topicFnCall      = "fn_call"
	topicFnReturn    = "fn_return"
	topicCoreMetrics = "core_metrics"
)

// walkEvents decodes contract events and mines the diagnostic list for
// cross-contract call edges. Diagnostic noise (call/return markers, metric
// counters) never reaches the surfaced event list.
func (w *Walker) walkEvents(events []xdr.ContractEvent, diags []xdr.DiagnosticEvent) ([]schema.ContractEvent, []schema.ContractCall) {
	out := make([]schema.ContractEvent, 0, len(events))
	for _, ev := range events {
		decoded, ok := w.decodeEvent(ev, true)
		if !ok || isDiagnosticNoise(decoded) {
			continue
		}
		out = append(out, decoded)
	}

	var calls []schema.ContractCall
	for _, dg := range diags {
		decoded, ok := w.decodeEvent(dg.Event, dg.InSuccessfulContractCall)
		if !ok {
			continue
		}
		switch decoded.Type() {
		case topicFnCall:
			if call, ok := w.callEdge(decoded); ok {
				calls = append(calls, call)
			}
		case topicFnReturn, topicCoreMetrics:
			// markers and counters, handled elsewhere
		default:
			// Diagnostic-only copies of contract events are surfaced when
			// the contract event list itself is empty (failed invocations
			// keep their events only in the diagnostic channel).
			if len(out) == 0 && decoded.ContractID != schema.SystemContract && !dg.InSuccessfulContractCall {
				out = append(out, decoded)
			}
		}
	}
	return out, calls
}

func (w *Walker) decodeEvent(ev xdr.ContractEvent, inSuccessful bool) (schema.ContractEvent, bool) {
	if ev.Body.V != 0 || ev.Body.V0 == nil {
		return schema.ContractEvent{}, false
	}
	owner := schema.SystemContract
	if ev.ContractId != nil {
		h := xdr.Hash(*ev.ContractId)
		if enc, err := address.EncodeContract(h[:]); err == nil {
			owner = enc
		}
	}
	topics := make([]scval.Value, 0, len(ev.Body.V0.Topics))
	for _, tp := range ev.Body.V0.Topics {
		topics = append(topics, w.dec.Decode(tp))
	}
	return schema.ContractEvent{
		ContractID:   owner,
		Topics:       topics,
		Data:         w.dec.Decode(ev.Body.V0.Data),
		InSuccessful: inSuccessful,
	}, true
}

func isDiagnosticNoise(ev schema.ContractEvent) bool {
	switch ev.Type() {
	case topicFnCall, topicFnReturn, topicCoreMetrics:
		return true
	}
	return false
}

// callEdge infers a cross-contract call from a fn_call marker. The callee
// is the second topic; the event's owning contract only names the caller
// side, and attributing the call to it would point at the wrong contract.
func (w *Walker) callEdge(ev schema.ContractEvent) (schema.ContractCall, bool) {
	if len(ev.Topics) < 2 {
		return schema.ContractCall{}, false
	}
	callee, ok := calleeFromTopic(ev.Topics[1])
	if !ok {
		return schema.ContractCall{}, false
	}
	call := schema.ContractCall{
		FromContract: ev.ContractID,
		ToContract:   callee,
		Args:         ev.Data,
	}
	if len(ev.Topics) > 2 && ev.Topics[2].Kind == scval.KindSymbol {
		call.Function = ev.Topics[2].Text
	}
	return call, true
}

// calleeFromTopic accepts the two encodings the host has used for the
// callee topic: a proper address value, or a raw 32-byte contract id in
// older meta. The bytes form is only interpreted here, at this known topic
// position, never during generic value decoding.
func calleeFromTopic(topic scval.Value) (string, bool) {
	switch topic.Kind {
	case scval.KindAddress:
		return topic.Text, true
	case scval.KindBytes:
		raw, err := decodeBytesText(topic.Text)
		if err != nil || len(raw) != 32 {
			return "", false
		}
		enc, err := address.EncodeContract(raw)
		if err != nil {
			return "", false
		}
		return enc, true
	}
	return "", false
}

// extractResources reads actual consumption counters and the fee split.
// Counters come from the core_metrics diagnostic channel; the fee split
// sits behind two consecutive extension switches (meta version payload,
// then the soroban meta extension), and an unreachable record leaves the
// fields at zero rather than guessing.
func (w *Walker) extractResources(m xdr.TransactionMeta) schema.ResourceUsage {
	var usage schema.ResourceUsage

	_, diags := operationEvents(m, 0)
	for _, dg := range diags {
		ev, ok := w.decodeEvent(dg.Event, true)
		if !ok || ev.Type() != topicCoreMetrics || len(ev.Topics) < 2 {
			continue
		}
		if ev.Topics[1].Kind != scval.KindSymbol {
			continue
		}
		n := counterValue(ev.Data)
		switch ev.Topics[1].Text {
		case "cpu_insn":
			usage.CPUInstructions = n
		case "mem_byte":
			usage.MemoryBytes = n
		case "ledger_read_byte":
			usage.ReadBytes = n
		case "ledger_write_byte":
			usage.WriteBytes = n
		case "read_entry":
			usage.ReadEntries = uint32(n)
		case "write_entry":
			usage.WriteEntries = uint32(n)
		}
	}

	if ext, ok := sorobanExt(m); ok {
		usage.NonRefundableFee = int64(ext.TotalNonRefundableResourceFeeCharged)
		usage.RefundableFee = int64(ext.TotalRefundableResourceFeeCharged)
		usage.RentFee = int64(ext.RentFeeCharged)
	}
	return usage
}

func sorobanExt(m xdr.TransactionMeta) (*xdr.SorobanTransactionMetaExtV1, bool) {
	var ext xdr.SorobanTransactionMetaExt
	switch m.V {
	case 3:
		if m.V3 == nil || m.V3.SorobanMeta == nil {
			return nil, false
		}
		ext = m.V3.SorobanMeta.Ext
	case 4:
		if m.V4 == nil || m.V4.SorobanMeta == nil {
			return nil, false
		}
		ext = m.V4.SorobanMeta.Ext
	default:
		return nil, false
	}
	if ext.V != 1 || ext.V1 == nil {
		return nil, false
	}
	return ext.V1, true
}

// decodeBytesText reverses the decoder's bytes rendering, whichever of the
// two encodings was configured.
func decodeBytesText(s string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return hex.DecodeString(s)
}

func counterValue(v scval.Value) uint64 {
	if v.Kind != scval.KindUInt {
		return 0
	}
	var n uint64
	for _, c := range v.Text {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + uint64(c-'0')
	}
	return n
}
