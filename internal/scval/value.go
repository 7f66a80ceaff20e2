package scval

import "strings"

// Kind is the closed set of native value shapes the decoder can produce.
// Every ScVal discriminant maps to exactly one Kind; anything the decoder
// cannot make sense of becomes KindSentinel with a reason.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindUInt
	KindInt
	KindBigUInt
	KindBigInt
	KindBytes
	KindString
	KindSymbol
	KindSequence
	KindMapping
	KindAddress
	KindSentinel
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindUInt:     "uint",
	KindInt:      "int",
	KindBigUInt:  "biguint",
	KindBigInt:   "bigint",
	KindBytes:    "bytes",
	KindString:   "string",
	KindSymbol:   "symbol",
	KindSequence: "sequence",
	KindMapping:  "mapping",
	KindAddress:  "address",
	KindSentinel: "sentinel",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "sentinel"
}

// AddressType distinguishes the two strkey variants inside KindAddress.
type AddressType int

const (
	AddressAccount AddressType = iota
	AddressContract
)

// Value is the decoded, presentation-ready form of a wire ScVal.
// Scalars carry their rendering in Text (64-bit and wider integers are
// decimal strings so 53-bit-safe consumers never lose precision).
type Value struct {
	Kind     Kind        `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Items    []Value     `json:"items,omitempty"`
	Entries  []MapEntry  `json:"entries,omitempty"`
	AddrType AddressType `json:"addrType,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

type MapEntry struct {
	Key Value `json:"key"`
	Val Value `json:"val"`
}

// Sentinel builds the degraded-decode value. Reason is surfaced verbatim.
func Sentinel(reason string) Value {
	return Value{Kind: KindSentinel, Reason: reason}
}

// String renders a compact single-line form for logs and panels.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "void"
	case KindSentinel:
		return "<" + v.Reason + ">"
	case KindSequence:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = it.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMapping:
		parts := make([]string, len(v.Entries))
		for i, e := range v.Entries {
			parts[i] = e.Key.String() + ": " + e.Val.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.Text
	}
}
