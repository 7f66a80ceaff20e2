package scval

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stellar/go/xdr"

	"github.com/dotandev/sorograph/internal/address"
)

// Timepoints past this are treated as garbage rather than dates (2100-01-01).
const maxPlausibleUnixSeconds = 4102444800

const defaultMapDisplayLimit = 10

// Decoder turns wire ScVals into native Values. Decode is total: it never
// returns an error and never panics past its own boundary; undecodable
// input degrades to a KindSentinel value carrying a reason.
type Decoder struct {
	// BytesAsHex switches the ScvBytes rendering from base64 to hex.
	BytesAsHex bool
	// MapDisplayLimit bounds how many mapping entries are decoded before
	// a "+N more" sentinel entry replaces the tail. Zero means default.
	MapDisplayLimit int
}

func (d *Decoder) mapLimit() int {
	if d.MapDisplayLimit > 0 {
		return d.MapDisplayLimit
	}
	return defaultMapDisplayLimit
}

// Decode converts one ScVal. See Decoder for the totality contract.
func (d *Decoder) Decode(v xdr.ScVal) (out Value) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"package": "scval",
				"type":    v.Type.String(),
			}).Warnf("recovered decoding wire value: %v", r)
			out = Sentinel("decode error")
		}
	}()
	return d.decode(v)
}

func (d *Decoder) decode(v xdr.ScVal) Value {
	switch v.Type {
	case xdr.ScValTypeScvVoid:
		return Value{Kind: KindNull}

	case xdr.ScValTypeScvBool:
		if v.B == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindBool, Text: strconv.FormatBool(*v.B)}

	case xdr.ScValTypeScvU32:
		if v.U32 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindUInt, Text: strconv.FormatUint(uint64(*v.U32), 10)}

	case xdr.ScValTypeScvI32:
		if v.I32 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindInt, Text: strconv.FormatInt(int64(*v.I32), 10)}

	case xdr.ScValTypeScvU64:
		if v.U64 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindUInt, Text: strconv.FormatUint(uint64(*v.U64), 10)}

	case xdr.ScValTypeScvI64:
		if v.I64 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindInt, Text: strconv.FormatInt(int64(*v.I64), 10)}

	case xdr.ScValTypeScvTimepoint:
		if v.Timepoint == nil {
			return Sentinel("decode error")
		}
		return decodeTimepoint(uint64(*v.Timepoint))

	case xdr.ScValTypeScvDuration:
		if v.Duration == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindUInt, Text: strconv.FormatUint(uint64(*v.Duration), 10)}

	case xdr.ScValTypeScvU128:
		if v.U128 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindBigUInt, Text: u128String(*v.U128)}

	case xdr.ScValTypeScvI128:
		if v.I128 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindBigInt, Text: i128String(*v.I128)}

	case xdr.ScValTypeScvU256:
		if v.U256 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindBigUInt, Text: u256String(*v.U256)}

	case xdr.ScValTypeScvI256:
		if v.I256 == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindBigInt, Text: i256String(*v.I256)}

	case xdr.ScValTypeScvBytes:
		// Raw bytes stay raw bytes. Address recovery is only ever
		// attempted on the ScvAddress discriminant; 32-byte payloads
		// here must not be mistaken for keys.
		if v.Bytes == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindBytes, Text: d.renderBytes(*v.Bytes)}

	case xdr.ScValTypeScvString:
		if v.Str == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindString, Text: string(*v.Str)}

	case xdr.ScValTypeScvSymbol:
		if v.Sym == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindSymbol, Text: string(*v.Sym)}

	case xdr.ScValTypeScvVec:
		if v.Vec == nil || *v.Vec == nil {
			return Value{Kind: KindSequence}
		}
		items := make([]Value, 0, len(**v.Vec))
		for _, el := range **v.Vec {
			items = append(items, d.decode(el))
		}
		return Value{Kind: KindSequence, Items: items}

	case xdr.ScValTypeScvMap:
		if v.Map == nil || *v.Map == nil {
			return Value{Kind: KindMapping}
		}
		return d.decodeMap(**v.Map)

	case xdr.ScValTypeScvAddress:
		if v.Address == nil {
			return Sentinel("decode error")
		}
		return d.DecodeAddress(*v.Address)

	case xdr.ScValTypeScvContractInstance:
		if v.Instance == nil {
			return Sentinel("decode error")
		}
		return d.decodeInstance(*v.Instance)

	case xdr.ScValTypeScvLedgerKeyContractInstance:
		return Value{Kind: KindSymbol, Text: "instance"}

	case xdr.ScValTypeScvLedgerKeyNonce:
		return Value{Kind: KindSymbol, Text: "nonce"}

	case xdr.ScValTypeScvError:
		if v.Error == nil {
			return Sentinel("decode error")
		}
		return Sentinel(scErrorString(*v.Error))

	default:
		return Sentinel(v.Type.String())
	}
}

func (d *Decoder) decodeMap(m xdr.ScMap) Value {
	limit := d.mapLimit()
	entries := make([]MapEntry, 0, min(len(m), limit)+1)
	for i, e := range m {
		if i == limit {
			entries = append(entries, MapEntry{
				Key: Sentinel(fmt.Sprintf("+%d more", len(m)-limit)),
				Val: Value{Kind: KindNull},
			})
			break
		}
		entries = append(entries, MapEntry{Key: d.decode(e.Key), Val: d.decode(e.Val)})
	}
	return Value{Kind: KindMapping, Entries: entries}
}

// DecodeAddress branches on the two strkey subkinds. Later-protocol address
// variants (muxed accounts, claimable balances) surface as sentinels until
// the UI grows a rendering for them.
func (d *Decoder) DecodeAddress(sa xdr.ScAddress) Value {
	switch sa.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if sa.AccountId == nil {
			return Sentinel("decode error")
		}
		ed, ok := sa.AccountId.GetEd25519()
		if !ok {
			return Sentinel("decode error")
		}
		enc, err := address.EncodeAccount(ed[:])
		if err != nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindAddress, AddrType: AddressAccount, Text: enc}

	case xdr.ScAddressTypeScAddressTypeContract:
		if sa.ContractId == nil {
			return Sentinel("decode error")
		}
		h := xdr.Hash(*sa.ContractId)
		enc, err := address.EncodeContract(h[:])
		if err != nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindAddress, AddrType: AddressContract, Text: enc}

	default:
		return Sentinel(sa.Type.String())
	}
}

func (d *Decoder) decodeInstance(inst xdr.ScContractInstance) Value {
	entries := []MapEntry{{
		Key: Value{Kind: KindSymbol, Text: "executable"},
		Val: executableValue(inst.Executable),
	}}
	if inst.Storage != nil {
		stor := d.decodeMap(*inst.Storage)
		entries = append(entries, MapEntry{
			Key: Value{Kind: KindSymbol, Text: "storage"},
			Val: stor,
		})
	}
	return Value{Kind: KindMapping, Entries: entries}
}

func executableValue(ex xdr.ContractExecutable) Value {
	switch ex.Type {
	case xdr.ContractExecutableTypeContractExecutableWasm:
		if ex.WasmHash == nil {
			return Sentinel("decode error")
		}
		return Value{Kind: KindBytes, Text: hex.EncodeToString(ex.WasmHash[:])}
	case xdr.ContractExecutableTypeContractExecutableStellarAsset:
		return Value{Kind: KindSymbol, Text: "stellar_asset"}
	default:
		return Sentinel(ex.Type.String())
	}
}

func (d *Decoder) renderBytes(b []byte) string {
	if d.BytesAsHex {
		return hex.EncodeToString(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func decodeTimepoint(n uint64) Value {
	if n > 0 && n < maxPlausibleUnixSeconds {
		t := time.Unix(int64(n), 0).UTC()
		return Value{Kind: KindString, Text: t.Format(time.RFC3339)}
	}
	return Value{Kind: KindString, Text: fmt.Sprintf("Timepoint(%d)", n)}
}

func scErrorString(e xdr.ScError) string {
	switch e.Type {
	case xdr.ScErrorTypeSceContract:
		if e.ContractCode != nil {
			return fmt.Sprintf("contract error %d", uint32(*e.ContractCode))
		}
	default:
		if e.Code != nil {
			return fmt.Sprintf("%s: %s", e.Type.String(), e.Code.String())
		}
	}
	return e.Type.String()
}

// 128- and 256-bit integers are reconstructed in full (hi*2^64 + lo and the
// 256-bit analogue); surfacing only the low word silently corrupts any value
// past 2^64.

func u128String(p xdr.UInt128Parts) string {
	r := new(big.Int).SetUint64(uint64(p.Hi))
	r.Lsh(r, 64)
	r.Add(r, new(big.Int).SetUint64(uint64(p.Lo)))
	return r.String()
}

func i128String(p xdr.Int128Parts) string {
	r := big.NewInt(int64(p.Hi))
	r.Lsh(r, 64)
	r.Add(r, new(big.Int).SetUint64(uint64(p.Lo)))
	return r.String()
}

func u256String(p xdr.UInt256Parts) string {
	r := new(big.Int).SetUint64(uint64(p.HiHi))
	for _, w := range []uint64{uint64(p.HiLo), uint64(p.LoHi), uint64(p.LoLo)} {
		r.Lsh(r, 64)
		r.Add(r, new(big.Int).SetUint64(w))
	}
	return r.String()
}

func i256String(p xdr.Int256Parts) string {
	r := big.NewInt(int64(p.HiHi))
	for _, w := range []uint64{uint64(p.HiLo), uint64(p.LoHi), uint64(p.LoLo)} {
		r.Lsh(r, 64)
		r.Add(r, new(big.Int).SetUint64(w))
	}
	return r.String()
}
