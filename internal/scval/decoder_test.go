package scval

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scBool(b bool) xdr.ScVal {
	return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}
}

func scU64(n uint64) xdr.ScVal {
	v := xdr.Uint64(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &v}
}

func scSym(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

func scVec(items ...xdr.ScVal) xdr.ScVal {
	vec := xdr.ScVec(items)
	p := &vec
	return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &p}
}

func scAccountAddress(t *testing.T, raw byte) xdr.ScVal {
	t.Helper()
	var ed xdr.Uint256
	for i := range ed {
		ed[i] = raw
	}
	aid := xdr.AccountId(xdr.PublicKey{
		Type:    xdr.PublicKeyTypePublicKeyTypeEd25519,
		Ed25519: &ed,
	})
	return xdr.ScVal{
		Type:    xdr.ScValTypeScvAddress,
		Address: &xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &aid},
	}
}

func scContractAddress(raw byte) xdr.ScVal {
	var h xdr.Hash
	for i := range h {
		h[i] = raw
	}
	cid := xdr.ContractId(h)
	return xdr.ScVal{
		Type:    xdr.ScValTypeScvAddress,
		Address: &xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &cid},
	}
}

func TestDecodeScalars(t *testing.T) {
	d := &Decoder{}

	v := d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvVoid})
	assert.Equal(t, KindNull, v.Kind)

	v = d.Decode(scBool(true))
	assert.Equal(t, KindBool, v.Kind)
	assert.Equal(t, "true", v.Text)

	i32 := xdr.Int32(-7)
	v = d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvI32, I32: &i32})
	assert.Equal(t, "-7", v.Text)

	// 64-bit values must come out as decimal strings, exactly.
	v = d.Decode(scU64(18446744073709551615))
	assert.Equal(t, KindUInt, v.Kind)
	assert.Equal(t, "18446744073709551615", v.Text)
}

func TestDecodeWideIntegersFullPrecision(t *testing.T) {
	d := &Decoder{}

	// Hi word set: low-word-only decoding would report 5 here.
	u128 := xdr.UInt128Parts{Hi: 1, Lo: 5}
	v := d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvU128, U128: &u128})
	assert.Equal(t, KindBigUInt, v.Kind)
	assert.Equal(t, "18446744073709551621", v.Text)

	i128 := xdr.Int128Parts{Hi: -1, Lo: 0}
	v = d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &i128})
	assert.Equal(t, KindBigInt, v.Kind)
	assert.Equal(t, "-18446744073709551616", v.Text)

	u256 := xdr.UInt256Parts{HiHi: 1}
	v = d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvU256, U256: &u256})
	// 2^192
	assert.Equal(t, "6277101735386680763835789423207666416102355444464034512896", v.Text)
}

func TestDecodeBytesNeverBecomesAddress(t *testing.T) {
	d := &Decoder{}
	raw := xdr.ScBytes(bytes.Repeat([]byte{0xaa}, 32))
	v := d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &raw})
	assert.Equal(t, KindBytes, v.Kind)
	assert.NotEqual(t, KindAddress, v.Kind)

	hexed := d
	hexed.BytesAsHex = true
	v = hexed.Decode(xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &raw})
	assert.Equal(t, strings.Repeat("aa", 32), v.Text)
}

func TestDecodeAddressVariants(t *testing.T) {
	d := &Decoder{}

	v := d.Decode(scAccountAddress(t, 0x01))
	require.Equal(t, KindAddress, v.Kind)
	assert.Equal(t, AddressAccount, v.AddrType)
	assert.Equal(t, byte('G'), v.Text[0])

	v = d.Decode(scContractAddress(0x02))
	require.Equal(t, KindAddress, v.Kind)
	assert.Equal(t, AddressContract, v.AddrType)
	assert.Equal(t, byte('C'), v.Text[0])
}

func TestDecodeSequencePreservesOrder(t *testing.T) {
	d := &Decoder{}
	v := d.Decode(scVec(scSym("a"), scSym("b"), scSym("c")))
	require.Equal(t, KindSequence, v.Kind)
	require.Len(t, v.Items, 3)
	assert.Equal(t, "a", v.Items[0].Text)
	assert.Equal(t, "c", v.Items[2].Text)
}

func TestDecodeMapTruncation(t *testing.T) {
	d := &Decoder{MapDisplayLimit: 3}
	m := make(xdr.ScMap, 0, 5)
	for i := 0; i < 5; i++ {
		m = append(m, xdr.ScMapEntry{Key: scU64(uint64(i)), Val: scBool(true)})
	}
	p := &m
	v := d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &p})
	require.Equal(t, KindMapping, v.Kind)
	require.Len(t, v.Entries, 4)
	last := v.Entries[3]
	assert.Equal(t, KindSentinel, last.Key.Kind)
	assert.Equal(t, "+2 more", last.Key.Reason)
}

func TestDecodeLedgerKeyMarkers(t *testing.T) {
	d := &Decoder{}
	v := d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyContractInstance})
	assert.Equal(t, "instance", v.Text)

	nk := xdr.ScNonceKey{Nonce: 42}
	v = d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyNonce, NonceKey: &nk})
	assert.Equal(t, "nonce", v.Text)
}

func TestDecodeTimepoint(t *testing.T) {
	d := &Decoder{}
	tp := xdr.TimePoint(1700000000)
	v := d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvTimepoint, Timepoint: &tp})
	assert.Equal(t, "2023-11-14T22:13:20Z", v.Text)

	tp = xdr.TimePoint(99999999999999)
	v = d.Decode(xdr.ScVal{Type: xdr.ScValTypeScvTimepoint, Timepoint: &tp})
	assert.Equal(t, "Timepoint(99999999999999)", v.Text)
}

// Decode is total: malformed and unknown discriminants degrade to
// sentinels, never panics or error returns.
func TestDecodeTotality(t *testing.T) {
	d := &Decoder{}
	malformed := []xdr.ScVal{
		{Type: xdr.ScValTypeScvBool},     // nil payload
		{Type: xdr.ScValTypeScvU128},     // nil payload
		{Type: xdr.ScValTypeScvAddress},  // nil payload
		{Type: xdr.ScValType(250)},       // unknown discriminant
		{Type: xdr.ScValTypeScvVec},      // nil vec
	}
	for _, in := range malformed {
		assert.NotPanics(t, func() {
			v := d.Decode(in)
			if in.Type == xdr.ScValTypeScvVec {
				assert.Equal(t, KindSequence, v.Kind)
			} else {
				assert.Equal(t, KindSentinel, v.Kind)
			}
		})
	}
}

func TestValueString(t *testing.T) {
	d := &Decoder{}
	v := d.Decode(scVec(scSym("transfer"), scU64(10)))
	assert.Equal(t, "[transfer, 10]", v.String())
	assert.Equal(t, "<boom>", Sentinel("boom").String())
}
