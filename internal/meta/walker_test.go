package meta

import (
	"testing"

	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/sorograph/internal/address"
	"github.com/dotandev/sorograph/internal/schema"
	"github.com/dotandev/sorograph/internal/scval"
)

func scSym(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

func scU64(n uint64) xdr.ScVal {
	v := xdr.Uint64(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &v}
}

func contractHash(fill byte) xdr.Hash {
	var h xdr.Hash
	for i := range h {
		h[i] = fill
	}
	return h
}

func contractAddr(fill byte) xdr.ScAddress {
	cid := xdr.ContractId(contractHash(fill))
	return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &cid}
}

func contractStrkey(t *testing.T, fill byte) string {
	t.Helper()
	h := contractHash(fill)
	s, err := address.EncodeContract(h[:])
	require.NoError(t, err)
	return s
}

func scAddrVal(fill byte) xdr.ScVal {
	a := contractAddr(fill)
	return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &a}
}

func dataEntry(owner byte, key, val xdr.ScVal, d xdr.ContractDataDurability) xdr.LedgerEntry {
	return xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeContractData,
			ContractData: &xdr.ContractDataEntry{
				Contract:   contractAddr(owner),
				Key:        key,
				Durability: d,
				Val:        val,
			},
		},
	}
}

func contractEvent(owner *xdr.ContractId, topics []xdr.ScVal, data xdr.ScVal) xdr.ContractEvent {
	return xdr.ContractEvent{
		ContractId: owner,
		Type:       xdr.ContractEventTypeContract,
		Body: xdr.ContractEventBody{
			V:  0,
			V0: &xdr.ContractEventV0{Topics: xdr.ScVec(topics), Data: data},
		},
	}
}

func metaV3(ops []xdr.OperationMeta, soroban *xdr.SorobanTransactionMeta) xdr.TransactionMeta {
	return xdr.TransactionMeta{
		V: 3,
		V3: &xdr.TransactionMetaV3{
			Operations:  ops,
			SorobanMeta: soroban,
		},
	}
}

func TestWalkChangesUpdateCapturesPriorValue(t *testing.T) {
	w := NewWalker()
	old := dataEntry(0x11, scSym("counter"), scU64(1), xdr.ContractDataDurabilityPersistent)
	new_ := dataEntry(0x11, scSym("counter"), scU64(2), xdr.ContractDataDurabilityPersistent)

	changes := xdr.LedgerEntryChanges{
		{Type: xdr.LedgerEntryChangeTypeLedgerEntryState, State: &old},
		{Type: xdr.LedgerEntryChangeTypeLedgerEntryUpdated, Updated: &new_},
	}
	m := metaV3([]xdr.OperationMeta{{Changes: changes}}, nil)

	ex := w.ExtractForOperation(m, 0)
	require.Len(t, ex.StateChanges, 1)
	sc := ex.StateChanges[0]
	assert.Equal(t, schema.StateChangeUpdated, sc.Kind)
	assert.Equal(t, schema.EntryContractData, sc.Entry)
	assert.Equal(t, contractStrkey(t, 0x11), sc.ContractID)
	assert.Equal(t, "counter", sc.Key.Text)
	assert.Equal(t, "2", sc.Value.Text)
	require.NotNil(t, sc.OldValue)
	assert.Equal(t, "1", sc.OldValue.Text)
}

func TestWalkChangesDurabilityClasses(t *testing.T) {
	w := NewWalker()
	temp := dataEntry(0x22, scSym("scratch"), scU64(1), xdr.ContractDataDurabilityTemporary)
	instKey := xdr.ScVal{Type: xdr.ScValTypeScvLedgerKeyContractInstance}
	inst := dataEntry(0x22, instKey, scU64(0), xdr.ContractDataDurabilityPersistent)

	changes := xdr.LedgerEntryChanges{
		{Type: xdr.LedgerEntryChangeTypeLedgerEntryCreated, Created: &temp},
		{Type: xdr.LedgerEntryChangeTypeLedgerEntryCreated, Created: &inst},
	}
	m := metaV3([]xdr.OperationMeta{{Changes: changes}}, nil)

	ex := w.ExtractForOperation(m, 0)
	require.Len(t, ex.StateChanges, 2)
	assert.Equal(t, schema.DurabilityTemporary, ex.StateChanges[0].Durability)
	assert.Equal(t, schema.DurabilityInstance, ex.StateChanges[1].Durability)
	// The instance marker key decodes to the fixed literal, not structure.
	assert.Equal(t, "instance", ex.StateChanges[1].Key.Text)
}

func TestWalkChangesContractCodeHasNoOwner(t *testing.T) {
	w := NewWalker()
	code := xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type:         xdr.LedgerEntryTypeContractCode,
			ContractCode: &xdr.ContractCodeEntry{Hash: contractHash(0x33)},
		},
	}
	changes := xdr.LedgerEntryChanges{
		{Type: xdr.LedgerEntryChangeTypeLedgerEntryCreated, Created: &code},
	}
	m := metaV3([]xdr.OperationMeta{{Changes: changes}}, nil)

	ex := w.ExtractForOperation(m, 0)
	require.Len(t, ex.StateChanges, 1)
	sc := ex.StateChanges[0]
	assert.Equal(t, schema.EntryContractCode, sc.Entry)
	assert.Empty(t, sc.ContractID)
	assert.NotEmpty(t, sc.CodeHash)
}

func TestWalkChangesTTLExtension(t *testing.T) {
	w := NewWalker()
	ttl := xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeTtl,
			Ttl: &xdr.TtlEntry{
				KeyHash:            contractHash(0x44),
				LiveUntilLedgerSeq: 987654,
			},
		},
	}
	changes := xdr.LedgerEntryChanges{
		{Type: xdr.LedgerEntryChangeTypeLedgerEntryUpdated, Updated: &ttl},
	}
	m := metaV3([]xdr.OperationMeta{{Changes: changes}}, nil)

	ex := w.ExtractForOperation(m, 0)
	assert.Empty(t, ex.StateChanges)
	require.Len(t, ex.TTLExtensions, 1)
	assert.Equal(t, uint32(987654), ex.TTLExtensions[0].LiveUntilLedger)
}

func TestWalkEventsFiltersDiagnosticNoise(t *testing.T) {
	w := NewWalker()
	owner := xdr.ContractId(contractHash(0x55))

	user := contractEvent(&owner, []xdr.ScVal{scSym("transfer"), scU64(1)}, scU64(100))
	noise := contractEvent(&owner, []xdr.ScVal{scSym("fn_return"), scSym("transfer")}, scU64(0))

	m := metaV3(
		[]xdr.OperationMeta{{}},
		&xdr.SorobanTransactionMeta{Events: []xdr.ContractEvent{user, noise}},
	)
	ex := w.ExtractForOperation(m, 0)
	require.Len(t, ex.Events, 1)
	assert.Equal(t, "transfer", ex.Events[0].Type())
	assert.Equal(t, contractStrkey(t, 0x55), ex.Events[0].ContractID)
}

func TestCallEdgeCalleeIsSecondTopic(t *testing.T) {
	w := NewWalker()
	caller := xdr.ContractId(contractHash(0x66))

	// fn_call is emitted in the caller's context; topic[1] names the callee.
	fnCall := contractEvent(&caller,
		[]xdr.ScVal{scSym("fn_call"), scAddrVal(0x77), scSym("do_thing")},
		scU64(9),
	)
	m := metaV3(
		[]xdr.OperationMeta{{}},
		&xdr.SorobanTransactionMeta{
			DiagnosticEvents: []xdr.DiagnosticEvent{{InSuccessfulContractCall: true, Event: fnCall}},
		},
	)
	ex := w.ExtractForOperation(m, 0)
	require.Len(t, ex.ContractCalls, 1)
	call := ex.ContractCalls[0]
	assert.Equal(t, contractStrkey(t, 0x66), call.FromContract)
	assert.Equal(t, contractStrkey(t, 0x77), call.ToContract)
	assert.NotEqual(t, call.FromContract, call.ToContract)
	assert.Equal(t, "do_thing", call.Function)
}

func TestExtractResourcesFromCoreMetrics(t *testing.T) {
	w := NewWalker()
	metric := func(name string, n uint64) xdr.DiagnosticEvent {
		return xdr.DiagnosticEvent{
			InSuccessfulContractCall: true,
			Event: contractEvent(nil,
				[]xdr.ScVal{scSym("core_metrics"), scSym(name)}, scU64(n)),
		}
	}
	soroban := &xdr.SorobanTransactionMeta{
		Ext: xdr.SorobanTransactionMetaExt{
			V: 1,
			V1: &xdr.SorobanTransactionMetaExtV1{
				TotalNonRefundableResourceFeeCharged: 1000,
				TotalRefundableResourceFeeCharged:    200,
				RentFeeCharged:                       30,
			},
		},
		DiagnosticEvents: []xdr.DiagnosticEvent{
			metric("cpu_insn", 123456),
			metric("mem_byte", 7890),
			metric("ledger_read_byte", 400),
			metric("ledger_write_byte", 200),
			metric("read_entry", 3),
			metric("write_entry", 2),
		},
	}
	m := metaV3([]xdr.OperationMeta{{}}, soroban)

	ex := w.ExtractForOperation(m, 0)
	assert.Equal(t, uint64(123456), ex.Resources.CPUInstructions)
	assert.Equal(t, uint64(7890), ex.Resources.MemoryBytes)
	assert.Equal(t, uint64(400), ex.Resources.ReadBytes)
	assert.Equal(t, uint64(200), ex.Resources.WriteBytes)
	assert.Equal(t, uint32(3), ex.Resources.ReadEntries)
	assert.Equal(t, uint32(2), ex.Resources.WriteEntries)
	assert.Equal(t, int64(1000), ex.Resources.NonRefundableFee)
	assert.Equal(t, int64(30), ex.Resources.RentFee)
}

func TestResourcesUnreachableStaysZero(t *testing.T) {
	w := NewWalker()
	// Soroban meta present but extension switch is 0: no fee record.
	m := metaV3([]xdr.OperationMeta{{}}, &xdr.SorobanTransactionMeta{})
	ex := w.ExtractForOperation(m, 0)
	assert.True(t, ex.Resources.Empty())
}

func TestReturnValue(t *testing.T) {
	w := NewWalker()
	m := metaV3([]xdr.OperationMeta{{}}, &xdr.SorobanTransactionMeta{ReturnValue: scU64(42)})
	ex := w.ExtractForOperation(m, 0)
	require.NotNil(t, ex.ReturnValue)
	assert.Equal(t, "42", ex.ReturnValue.Text)
}

func TestMetaV4AccessorPath(t *testing.T) {
	w := NewWalker()
	owner := xdr.ContractId(contractHash(0x88))
	user := contractEvent(&owner, []xdr.ScVal{scSym("minted")}, scU64(1))
	entry := dataEntry(0x88, scSym("total"), scU64(10), xdr.ContractDataDurabilityPersistent)

	rv := scU64(5)
	m := xdr.TransactionMeta{
		V: 4,
		V4: &xdr.TransactionMetaV4{
			Operations: []xdr.OperationMetaV2{{
				Changes: xdr.LedgerEntryChanges{
					{Type: xdr.LedgerEntryChangeTypeLedgerEntryCreated, Created: &entry},
				},
				Events: []xdr.ContractEvent{user},
			}},
			SorobanMeta: &xdr.SorobanTransactionMetaV2{ReturnValue: &rv},
		},
	}
	ex := w.ExtractForOperation(m, 0)
	require.Len(t, ex.StateChanges, 1)
	require.Len(t, ex.Events, 1)
	assert.Equal(t, "minted", ex.Events[0].Type())
	require.NotNil(t, ex.ReturnValue)
	assert.Equal(t, "5", ex.ReturnValue.Text)
}

func TestUnsupportedMetaVersionYieldsEmpty(t *testing.T) {
	w := NewWalker()
	m := xdr.TransactionMeta{V: 1}
	ex := w.ExtractForOperation(m, 0)
	assert.Empty(t, ex.StateChanges)
	assert.Empty(t, ex.Events)
	assert.True(t, ex.Resources.Empty())
	assert.Nil(t, ex.ReturnValue)
}

func TestOutOfRangeOperationIndexYieldsEmpty(t *testing.T) {
	w := NewWalker()
	m := metaV3([]xdr.OperationMeta{{}}, nil)
	ex := w.ExtractForOperation(m, 7)
	assert.Empty(t, ex.StateChanges)
}

func TestStepIsolation(t *testing.T) {
	w := NewWalker()
	ran := false
	assert.NotPanics(t, func() {
		w.step("exploding", func() { panic("boom") })
		w.step("fine", func() { ran = true })
	})
	assert.True(t, ran)
}

func TestCalleeFromTopicRejectsShortBytes(t *testing.T) {
	_, ok := calleeFromTopic(scval.Value{Kind: scval.KindBytes, Text: "AAEC"})
	assert.False(t, ok)
	_, ok = calleeFromTopic(scval.Value{Kind: scval.KindSymbol, Text: "nope"})
	assert.False(t, ok)
}
