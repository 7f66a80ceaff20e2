package meta

import (
	"encoding/hex"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/stellar/go/xdr"

	"github.com/dotandev/sorograph/internal/schema"
	"github.com/dotandev/sorograph/internal/scval"
)

// Extraction is everything the walker recovers for one operation from the
// transaction's execution metadata blob.
type Extraction struct {
	Events        []schema.ContractEvent
	StateChanges  []schema.StateChange
	ContractCalls []schema.ContractCall
	TTLExtensions []schema.TTLExtension
	Resources     schema.ResourceUsage
	ReturnValue   *scval.Value
}

// Walker traverses TransactionMeta envelopes. The two most recent meta
// versions (V3 and V4) are supported; they carry the same information but
// reach it through different accessor paths. Every extraction step fails
// independently: a panic in event decoding costs the events, not the state
// changes extracted before it.
type Walker struct {
	dec *scval.Decoder
}

func NewWalker() *Walker {
	return &Walker{dec: &scval.Decoder{}}
}

func (w *Walker) log() *log.Entry {
	return log.WithField("package", "meta")
}

// Parse decodes a base64 TransactionMeta blob.
func Parse(metaB64 string) (xdr.TransactionMeta, error) {
	var m xdr.TransactionMeta
	if err := xdr.SafeUnmarshalBase64(metaB64, &m); err != nil {
		return xdr.TransactionMeta{}, errors.Wrap(err, "unmarshaling transaction meta")
	}
	return m, nil
}

// ExtractForOperation pulls the state changes, events, inferred calls, TTL
// bumps and resource counters attributed to the operation at opIndex.
func (w *Walker) ExtractForOperation(m xdr.TransactionMeta, opIndex int) Extraction {
	var ex Extraction

	w.step("state changes", func() {
		changes, ok := operationChanges(m, opIndex)
		if !ok {
			return
		}
		ex.StateChanges, ex.TTLExtensions = w.walkChanges(changes)
	})

	w.step("events", func() {
		events, diags := operationEvents(m, opIndex)
		ex.Events, ex.ContractCalls = w.walkEvents(events, diags)
	})

	w.step("resources", func() {
		ex.Resources = w.extractResources(m)
	})

	w.step("return value", func() {
		if rv, ok := returnValue(m); ok {
			v := w.dec.Decode(rv)
			ex.ReturnValue = &v
		}
	})

	return ex
}

// step runs one extraction stage with local panic containment so a bad
// envelope degrades that stage only.
func (w *Walker) step(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log().Warnf("skipping %s extraction: %v", name, r)
		}
	}()
	fn()
}

// operationChanges locates the per-operation change list for the supported
// meta versions.
func operationChanges(m xdr.TransactionMeta, i int) (xdr.LedgerEntryChanges, bool) {
	switch m.V {
	case 3:
		if m.V3 != nil && i >= 0 && i < len(m.V3.Operations) {
			return m.V3.Operations[i].Changes, true
		}
	case 4:
		if m.V4 != nil && i >= 0 && i < len(m.V4.Operations) {
			return m.V4.Operations[i].Changes, true
		}
	}
	return nil, false
}

// operationEvents returns the contract events and the diagnostic companion
// list for the operation. V3 keeps both at the transaction level inside
// SorobanMeta; V4 moved contract events onto the operation itself.
func operationEvents(m xdr.TransactionMeta, i int) ([]xdr.ContractEvent, []xdr.DiagnosticEvent) {
	switch m.V {
	case 3:
		if m.V3 != nil && m.V3.SorobanMeta != nil {
			return m.V3.SorobanMeta.Events, m.V3.SorobanMeta.DiagnosticEvents
		}
	case 4:
		if m.V4 != nil {
			var events []xdr.ContractEvent
			if i >= 0 && i < len(m.V4.Operations) {
				events = m.V4.Operations[i].Events
			}
			return events, m.V4.DiagnosticEvents
		}
	}
	return nil, nil
}

func returnValue(m xdr.TransactionMeta) (xdr.ScVal, bool) {
	switch m.V {
	case 3:
		if m.V3 != nil && m.V3.SorobanMeta != nil {
			return m.V3.SorobanMeta.ReturnValue, true
		}
	case 4:
		if m.V4 != nil && m.V4.SorobanMeta != nil && m.V4.SorobanMeta.ReturnValue != nil {
			return *m.V4.SorobanMeta.ReturnValue, true
		}
	}
	return xdr.ScVal{}, false
}

// walkChanges classifies the 4-way change union. A STATE change carries the
// pre-image of the UPDATED change that follows it for the same entry, which
// is how the prior value of an update is recovered.
func (w *Walker) walkChanges(changes xdr.LedgerEntryChanges) ([]schema.StateChange, []schema.TTLExtension) {
	var out []schema.StateChange
	var ttls []schema.TTLExtension
	pending := map[string]scval.Value{}

	for _, ch := range changes {
		switch ch.Type {
		case xdr.LedgerEntryChangeTypeLedgerEntryState:
			if ch.State == nil {
				continue
			}
			if sc, ok := w.entryChange(schema.StateChangeState, ch.State); ok {
				pending[changeKey(sc)] = sc.Value
			}

		case xdr.LedgerEntryChangeTypeLedgerEntryCreated:
			if ch.Created == nil {
				continue
			}
			if ttl, ok := ttlFromEntry(ch.Created); ok {
				ttls = append(ttls, ttl)
				continue
			}
			if sc, ok := w.entryChange(schema.StateChangeCreated, ch.Created); ok {
				out = append(out, sc)
			}

		case xdr.LedgerEntryChangeTypeLedgerEntryUpdated:
			if ch.Updated == nil {
				continue
			}
			if ttl, ok := ttlFromEntry(ch.Updated); ok {
				ttls = append(ttls, ttl)
				continue
			}
			if sc, ok := w.entryChange(schema.StateChangeUpdated, ch.Updated); ok {
				if old, found := pending[changeKey(sc)]; found {
					sc.OldValue = &old
				}
				out = append(out, sc)
			}

		case xdr.LedgerEntryChangeTypeLedgerEntryRemoved:
			if ch.Removed == nil {
				continue
			}
			if sc, ok := w.removedChange(*ch.Removed); ok {
				out = append(out, sc)
			}
		}
	}
	return out, ttls
}

func changeKey(sc schema.StateChange) string {
	return sc.ContractID + "|" + sc.CodeHash + "|" + sc.Key.String()
}

// entryChange maps one ledger entry into a StateChange, or reports false
// for entry kinds the trace view does not surface (classic accounts,
// trustlines and friends come through the effects list instead).
func (w *Walker) entryChange(kind schema.StateChangeKind, entry *xdr.LedgerEntry) (schema.StateChange, bool) {
	switch entry.Data.Type {
	case xdr.LedgerEntryTypeContractData:
		cd := entry.Data.ContractData
		if cd == nil {
			return schema.StateChange{}, false
		}
		sc := schema.StateChange{
			Kind:       kind,
			Entry:      schema.EntryContractData,
			ContractID: w.contractOwner(cd.Contract),
			Durability: durability(cd.Key, cd.Durability),
			Key:        w.decodeKey(cd.Key),
			Value:      w.dec.Decode(cd.Val),
		}
		return sc, true

	case xdr.LedgerEntryTypeContractCode:
		cc := entry.Data.ContractCode
		if cc == nil {
			return schema.StateChange{}, false
		}
		// Code entries are identified by hash alone; no owning contract.
		return schema.StateChange{
			Kind:     kind,
			Entry:    schema.EntryContractCode,
			CodeHash: hex.EncodeToString(cc.Hash[:]),
			Key:      scval.Value{Kind: scval.KindSymbol, Text: "wasm"},
			Value:    scval.Value{Kind: scval.KindBytes, Text: hex.EncodeToString(cc.Hash[:])},
		}, true
	}
	return schema.StateChange{}, false
}

func (w *Walker) removedChange(lk xdr.LedgerKey) (schema.StateChange, bool) {
	switch lk.Type {
	case xdr.LedgerEntryTypeContractData:
		cd := lk.ContractData
		if cd == nil {
			return schema.StateChange{}, false
		}
		return schema.StateChange{
			Kind:       schema.StateChangeRemoved,
			Entry:      schema.EntryContractData,
			ContractID: w.contractOwner(cd.Contract),
			Durability: durability(cd.Key, cd.Durability),
			Key:        w.decodeKey(cd.Key),
			Value:      scval.Value{Kind: scval.KindNull},
		}, true

	case xdr.LedgerEntryTypeContractCode:
		cc := lk.ContractCode
		if cc == nil {
			return schema.StateChange{}, false
		}
		return schema.StateChange{
			Kind:     schema.StateChangeRemoved,
			Entry:    schema.EntryContractCode,
			CodeHash: hex.EncodeToString(cc.Hash[:]),
			Key:      scval.Value{Kind: scval.KindSymbol, Text: "wasm"},
			Value:    scval.Value{Kind: scval.KindNull},
		}, true
	}
	return schema.StateChange{}, false
}

// decodeKey checks the marker discriminant before generic decoding; the
// instance key is a fixed literal, not structure.
func (w *Walker) decodeKey(key xdr.ScVal) scval.Value {
	if key.Type == xdr.ScValTypeScvLedgerKeyContractInstance {
		return scval.Value{Kind: scval.KindSymbol, Text: "instance"}
	}
	return w.dec.Decode(key)
}

// durability maps the wire durability onto the three display classes; an
// instance marker key wins over the declared durability.
func durability(key xdr.ScVal, d xdr.ContractDataDurability) schema.Durability {
	if key.Type == xdr.ScValTypeScvLedgerKeyContractInstance {
		return schema.DurabilityInstance
	}
	switch d {
	case xdr.ContractDataDurabilityTemporary:
		return schema.DurabilityTemporary
	default:
		return schema.DurabilityPersistent
	}
}

func (w *Walker) contractOwner(sa xdr.ScAddress) string {
	v := w.dec.DecodeAddress(sa)
	if v.Kind == scval.KindAddress {
		return v.Text
	}
	return ""
}

func ttlFromEntry(entry *xdr.LedgerEntry) (schema.TTLExtension, bool) {
	if entry.Data.Type != xdr.LedgerEntryTypeTtl || entry.Data.Ttl == nil {
		return schema.TTLExtension{}, false
	}
	return schema.TTLExtension{
		KeyHash:         hex.EncodeToString(entry.Data.Ttl.KeyHash[:]),
		LiveUntilLedger: uint32(entry.Data.Ttl.LiveUntilLedgerSeq),
	}, true
}
