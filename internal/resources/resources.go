// Package resources merges the measured execution counters mined from the
// transaction meta with the budget the submitter declared in the envelope.
// Budgets are ceilings, not measurements, so every backfilled value is
// flagged as approximate.
package resources

import (
	"github.com/stellar/go/xdr"

	"github.com/dotandev/sorograph/internal/schema"
)

// Budget is the declared resource ceiling from the transaction envelope.
type Budget struct {
	CPUInstructions uint64
	ReadBytes       uint64
	WriteBytes      uint64
	ReadEntries     uint32
	WriteEntries    uint32
	Declared        bool
}

// BudgetFromEnvelope extracts the declared limits from a base64 transaction
// envelope. Only v1 transactions carry the resource extension; everything
// else yields an undeclared budget.
func BudgetFromEnvelope(envB64 string) Budget {
	if envB64 == "" {
		return Budget{}
	}
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshalBase64(envB64, &env); err != nil {
		return Budget{}
	}
	if env.Type != xdr.EnvelopeTypeEnvelopeTypeTx || env.V1 == nil {
		return Budget{}
	}
	ext := env.V1.Tx.Ext
	if ext.V != 1 || ext.SorobanData == nil {
		return Budget{}
	}
	res := ext.SorobanData.Resources
	return Budget{
		CPUInstructions: uint64(res.Instructions),
		ReadBytes:       uint64(res.DiskReadBytes),
		WriteBytes:      uint64(res.WriteBytes),
		ReadEntries:     uint32(len(res.Footprint.ReadOnly)),
		WriteEntries:    uint32(len(res.Footprint.ReadWrite)),
		Declared:        true,
	}
}

// Merge fills the gaps in measured usage from the declared budget. The rule
// is uniform across dimensions: a measured non-zero value always wins, a
// zero is backfilled from the budget and the result is marked approximate.
func Merge(actual schema.ResourceUsage, budget Budget) schema.ResourceUsage {
	out := actual
	if budget.Declared {
		out.BudgetedCPUInstructions = budget.CPUInstructions
		out.BudgetedReadBytes = budget.ReadBytes
		out.BudgetedWriteBytes = budget.WriteBytes

		if out.CPUInstructions == 0 && budget.CPUInstructions > 0 {
			out.CPUInstructions = budget.CPUInstructions
			out.Approximate = true
		}
		if out.ReadBytes == 0 && budget.ReadBytes > 0 {
			out.ReadBytes = budget.ReadBytes
			out.Approximate = true
		}
		if out.WriteBytes == 0 && budget.WriteBytes > 0 {
			out.WriteBytes = budget.WriteBytes
			out.Approximate = true
		}
		if out.ReadEntries == 0 && budget.ReadEntries > 0 {
			out.ReadEntries = budget.ReadEntries
			out.Approximate = true
		}
		if out.WriteEntries == 0 && budget.WriteEntries > 0 {
			out.WriteEntries = budget.WriteEntries
			out.Approximate = true
		}
	}
	// Memory has no declared budget; approximate it from data movement.
	if out.MemoryBytes == 0 && out.ReadBytes+out.WriteBytes > 0 {
		out.MemoryBytes = out.ReadBytes + out.WriteBytes
		out.Approximate = true
	}
	return out
}

// Analyze is the one-call form used by the pipeline.
func Analyze(actual schema.ResourceUsage, envelopeXDR string) schema.ResourceUsage {
	return Merge(actual, BudgetFromEnvelope(envelopeXDR))
}
