package analytics

import (
	"fmt"
	"sort"

	"github.com/dotandev/sorograph/internal/schema"
	"github.com/dotandev/sorograph/internal/scval"
)

// StorageGrowthReport summarizes how much contract storage a transaction
// grew or shrank, per key and in total. Sizes are measured over the decoded
// value rendering, which tracks the on-ledger entry size closely enough for
// a growth signal.
type StorageGrowthReport struct {
	BeforeBytes int64
	AfterBytes  int64
	DeltaBytes  int64
	PerKeyDelta map[string]int64
}

// BuildStorageReport folds the state changes of a decoded transaction into
// a growth report. Removed entries contribute their key only; their prior
// size is not carried in the change record.
func BuildStorageReport(changes []schema.StateChange) *StorageGrowthReport {
	report := &StorageGrowthReport{PerKeyDelta: map[string]int64{}}
	for _, sc := range changes {
		key := sc.Key.String()
		before, after := entrySizes(sc)
		report.BeforeBytes += before
		report.AfterBytes += after
		report.PerKeyDelta[key] += after - before
	}
	report.DeltaBytes = report.AfterBytes - report.BeforeBytes
	return report
}

func entrySizes(sc schema.StateChange) (before, after int64) {
	switch sc.Kind {
	case schema.StateChangeCreated:
		return 0, valueSize(&sc.Value)
	case schema.StateChangeUpdated:
		return valueSize(sc.OldValue), valueSize(&sc.Value)
	case schema.StateChangeState:
		n := valueSize(&sc.Value)
		return n, n
	case schema.StateChangeRemoved:
		return 0, 0
	}
	return 0, 0
}

func valueSize(v *scval.Value) int64 {
	if v == nil {
		return 0
	}
	return int64(len(v.String()))
}

func PrintStorageReport(report *StorageGrowthReport, fee int64) {
	fmt.Println("📦 Contract Storage Growth Report")
	fmt.Println("--------------------------------")
	fmt.Printf("Before: %d bytes\n", report.BeforeBytes)
	fmt.Printf("After:  %d bytes\n", report.AfterBytes)
	fmt.Printf("Delta:  %+d bytes\n", report.DeltaBytes)
	fmt.Printf("Fee Impact: %d stroops\n\n", fee)

	fmt.Println("Per-Key Changes:")
	keys := make([]string, 0, len(report.PerKeyDelta))
	for key := range report.PerKeyDelta {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if delta := report.PerKeyDelta[key]; delta != 0 {
			fmt.Printf("  %s: %+d bytes\n", key, delta)
		}
	}
}
