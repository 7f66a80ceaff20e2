package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dotandev/sorograph/internal/schema"
	"github.com/dotandev/sorograph/internal/scval"
)

func symbol(s string) scval.Value {
	return scval.Value{Kind: scval.KindSymbol, Text: s}
}

func str(s string) scval.Value {
	return scval.Value{Kind: scval.KindString, Text: s}
}

func TestBuildStorageReport(t *testing.T) {
	old := str("ab")
	changes := []schema.StateChange{
		{Kind: schema.StateChangeCreated, Key: symbol("Supply"), Value: str("100000")},
		{Kind: schema.StateChangeUpdated, Key: symbol("Balance"), Value: str("abcdef"), OldValue: &old},
		{Kind: schema.StateChangeState, Key: symbol("Admin"), Value: str("xyz")},
		{Kind: schema.StateChangeRemoved, Key: symbol("Allowance")},
	}

	report := BuildStorageReport(changes)
	assert.Equal(t, int64(5), report.BeforeBytes)  // old balance + admin
	assert.Equal(t, int64(15), report.AfterBytes)  // supply + new balance + admin
	assert.Equal(t, int64(10), report.DeltaBytes)
	assert.Equal(t, int64(6), report.PerKeyDelta["Supply"])
	assert.Equal(t, int64(4), report.PerKeyDelta["Balance"])
	assert.Equal(t, int64(0), report.PerKeyDelta["Admin"])
	assert.Equal(t, int64(0), report.PerKeyDelta["Allowance"])
}

func TestBuildStorageReportEmpty(t *testing.T) {
	report := BuildStorageReport(nil)
	assert.Zero(t, report.DeltaBytes)
	assert.Empty(t, report.PerKeyDelta)
}
