package schema

import "github.com/dotandev/sorograph/internal/scval"

// SystemContract marks events emitted by the host rather than a contract.
const SystemContract = "system"

// StateChangeKind is the 4-way change-set union from the execution meta.
type StateChangeKind string

const (
	StateChangeState   StateChangeKind = "state"
	StateChangeCreated StateChangeKind = "created"
	StateChangeUpdated StateChangeKind = "updated"
	StateChangeRemoved StateChangeKind = "removed"
)

// EntryKind classifies a ledger entry touched by an operation.
type EntryKind string

const (
	EntryContractData EntryKind = "contract_data"
	EntryContractCode EntryKind = "contract_code"
)

// Durability is the storage lifetime class of a contract-data entry.
type Durability string

const (
	DurabilityInstance   Durability = "instance"
	DurabilityPersistent Durability = "persistent"
	DurabilityTemporary  Durability = "temporary"
)

// StateChange is one ledger-entry mutation attributed to an operation.
// Built once during meta traversal, immutable afterwards. OldValue is only
// populated for updated entries; consumers want the delta, not just the new
// value.
type StateChange struct {
	Kind       StateChangeKind `json:"kind"`
	Entry      EntryKind       `json:"entry"`
	ContractID string          `json:"contractId,omitempty"`
	// CodeHash identifies contract-code entries; those have no owner.
	CodeHash   string      `json:"codeHash,omitempty"`
	Durability Durability  `json:"durability,omitempty"`
	Key        scval.Value `json:"key"`
	Value      scval.Value `json:"value"`
	OldValue   *scval.Value `json:"oldValue,omitempty"`
}

// ContractEvent is a decoded contract or diagnostic event. The first topic,
// when a symbol, conventionally names the event kind; diagnostic-only noise
// is filtered before the graph sees it.
type ContractEvent struct {
	ContractID   string        `json:"contractId"`
	Topics       []scval.Value `json:"topics"`
	Data         scval.Value   `json:"data"`
	InSuccessful bool          `json:"inSuccessfulContractCall"`
}

// Type returns the conventional event kind from topic zero, or "".
func (e ContractEvent) Type() string {
	if len(e.Topics) > 0 && e.Topics[0].Kind == scval.KindSymbol {
		return e.Topics[0].Text
	}
	return ""
}

// ContractCall is one inferred cross-contract call edge. The callee comes
// from the call event's second topic; the event's owning contract names the
// caller side, not the callee.
type ContractCall struct {
	FromContract string      `json:"fromContract"`
	ToContract   string      `json:"toContract"`
	Function     string      `json:"function,omitempty"`
	Args         scval.Value `json:"args,omitempty"`
}

// TTLExtension records a storage-entry expiration bump seen in the meta.
type TTLExtension struct {
	KeyHash         string `json:"keyHash"`
	LiveUntilLedger uint32 `json:"liveUntilLedger"`
}

// ResourceUsage carries the CPU/memory/IO footprint of an invocation.
// Actual figures (post-execution) and budgeted figures (declared up front)
// are tracked separately; when only budgeted numbers exist they populate
// both sides and Approximate is set.
type ResourceUsage struct {
	CPUInstructions uint64 `json:"cpuInstructions"`
	MemoryBytes     uint64 `json:"memoryBytes"`
	ReadBytes       uint64 `json:"readBytes"`
	WriteBytes      uint64 `json:"writeBytes"`
	ReadEntries     uint32 `json:"readEntries"`
	WriteEntries    uint32 `json:"writeEntries"`

	BudgetedCPUInstructions uint64 `json:"budgetedCpuInstructions"`
	BudgetedReadBytes       uint64 `json:"budgetedReadBytes"`
	BudgetedWriteBytes      uint64 `json:"budgetedWriteBytes"`

	// Fee split from the meta extension, stroops.
	NonRefundableFee int64 `json:"nonRefundableFee,omitempty"`
	RefundableFee    int64 `json:"refundableFee,omitempty"`
	RentFee          int64 `json:"rentFee,omitempty"`

	// Approximate marks actuals that were backfilled from the budget.
	Approximate bool `json:"approximate,omitempty"`
}

// Empty reports whether no counter was populated at all.
func (r ResourceUsage) Empty() bool {
	return r.CPUInstructions == 0 && r.MemoryBytes == 0 &&
		r.ReadBytes == 0 && r.WriteBytes == 0 &&
		r.ReadEntries == 0 && r.WriteEntries == 0 &&
		r.BudgetedCPUInstructions == 0
}

// SorobanOperation is the fully correlated view of one invocation-kind
// operation: who was called, with what, what it touched and what it cost.
type SorobanOperation struct {
	Index        int           `json:"index"`
	ContractID   string        `json:"contractId"`
	FunctionName string        `json:"functionName"`
	Args         []scval.Value `json:"args,omitempty"`
	Auth         []string      `json:"auth,omitempty"`

	ReturnValue   *scval.Value `json:"returnValue,omitempty"`
	FailureReason string       `json:"failureReason,omitempty"`

	Events        []ContractEvent `json:"events,omitempty"`
	StateChanges  []StateChange   `json:"stateChanges,omitempty"`
	ContractCalls []ContractCall  `json:"contractCalls,omitempty"`
	TTLExtensions []TTLExtension  `json:"ttlExtensions,omitempty"`

	Resources ResourceUsage `json:"resources"`
}

// OperationError is one per-operation failure from the result envelope.
type OperationError struct {
	Index       int    `json:"index"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ErrorReport is the layered failure view of a transaction result:
// outer code (fee wrapper or plain), inner code for the fee-bump case, and
// the per-operation failures from whichever result set applies.
type ErrorReport struct {
	OuterCode       string           `json:"outerCode,omitempty"`
	OuterDesc       string           `json:"outerDesc,omitempty"`
	InnerCode       string           `json:"innerCode,omitempty"`
	InnerDesc       string           `json:"innerDesc,omitempty"`
	OperationErrors []OperationError `json:"operationErrors,omitempty"`
	FeeBump         bool             `json:"feeBump,omitempty"`
}

// Failed reports whether the transaction actually failed on chain. This is
// an on-chain outcome, never a decode sentinel. Both fee-bump layers must
// have succeeded for a fee-bumped transaction to count as successful.
func (r ErrorReport) Failed() bool {
	if len(r.OperationErrors) > 0 {
		return true
	}
	outerOK := r.OuterCode == "" || r.OuterCode == "tx_success" ||
		r.OuterCode == "tx_fee_bump_inner_success"
	innerOK := r.InnerCode == "" || r.InnerCode == "tx_success"
	return !outerOK || !innerOK
}

// TransactionDetails is the aggregate handed to the presentation layer.
type TransactionDetails struct {
	Hash          string `json:"hash"`
	SourceAccount string `json:"sourceAccount"`
	FeeCharged    int64  `json:"feeCharged"`
	Successful    bool   `json:"successful"`
	Ledger        int32  `json:"ledger"`
	CreatedAt     string `json:"createdAt,omitempty"`

	OperationCount int                `json:"operationCount"`
	Soroban        []SorobanOperation `json:"soroban,omitempty"`
	Events         []ContractEvent    `json:"events,omitempty"`
	Effects        []Effect           `json:"effects,omitempty"`

	Errors    *ErrorReport   `json:"errors,omitempty"`
	Resources *ResourceUsage `json:"resources,omitempty"`
}

// Effect is the normalized effect record passed through from the transport.
type Effect struct {
	Type    string `json:"type"`
	Account string `json:"account,omitempty"`
	Amount  string `json:"amount,omitempty"`
	Asset   string `json:"asset,omitempty"`
}
