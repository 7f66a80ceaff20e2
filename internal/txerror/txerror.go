// Package txerror turns a raw TransactionResult into a layered failure
// report: the outer transaction code, the inner code when the transaction
// was fee-bumped, and a per-operation breakdown of what actually failed.
package txerror

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"github.com/dotandev/sorograph/internal/schema"
)

// Classify decodes a base64 TransactionResult and classifies it.
func Classify(resultXDR string) (schema.ErrorReport, error) {
	var res xdr.TransactionResult
	if err := xdr.SafeUnmarshalBase64(resultXDR, &res); err != nil {
		return schema.ErrorReport{}, errors.Wrap(err, "unmarshaling transaction result")
	}
	return FromResult(res), nil
}

// FromResult classifies an already-decoded result. Fee-bump wrappers are a
// two-level affair: the wrapper code says whether the bump itself was
// accepted, and the inner result carries the transaction that actually ran.
func FromResult(res xdr.TransactionResult) schema.ErrorReport {
	code := res.Result.Code
	rep := schema.ErrorReport{
		OuterCode: txCodeName(code),
		OuterDesc: describe("transaction", txCodeName(code)),
	}

	switch code {
	case xdr.TransactionResultCodeTxFeeBumpInnerSuccess,
		xdr.TransactionResultCodeTxFeeBumpInnerFailed:
		rep.FeeBump = true
		pair, ok := res.Result.GetInnerResultPair()
		if !ok {
			return rep
		}
		innerCode := pair.Result.Result.Code
		rep.InnerCode = innerTxCodeName(innerCode)
		rep.InnerDesc = describe("transaction", rep.InnerCode)
		if results, ok := pair.Result.Result.GetResults(); ok {
			rep.OperationErrors = operationErrors(results)
		}
	default:
		if results, ok := res.Result.GetResults(); ok {
			rep.OperationErrors = operationErrors(results)
		}
	}
	return rep
}

// operationErrors walks the per-operation result list and keeps only the
// failures, indexed by operation position.
func operationErrors(results []xdr.OperationResult) []schema.OperationError {
	var out []schema.OperationError
	for i, r := range results {
		if r.Code != xdr.OperationResultCodeOpInner {
			name := opCodeName(r.Code)
			out = append(out, schema.OperationError{
				Index:       i,
				Code:        name,
				Description: describe("operation", name),
			})
			continue
		}
		if r.Tr == nil {
			continue
		}
		if name, failed := probeResult(*r.Tr); failed {
			out = append(out, schema.OperationError{
				Index:       i,
				Code:        name,
				Description: describe("operation", name),
			})
		}
	}
	return out
}

// probeResult tries each known per-operation result accessor in order and
// reports the first match. Unknown operation types come back unmatched and
// are treated as successful.
func probeResult(tr xdr.OperationResultTr) (code string, failed bool) {
	for _, p := range opProbes {
		if name, failed, ok := p(tr); ok {
			return name, failed
		}
	}
	return "", false
}

type opProbe func(xdr.OperationResultTr) (code string, failed, ok bool)

var opProbes = []opProbe{
	func(tr xdr.OperationResultTr) (string, bool, bool) {
		r, ok := tr.GetInvokeHostFunctionResult()
		if !ok {
			return "", false, false
		}
		failed := r.Code != xdr.InvokeHostFunctionResultCodeInvokeHostFunctionSuccess
		return invokeCodeName(r.Code), failed, true
	},
	func(tr xdr.OperationResultTr) (string, bool, bool) {
		r, ok := tr.GetExtendFootprintTtlResult()
		if !ok {
			return "", false, false
		}
		failed := r.Code != xdr.ExtendFootprintTtlResultCodeExtendFootprintTtlSuccess
		return snakeEnum("extend_footprint_ttl", int32(r.Code)), failed, true
	},
	func(tr xdr.OperationResultTr) (string, bool, bool) {
		r, ok := tr.GetRestoreFootprintResult()
		if !ok {
			return "", false, false
		}
		failed := r.Code != xdr.RestoreFootprintResultCodeRestoreFootprintSuccess
		return snakeEnum("restore_footprint", int32(r.Code)), failed, true
	},
	func(tr xdr.OperationResultTr) (string, bool, bool) {
		r, ok := tr.GetPaymentResult()
		if !ok {
			return "", false, false
		}
		failed := r.Code != xdr.PaymentResultCodePaymentSuccess
		return snakeEnum("payment", int32(r.Code)), failed, true
	},
	func(tr xdr.OperationResultTr) (string, bool, bool) {
		r, ok := tr.GetCreateAccountResult()
		if !ok {
			return "", false, false
		}
		failed := r.Code != xdr.CreateAccountResultCodeCreateAccountSuccess
		return snakeEnum("create_account", int32(r.Code)), failed, true
	},
}

var txCodeNames = map[xdr.TransactionResultCode]string{
	xdr.TransactionResultCodeTxSuccess:             "tx_success",
	xdr.TransactionResultCodeTxFailed:              "tx_failed",
	xdr.TransactionResultCodeTxFeeBumpInnerSuccess: "tx_fee_bump_inner_success",
	xdr.TransactionResultCodeTxFeeBumpInnerFailed:  "tx_fee_bump_inner_failed",
	xdr.TransactionResultCodeTxTooEarly:            "tx_too_early",
	xdr.TransactionResultCodeTxTooLate:             "tx_too_late",
	xdr.TransactionResultCodeTxMissingOperation:    "tx_missing_operation",
	xdr.TransactionResultCodeTxBadSeq:              "tx_bad_seq",
	xdr.TransactionResultCodeTxBadAuth:             "tx_bad_auth",
	xdr.TransactionResultCodeTxInsufficientBalance: "tx_insufficient_balance",
	xdr.TransactionResultCodeTxNoAccount:           "tx_no_source_account",
	xdr.TransactionResultCodeTxInsufficientFee:     "tx_insufficient_fee",
	xdr.TransactionResultCodeTxBadAuthExtra:        "tx_bad_auth_extra",
	xdr.TransactionResultCodeTxInternalError:       "tx_internal_error",
	xdr.TransactionResultCodeTxNotSupported:        "tx_not_supported",
	xdr.TransactionResultCodeTxBadSponsorship:      "tx_bad_sponsorship",
	xdr.TransactionResultCodeTxBadMinSeqAgeOrGap:   "tx_bad_min_seq_age_or_gap",
	xdr.TransactionResultCodeTxMalformed:           "tx_malformed",
	xdr.TransactionResultCodeTxSorobanInvalid:      "tx_soroban_invalid",
}

func txCodeName(c xdr.TransactionResultCode) string {
	if n, ok := txCodeNames[c]; ok {
		return n
	}
	return c.String()
}

// innerTxCodeName reuses the transaction code table; the inner result of a
// fee bump carries the same code space minus the fee-bump wrappers.
func innerTxCodeName(c xdr.TransactionResultCode) string {
	return txCodeName(c)
}

var opCodeNames = map[xdr.OperationResultCode]string{
	xdr.OperationResultCodeOpBadAuth:            "op_bad_auth",
	xdr.OperationResultCodeOpNoAccount:          "op_no_source_account",
	xdr.OperationResultCodeOpNotSupported:       "op_not_supported",
	xdr.OperationResultCodeOpTooManySubentries:  "op_too_many_subentries",
	xdr.OperationResultCodeOpExceededWorkLimit:  "op_exceeded_work_limit",
	xdr.OperationResultCodeOpTooManySponsoring:  "op_too_many_sponsoring",
}

func opCodeName(c xdr.OperationResultCode) string {
	if n, ok := opCodeNames[c]; ok {
		return n
	}
	return c.String()
}

var invokeCodeNames = map[xdr.InvokeHostFunctionResultCode]string{
	xdr.InvokeHostFunctionResultCodeInvokeHostFunctionSuccess:                   "invoke_host_function_success",
	xdr.InvokeHostFunctionResultCodeInvokeHostFunctionMalformed:                 "invoke_host_function_malformed",
	xdr.InvokeHostFunctionResultCodeInvokeHostFunctionTrapped:                   "invoke_host_function_trapped",
	xdr.InvokeHostFunctionResultCodeInvokeHostFunctionResourceLimitExceeded:     "invoke_host_function_resource_limit_exceeded",
	xdr.InvokeHostFunctionResultCodeInvokeHostFunctionEntryArchived:             "invoke_host_function_entry_archived",
	xdr.InvokeHostFunctionResultCodeInvokeHostFunctionInsufficientRefundableFee: "invoke_host_function_insufficient_refundable_fee",
}

func invokeCodeName(c xdr.InvokeHostFunctionResultCode) string {
	if n, ok := invokeCodeNames[c]; ok {
		return n
	}
	return c.String()
}

func snakeEnum(prefix string, code int32) string {
	if code == 0 {
		return prefix + "_success"
	}
	return fmt.Sprintf("%s_%d", prefix, code)
}

var descriptions = map[string]string{
	"tx_success":              "transaction applied successfully",
	"tx_failed":               "one or more operations failed",
	"tx_fee_bump_inner_success": "fee bump accepted and the inner transaction succeeded",
	"tx_fee_bump_inner_failed":  "fee bump accepted but the inner transaction failed",
	"tx_too_early":            "ledger close time is before the lower time bound",
	"tx_too_late":             "ledger close time is after the upper time bound",
	"tx_bad_seq":              "sequence number does not match the source account",
	"tx_bad_auth":             "too few valid signatures or wrong network",
	"tx_insufficient_balance": "source account would fall below its minimum reserve",
	"tx_no_source_account":    "source account does not exist",
	"tx_insufficient_fee":     "fee is below the network minimum",
	"tx_internal_error":       "unknown error occurred while applying the transaction",
	"tx_soroban_invalid":      "soroban-specific preconditions were not met",
	"tx_malformed":            "transaction envelope is malformed",

	"op_bad_auth":            "too few valid signatures or wrong network for the operation source",
	"op_no_source_account":   "operation source account does not exist",
	"op_not_supported":       "operation type is not supported",
	"op_exceeded_work_limit": "operation exceeded the work limit",

	"invoke_host_function_trapped":                   "contract execution trapped",
	"invoke_host_function_malformed":                 "host function invocation is malformed",
	"invoke_host_function_resource_limit_exceeded":   "execution exceeded the declared resource budget",
	"invoke_host_function_entry_archived":            "a footprint entry is archived and must be restored",
	"invoke_host_function_insufficient_refundable_fee": "refundable fee did not cover rent and events",

	"payment_success":        "payment applied successfully",
	"create_account_success": "account created successfully",
}

// describe resolves a human description, falling back to the category and
// raw code when no table entry exists.
func describe(category, code string) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("%s: %s", category, code)
}
