package txerror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go/xdr"
)

func invokeOpResult(code xdr.InvokeHostFunctionResultCode) xdr.OperationResult {
	return xdr.OperationResult{
		Code: xdr.OperationResultCodeOpInner,
		Tr: &xdr.OperationResultTr{
			Type:                     xdr.OperationTypeInvokeHostFunction,
			InvokeHostFunctionResult: &xdr.InvokeHostFunctionResult{Code: code},
		},
	}
}

func paymentOpResult(code xdr.PaymentResultCode) xdr.OperationResult {
	return xdr.OperationResult{
		Code: xdr.OperationResultCodeOpInner,
		Tr: &xdr.OperationResultTr{
			Type:          xdr.OperationTypePayment,
			PaymentResult: &xdr.PaymentResult{Code: code},
		},
	}
}

func TestFromResultSuccess(t *testing.T) {
	ops := []xdr.OperationResult{
		invokeOpResult(xdr.InvokeHostFunctionResultCodeInvokeHostFunctionSuccess),
	}
	res := xdr.TransactionResult{
		Result: xdr.TransactionResultResult{
			Code:    xdr.TransactionResultCodeTxSuccess,
			Results: &ops,
		},
	}

	rep := FromResult(res)
	assert.Equal(t, "tx_success", rep.OuterCode)
	assert.Empty(t, rep.OperationErrors)
	assert.False(t, rep.Failed())
	assert.False(t, rep.FeeBump)
}

func TestFromResultFailedOperationIndexed(t *testing.T) {
	ops := []xdr.OperationResult{
		paymentOpResult(xdr.PaymentResultCodePaymentSuccess),
		invokeOpResult(xdr.InvokeHostFunctionResultCodeInvokeHostFunctionTrapped),
	}
	res := xdr.TransactionResult{
		Result: xdr.TransactionResultResult{
			Code:    xdr.TransactionResultCodeTxFailed,
			Results: &ops,
		},
	}

	rep := FromResult(res)
	assert.Equal(t, "tx_failed", rep.OuterCode)
	assert.True(t, rep.Failed())
	require.Len(t, rep.OperationErrors, 1)
	assert.Equal(t, 1, rep.OperationErrors[0].Index)
	assert.Equal(t, "invoke_host_function_trapped", rep.OperationErrors[0].Code)
	assert.Equal(t, "contract execution trapped", rep.OperationErrors[0].Description)
}

func TestFromResultFeeBumpInnerFailure(t *testing.T) {
	innerOps := []xdr.OperationResult{
		invokeOpResult(xdr.InvokeHostFunctionResultCodeInvokeHostFunctionEntryArchived),
	}
	res := xdr.TransactionResult{
		Result: xdr.TransactionResultResult{
			Code: xdr.TransactionResultCodeTxFeeBumpInnerFailed,
			InnerResultPair: &xdr.InnerTransactionResultPair{
				Result: xdr.InnerTransactionResult{
					Result: xdr.InnerTransactionResultResult{
						Code:    xdr.TransactionResultCodeTxFailed,
						Results: &innerOps,
					},
				},
			},
		},
	}

	rep := FromResult(res)
	assert.True(t, rep.FeeBump)
	assert.Equal(t, "tx_fee_bump_inner_failed", rep.OuterCode)
	assert.Equal(t, "tx_failed", rep.InnerCode)
	assert.True(t, rep.Failed())
	require.Len(t, rep.OperationErrors, 1)
	assert.Equal(t, "invoke_host_function_entry_archived", rep.OperationErrors[0].Code)
}

func TestFromResultFeeBumpInnerSuccess(t *testing.T) {
	innerOps := []xdr.OperationResult{
		invokeOpResult(xdr.InvokeHostFunctionResultCodeInvokeHostFunctionSuccess),
	}
	res := xdr.TransactionResult{
		Result: xdr.TransactionResultResult{
			Code: xdr.TransactionResultCodeTxFeeBumpInnerSuccess,
			InnerResultPair: &xdr.InnerTransactionResultPair{
				Result: xdr.InnerTransactionResult{
					Result: xdr.InnerTransactionResultResult{
						Code:    xdr.TransactionResultCodeTxSuccess,
						Results: &innerOps,
					},
				},
			},
		},
	}

	rep := FromResult(res)
	assert.True(t, rep.FeeBump)
	assert.Equal(t, "tx_success", rep.InnerCode)
	assert.False(t, rep.Failed())
}

func TestFromResultOperationLevelCode(t *testing.T) {
	ops := []xdr.OperationResult{
		{Code: xdr.OperationResultCodeOpBadAuth},
	}
	res := xdr.TransactionResult{
		Result: xdr.TransactionResultResult{
			Code:    xdr.TransactionResultCodeTxFailed,
			Results: &ops,
		},
	}

	rep := FromResult(res)
	require.Len(t, rep.OperationErrors, 1)
	assert.Equal(t, "op_bad_auth", rep.OperationErrors[0].Code)
}

func TestDescribeFallbackFormat(t *testing.T) {
	assert.Equal(t, "operation: payment_1", describe("operation", "payment_1"))
	assert.Equal(t, "contract execution trapped",
		describe("operation", "invoke_host_function_trapped"))
}

func TestClassifyRoundTrip(t *testing.T) {
	res := xdr.TransactionResult{
		FeeCharged: 100,
		Result: xdr.TransactionResultResult{
			Code: xdr.TransactionResultCodeTxBadSeq,
		},
	}
	b64, err := xdr.MarshalBase64(res)
	require.NoError(t, err)

	rep, err := Classify(b64)
	require.NoError(t, err)
	assert.Equal(t, "tx_bad_seq", rep.OuterCode)
	assert.True(t, rep.Failed())

	_, err = Classify("definitely not xdr")
	assert.Error(t, err)
}
