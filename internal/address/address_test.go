package address

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 32)
	enc, err := EncodeAccount(raw)
	require.NoError(t, err)
	require.Equal(t, byte('G'), enc[0])

	dec, err := DecodeAccount(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, dec)
}

func TestContractRoundTrip(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	enc, err := EncodeContract(raw)
	require.NoError(t, err)
	require.Equal(t, byte('C'), enc[0])

	dec, err := DecodeContract(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, dec)
}

func TestEncodeRejectsWrongLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		_, err := EncodeAccount(make([]byte, n))
		assert.Error(t, err, "account length %d", n)
		_, err = EncodeContract(make([]byte, n))
		assert.Error(t, err, "contract length %d", n)
	}
}

func TestVariantsDoNotCrossDecode(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01}, 32)
	acct, err := EncodeAccount(raw)
	require.NoError(t, err)
	_, err = DecodeContract(acct)
	assert.Error(t, err)

	contract, err := EncodeContract(raw)
	require.NoError(t, err)
	_, err = DecodeAccount(contract)
	assert.Error(t, err)
}

func TestShort(t *testing.T) {
	raw := bytes.Repeat([]byte{0x7f}, 32)
	enc, err := EncodeContract(raw)
	require.NoError(t, err)

	short := Short(enc)
	assert.Len(t, []rune(short), 9)
	assert.Equal(t, enc[:4], short[:4])

	assert.Equal(t, "tiny", Short("tiny"))
}
