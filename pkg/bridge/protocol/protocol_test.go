package protocol

import (
	"testing"

	"github.com/robotalks/strata.go/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestHeader(t *testing.T) {
	h := RequestHeader{
		RequestType: VendorWriteType,
		Request:     ReqComponent,
		Value:       0x0103,
		Index:       0x0001,
		Length:      0x0210,
	}
	frame := EncodeRequest(h, []byte{0xAA})
	assert.Equal(t, []byte{0x40, 0x30, 0x03, 0x01, 0x01, 0x00, 0x10, 0x02, 0xAA}, frame)

	decoded, err := DecodeRequestHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
	assert.True(t, decoded.IsWrite())
}

func TestRequestHeaderMalformed(t *testing.T) {
	_, err := DecodeRequestHeader([]byte{0x40, 0x30})
	assert.ErrorIs(t, err, status.ErrUnderflow)

	_, err = DecodeRequestHeader([]byte{0x41, 0x30, 0, 0, 0, 0, 0, 0})
	assert.Equal(t, status.CodeUnexpectedValue, status.CodeOf(err))
	assert.True(t, status.IsKind(err, status.KindProtocol))
}

func TestResponseHeader(t *testing.T) {
	frame := EncodeResponse(status.CodeBusy, []byte{1, 2, 3})
	assert.Equal(t, []byte{0x09, 0x00, 0x03, 0x00, 1, 2, 3}, frame)

	h, err := DecodeResponseHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, ResponseHeader{Status: status.CodeBusy, Length: 3}, h)

	_, err = DecodeResponseHeader(frame[:3])
	assert.ErrorIs(t, err, status.ErrUnderflow)
}
