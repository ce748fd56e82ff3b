package status

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeValues(t *testing.T) {
	testCases := []struct {
		code  Code
		value uint16
	}{
		{CodeSuccess, 0x00},
		{CodeInvalidSize, 0x02},
		{CodeTimeout, 0x08},
		{CodeUnderflow, 0x0B},
		{CodeInvalidAddress, 0x0D},
		{CodeNotImplemented, 0x10},
		{CodeNotSupported, 0x17},
		{CodeFwLoadFailed, 0x70},
		{CodeFwBusy, 0x76},
	}
	for _, tc := range testCases {
		assert.Equalf(t, tc.value, uint16(tc.code), "%s", tc.code)
	}
	assert.True(t, CodeFwFunction.IsFirmware())
	assert.False(t, CodeBusy.IsFirmware())
	assert.Equal(t, "code 0x42", Code(0x42).String())
}

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("read version: %w", Protocol("vendorRead", CodeBusy))
	assert.True(t, IsKind(err, KindProtocol))
	assert.Equal(t, CodeBusy, CodeOf(err))
	assert.True(t, errors.Is(err, &Error{Kind: KindProtocol}))
	assert.False(t, errors.Is(err, ErrUnderflow))

	timeout := Timeout(KindConnection, "receive", time.Second)
	assert.True(t, errors.Is(timeout, ErrTimeout))
	assert.Contains(t, timeout.Error(), "timed out after 1s")

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, CodeFailed, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeSuccess, CodeOf(nil))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("broken pipe")
	err := Connection("send", 32, cause)
	require.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "send: connection error (errno 32): broken pipe", err.Error())

	err = Protocol("vendorWrite", CodeInvalidParameter)
	assert.Equal(t, "vendorWrite: protocol error (invalid parameter, 0x03)", err.Error())

	err = Connection("receive", 0, errors.New("closed"))
	assert.Equal(t, "receive: connection error: closed", err.Error())

	cmd := Command(0x0103, CodeFwFunction)
	assert.Equal(t, KindCommand, cmd.Kind)
	assert.Contains(t, cmd.Error(), "command 0x0103")
}

func TestErrnoDoesNotMatchCodes(t *testing.T) {
	tests := []struct {
		errno    uint16
		sentinel error
	}{
		{22, ErrNotOpen},
		{8, ErrTimeout},
	}
	for _, test := range tests {
		err := fmt.Errorf("getProperty: %w", Connection("getProperty", test.errno, nil))
		assert.False(t, errors.Is(err, test.sentinel), "errno %d", test.errno)
		assert.Equal(t, test.errno, ErrnoOf(err))
		assert.Equal(t, CodeFailed, CodeOf(err))
		assert.True(t, errors.Is(err, &Error{Kind: KindConnection}))
		assert.True(t, errors.Is(err, &Error{Kind: KindConnection, Errno: test.errno}))
		assert.False(t, errors.Is(err, &Error{Kind: KindConnection, Errno: test.errno + 1}))
	}
	assert.Equal(t, uint16(0), ErrnoOf(errors.New("plain")))
}
