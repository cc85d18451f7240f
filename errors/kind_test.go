package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		KindConfig:      "ConfigError",
		KindIngress:      "IngressError",
		KindParse:        "ParseError",
		KindAccelerator:  "AcceleratorError",
		KindEncode:       "EncodeError",
		KindBus:          "BusError",
		KindInternal:     "Internal",
		Kind(999):        "Unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestWrapKind_NilErrorReturnsNil(t *testing.T) {
	assert.NoError(t, WrapKind(KindParse, nil, "c", "m", "a"))
}

func TestWrapKind_PreservesKindAndMessage(t *testing.T) {
	base := fmt.Errorf("boom")
	err := WrapKind(KindParse, base, "softwareParser", "Parse", "read JSON chunk")
	require.Error(t, err)

	var ke *KindedError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, KindParse, ke.Kind)
	assert.Contains(t, err.Error(), "ParseError:")
	assert.Contains(t, err.Error(), "boom")
}

func TestWrapKind_DerivesClassFromKind(t *testing.T) {
	err := WrapKind(KindIngress, fmt.Errorf("dial refused"), "Client", "ReceiveJSONs", "dial")
	assert.True(t, IsTransient(err), "KindIngress maps to ErrorTransient")

	err = WrapKind(KindAccelerator, fmt.Errorf("mmio timeout"), "BatteryParser", "ParseOne", "poll")
	assert.True(t, IsFatal(err), "KindAccelerator maps to ErrorFatal")

	err = WrapKind(KindConfig, fmt.Errorf("bad backend"), "RunConfig", "Validate", "check backend")
	assert.True(t, IsInvalid(err), "KindConfig maps to ErrorInvalid")
}

func TestClassifyKind_UnwrappedErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, ClassifyKind(fmt.Errorf("not kinded")))
}

func TestClassifyKind_RoundTripsThroughWrapKind(t *testing.T) {
	err := WrapKind(KindBus, fmt.Errorf("publish failed"), "Publisher", "Run", "publish")
	assert.Equal(t, KindBus, ClassifyKind(err))
}
