package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketSigner_RoundTrip(t *testing.T) {
	signer := NewTicketSigner("secret")

	payload := signer.Payload("EVT-ABCD1234")
	code, err := signer.Resolve(payload)
	require.NoError(t, err)
	assert.Equal(t, "EVT-ABCD1234", code)
}

func TestTicketSigner_BareCodePassesThrough(t *testing.T) {
	signer := NewTicketSigner("secret")

	code, err := signer.Resolve("  evt-abcd1234 ")
	require.NoError(t, err)
	assert.Equal(t, "EVT-ABCD1234", code)
}

func TestTicketSigner_RejectsForeignSignature(t *testing.T) {
	payload := NewTicketSigner("other").Payload("EVT-ABCD1234")

	_, err := NewTicketSigner("secret").Resolve(payload)
	assert.ErrorIs(t, err, ErrInvalidQRSignature)
}

func TestTicketSigner_SignedPayloadIgnoresCase(t *testing.T) {
	signer := NewTicketSigner("secret")
	payload := signer.Payload("EVT-ABCD1234")

	for _, input := range []string{strings.ToLower(payload), strings.ToUpper(payload)} {
		code, err := signer.Resolve(input)
		require.NoError(t, err, input)
		assert.Equal(t, "EVT-ABCD1234", code)
	}
}
