package receiptgen

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBizEventMessage_PlainObject(t *testing.T) {
	events, err := DecodeBizEventMessage([]byte(`{"id":"evt-1","eventStatus":"DONE"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, BizEventStatusDone, events[0].EventStatus)
}

func TestDecodeBizEventMessage_PlainArray(t *testing.T) {
	events, err := DecodeBizEventMessage([]byte(`[{"id":"evt-1"},{"id":"evt-2"}]`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "evt-2", events[1].ID)
}

func TestDecodeBizEventMessage_Base64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`[{"id":"evt-9"}]`))
	events, err := DecodeBizEventMessage([]byte(encoded))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-9", events[0].ID)
}

func TestDecodeBizEventMessage_Invalid(t *testing.T) {
	_, err := DecodeBizEventMessage([]byte(""))
	assert.Error(t, err)

	_, err = DecodeBizEventMessage([]byte("not json and not base64!!!"))
	assert.Error(t, err)

	_, err = DecodeBizEventMessage([]byte(`{"id":`))
	assert.Error(t, err)
}

func TestEncodeBizEventMessage_RoundTrip(t *testing.T) {
	in := []BizEvent{{ID: "evt-1", AttemptedPoisonRetry: true}, {ID: "evt-2"}}
	payload, err := EncodeBizEventMessage(in)
	require.NoError(t, err)

	out, err := DecodeBizEventMessage(payload)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "evt-1", out[0].ID)
	assert.True(t, out[0].AttemptedPoisonRetry)
	assert.False(t, out[1].AttemptedPoisonRetry)
}

func TestReceiptEventReference(t *testing.T) {
	event := &BizEvent{
		ID: "evt-1",
		TransactionDetails: &TransactionDetails{
			Transaction: &Transaction{TransactionID: "tx-7"},
		},
	}

	assert.Equal(t, "evt-1", ReceiptEventReference(event, false))
	assert.Equal(t, "tx-7", ReceiptEventReference(event, true))
	assert.Equal(t, "evt-1", ReceiptEventReference(&BizEvent{ID: "evt-1"}, true))
	assert.Equal(t, "", ReceiptEventReference(nil, false))
}
