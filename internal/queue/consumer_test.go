package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageDelivers(t *testing.T) {
	body, err := json.Marshal(PasswordResetRequestedEvent{
		UserID:    "u-1",
		Email:     "owner@shop.gh",
		ResetLink: "https://app/reset-password?token=abc",
		Reason:    ReasonSelfService,
	})
	require.NoError(t, err)

	var got PasswordResetRequestedEvent
	err = HandleMessage(context.Background(), body, func(_ context.Context, ev PasswordResetRequestedEvent) error {
		got = ev
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "owner@shop.gh", got.Email)
	assert.Equal(t, ReasonSelfService, got.Reason)
}

func TestHandleMessageRejectsBadPayloads(t *testing.T) {
	noop := func(context.Context, PasswordResetRequestedEvent) error { return nil }

	assert.Error(t, HandleMessage(context.Background(), []byte("{"), noop))
	assert.Error(t, HandleMessage(context.Background(), []byte(`{"email":"a@b.co"}`), noop))
}

func TestHandleMessagePropagatesDeliveryError(t *testing.T) {
	boom := errors.New("smtp down")
	err := HandleMessage(context.Background(), []byte(`{"email":"a@b.co","reset_link":"x"}`),
		func(context.Context, PasswordResetRequestedEvent) error { return boom })
	assert.ErrorIs(t, err, boom)
}
