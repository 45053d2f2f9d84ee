package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestSenderNotify(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, rate.Inf, 1)

	require.NoError(t, s.Notify(context.Background(), 42, "hi"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(42), api.sent[0].ChatID)
	assert.Equal(t, "hi", api.sent[0].Text)
	assert.True(t, api.sent[0].DisableWebPagePreview)
}

func TestSenderWrapsSendError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSender(&fakeAPI{sendErr: boom}, rate.Inf, 1)
	err := s.Notify(context.Background(), 1, "x")
	assert.ErrorIs(t, err, boom)
}

func TestSenderRespectsContextWhileThrottled(t *testing.T) {
	api := &fakeAPI{}
	s := NewSender(api, rate.Limit(0.001), 1)

	require.NoError(t, s.Notify(context.Background(), 1, "first"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Notify(ctx, 1, "second"))
	assert.Len(t, api.sent, 1)
}
