package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinbechard/wslog/pkg/observability/fake"
)

func TestLink_ConnectsAndDrainsQueuedFrames(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	l := New(Config{URL: "ws://broker/link", MaxRetries: -1}, dialer, fake.NewProvider().Logger())

	require.NoError(t, l.Enqueue(testFrame()))
	require.NoError(t, l.Enqueue(testFrame()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	require.True(t, eventually(func() bool { return l.State() == StateConnected }, time.Second))
	require.True(t, eventually(func() bool { return conn.sentCount() == 2 }, time.Second))

	assert.NoError(t, l.Close())
}

func TestLink_GivesUpAfterMaxRetries(t *testing.T) {
	l := New(Config{URL: "ws://broker/link", MaxRetries: 1}, failingDialer{}, fake.NewProvider().Logger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	require.True(t, eventually(func() bool { return l.State() == StateGaveUp }, 2*time.Second))
	assert.NoError(t, l.Close())
}

func TestLink_EnqueueAfterCloseFails(t *testing.T) {
	conn := newFakeConn()
	l := New(Config{URL: "ws://broker/link"}, &fakeDialer{conn: conn}, fake.NewProvider().Logger())
	require.NoError(t, l.Close())

	err := l.Enqueue(testFrame())
	assert.ErrorIs(t, err, ErrClosed)
}
