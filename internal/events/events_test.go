package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	drained  bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNATSPublisherWrapsPayload(t *testing.T) {
	conn := &fakeConn{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &NATSPublisher{conn: conn, now: func() time.Time { return at }}

	err := p.Publish(context.Background(), SubjectItemStatusChanged, ItemStatusChanged{
		ItemID: "i1", OwnerID: "u1", Title: "Coat", Previous: "pending", Status: "approved",
	})
	require.NoError(t, err)
	require.Equal(t, []string{SubjectItemStatusChanged}, conn.subjects)

	var env Envelope
	require.NoError(t, json.Unmarshal(conn.payloads[0], &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, sourceService, env.SourceService)
	assert.True(t, env.OccurredAt.Equal(at))

	var got ItemStatusChanged
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, "approved", got.Status)

	p.Close()
	assert.True(t, conn.drained)
}

func TestNATSPublisherErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := &NATSPublisher{conn: conn, now: time.Now}
	assert.Error(t, p.Publish(context.Background(), SubjectSwapStatusChanged, SwapStatusChanged{SwapID: "s"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, SubjectSwapStatusChanged, SwapStatusChanged{}), context.Canceled)
}
