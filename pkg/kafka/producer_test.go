package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducerPublishEncodesJSON(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "snappy")

	require.NoError(t, p.Publish(context.Background(), "radar.alerts", []byte("BTCUSDT"), map[string]any{"symbol": "BTCUSDT"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "radar.alerts", w.msgs[0].Topic)
	assert.Equal(t, []byte("BTCUSDT"), w.msgs[0].Key)
	assert.JSONEq(t, `{"symbol":"BTCUSDT"}`, string(w.msgs[0].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducerPublishBatch(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "snappy")

	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	assert.Empty(t, w.msgs)

	err := p.PublishBatch(context.Background(), "t", []Message{
		{Key: []byte("a"), Value: "raw"},
		{Key: []byte("b"), Value: []byte("bytes")},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "raw", string(w.msgs[0].Value))
	assert.Equal(t, "bytes", string(w.msgs[1].Value))
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	w := &captureWriter{err: errors.New("leader not available")}
	p := NewProducerWithWriter(w, "snappy")

	err := p.Publish(context.Background(), "t", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")

	err = p.Publish(context.Background(), "t", nil, make(chan int))
	assert.ErrorContains(t, err, "marshal value")
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"), WithLinger(0))
	require.NoError(t, err)
	assert.Equal(t, "zstd", p.comp)
	require.NoError(t, p.Close())
}
