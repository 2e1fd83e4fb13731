package comm

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xorshiftReader struct{ state uint64 }

func newRNG(seed uint64) *xorshiftReader { return &xorshiftReader{state: seed} }

func (r *xorshiftReader) Read(p []byte) (int, error) {
	for i := range p {
		r.state ^= r.state << 13
		r.state ^= r.state >> 7
		r.state ^= r.state << 17
		p[i] = byte(r.state)
	}
	return len(p), nil
}

func dialedPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	clientRaw, serverRaw := net.Pipe()

	type result struct {
		conn *Conn
		err  error
	}
	clientCh := make(chan result, 1)
	serverCh := make(chan result, 1)

	go func() {
		c, err := Dial(clientRaw, newRNG(1))
		clientCh <- result{c, err}
	}()
	go func() {
		c, err := Accept(serverRaw, newRNG(2))
		serverCh <- result{c, err}
	}()

	client := <-clientCh
	server := <-serverCh
	require.NoError(t, client.err)
	require.NoError(t, server.err)
	return client.conn, server.conn
}

func TestHandshakeProducesDistinctSessionIDs(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()
	defer server.Close()
	assert.NotEqual(t, client.SessionID(), server.SessionID())
}

func TestSendRecvRoundTrip(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()
	defer server.Close()

	msg := []byte("bootstrap request payload")
	errCh := make(chan error, 1)
	go func() { errCh <- client.Send(msg) }()

	got, err := server.Recv()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, msg, got)
}

func TestSendRecvMultipleFramesInOrder(t *testing.T) {
	client, server := dialedPair(t)
	defer client.Close()
	defer server.Close()

	messages := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	go func() {
		for _, m := range messages {
			_ = client.Send(m)
		}
	}()

	for _, want := range messages {
		got, err := server.Recv()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRawFrameReadsWithoutHandshake(t *testing.T) {
	clientRaw, serverRaw := net.Pipe()
	defer clientRaw.Close()
	defer serverRaw.Close()

	go func() {
		_ = writeFrame(clientRaw, []byte("not a real pubkey, forged frame!"))
	}()
	_, err := readFrame(serverRaw, 65536)
	require.NoError(t, err) // raw framing itself is transport-level, not authenticated
}
