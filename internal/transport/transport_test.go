package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubnetPrefix(t *testing.T) {
	assert.Equal(t, "192.168.1", SubnetPrefix("192.168.1.42"))
	assert.Equal(t, "10.0.0", SubnetPrefix("10.0.0.255"))
	assert.Equal(t, "not-an-ip", SubnetPrefix("not-an-ip"))
}

func TestBindAssignsRealEphemeralPort(t *testing.T) {
	s, err := Bind(0)
	require.NoError(t, err)
	defer s.Close()
	assert.NotZero(t, s.Port())
}

func TestSendToAndReceiveRoundTrip(t *testing.T) {
	receiver, err := Bind(0)
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := Bind(0)
	require.NoError(t, err)
	defer sender.Close()

	require.NoError(t, sender.SendTo([]byte("hello"), "127.0.0.1", receiver.Port()))

	payload, sourceIP, err := receiver.Receive()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))
	assert.Equal(t, "127.0.0.1", sourceIP)
}
