package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
)

func TestInstanceNameSplitsUserAndIP(t *testing.T) {
	assert.Equal(t, "alice_at_10_0_0_2", instanceName("alice@10.0.0.2"))
}

func TestInstanceNameFallsBackWithoutAt(t *testing.T) {
	assert.Equal(t, "not_a_user_id", instanceName("not.a.user.id"))
}

func TestToFoundExtractsTXTRecords(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
	}
	entry.Port = 50999
	entry.Text = []string{"user_id=bob@10.0.0.5", "display_name=Bob", "port=50999"}

	found, ok := toFound(entry)
	require := assert.New(t)
	require.True(ok)
	require.Equal("bob@10.0.0.5", found.UserID)
	require.Equal("Bob", found.DisplayName)
	require.Equal("10.0.0.5", found.IP)
	require.Equal(50999, found.Port)
}

func TestToFoundRejectsMissingUserID(t *testing.T) {
	entry := &zeroconf.ServiceEntry{}
	entry.Text = []string{"display_name=Bob"}
	_, ok := toFound(entry)
	assert.False(t, ok)
}
