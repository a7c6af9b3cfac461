//go:build linux

package firewall

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/google/nftables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"grimm.is/netguard/internal/network"
)

type gatewayFixture struct {
	gw      *NFTGateway
	runner  *MockCommandRunner
	conn    *MockNFTablesConn
	sys     *network.MockSystemController
	flusher *MockConntrackFlusher
}

func newGatewayFixture(t *testing.T, validate bool) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		runner:  new(MockCommandRunner),
		conn:    NewMockNFTablesConn("netguard"),
		sys:     new(network.MockSystemController),
		flusher: new(MockConntrackFlusher),
	}
	gw, err := NewNFTGateway(testTopology(),
		WithCommandRunner(f.runner),
		WithConn(f.conn),
		WithSystemController(f.sys),
		WithConntrackFlusher(f.flusher),
		WithValidation(validate),
		WithRetry(RetryConfig{MaxAttempts: 1}),
	)
	require.NoError(t, err)
	f.gw = gw
	return f
}

func (f *gatewayFixture) initialize(t *testing.T) {
	t.Helper()
	f.runner.On("RunInput", mock.Anything, "nft", "-f", "-").Return(nil)
	f.sys.On("ReadSysctl", network.IPv4ForwardPath).Return("0", nil)
	f.sys.On("WriteSysctl", network.IPv4ForwardPath, "1").Return(nil)
	f.conn.On("GetSets", mock.Anything).Return(nil, nil)
	require.NoError(t, f.gw.Initialize(context.Background()))
}

func (f *gatewayFixture) allowBatches() {
	f.conn.On("SetAddElements", mock.Anything, mock.Anything).Return(nil)
	f.conn.On("SetDeleteElements", mock.Anything, mock.Anything).Return(nil)
	f.conn.On("Flush").Return(nil)
}

func binding(t *testing.T, ip, mac string) Binding {
	t.Helper()
	b, err := NewBinding(ip, mac)
	require.NoError(t, err)
	return b
}

func TestNFTGateway_Initialize(t *testing.T) {
	f := newGatewayFixture(t, true)
	f.runner.On("RunInput", mock.Anything, "nft", "-c", "-f", "-").Return(nil)
	f.initialize(t)

	f.runner.AssertCalled(t, "RunInput", mock.MatchedBy(func(s string) bool {
		return strings.HasPrefix(s, "table inet netguard\n")
	}), "nft", "-f", "-")
	f.sys.AssertCalled(t, "WriteSysctl", network.IPv4ForwardPath, "1")
}

func TestNFTGateway_InitializeValidationFails(t *testing.T) {
	f := newGatewayFixture(t, true)
	f.runner.On("RunInput", mock.Anything, "nft", "-c", "-f", "-").Return(errors.New("syntax error"))

	err := f.gw.Initialize(context.Background())
	assert.ErrorContains(t, err, "validation failed")
	f.runner.AssertNotCalled(t, "RunInput", mock.Anything, "nft", "-f", "-")
}

func TestNFTGateway_InitializeMissingSets(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.runner.On("RunInput", mock.Anything, "nft", "-f", "-").Return(nil)
	f.sys.On("ReadSysctl", network.IPv4ForwardPath).Return("1", nil)
	f.conn.On("GetSets", mock.Anything).Return([]*nftables.Set{}, nil)

	assert.Error(t, f.gw.Initialize(context.Background()))
	assert.False(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:01"))
}

func TestNFTGateway_AuthorizeBeforeInitialize(t *testing.T) {
	f := newGatewayFixture(t, false)
	assert.False(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:01"))
	f.conn.AssertNotCalled(t, "Flush")
}

func TestNFTGateway_AuthorizeAndRevoke(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.allowBatches()
	addr := netip.MustParseAddr("10.0.0.2")
	f.flusher.On("FlushAddress", addr).Return(3, nil)

	b := binding(t, "10.0.0.2", "aa:bb:cc:dd:ee:01")
	require.True(t, f.gw.Authorize("10.0.0.2", "AA:BB:CC:DD:EE:01"))
	assert.True(t, f.conn.HasElement(ClientsSet, clientKey(b)))
	assert.True(t, f.gw.IsAuthorized("10.0.0.2"))

	require.True(t, f.gw.Revoke("10.0.0.2", ""))
	assert.False(t, f.conn.HasElement(ClientsSet, clientKey(b)))
	assert.True(t, f.conn.HasElement(RevokedSet, revokedKey(b.MAC)))
	assert.False(t, f.gw.IsAuthorized("10.0.0.2"))
	f.flusher.AssertCalled(t, "FlushAddress", addr)
}

func TestNFTGateway_AuthorizeSameBindingIsNoop(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.allowBatches()

	require.True(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:01"))
	require.True(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:01"))
	f.conn.AssertNumberOfCalls(t, "Flush", 1)
}

func TestNFTGateway_Rebind(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.allowBatches()
	addr := netip.MustParseAddr("10.0.0.2")
	f.flusher.On("FlushAddress", addr).Return(2, nil)

	old := binding(t, "10.0.0.2", "aa:bb:cc:dd:ee:01")
	next := binding(t, "10.0.0.2", "aa:bb:cc:dd:ee:02")
	require.True(t, f.gw.Authorize("10.0.0.2", old.MAC))
	f.flusher.AssertNotCalled(t, "FlushAddress", addr)
	require.True(t, f.gw.Authorize("10.0.0.2", next.MAC))

	assert.False(t, f.conn.HasElement(ClientsSet, clientKey(old)))
	assert.True(t, f.conn.HasElement(ClientsSet, clientKey(next)))
	assert.Equal(t, 1, f.conn.Len(ClientsSet))
	assert.True(t, f.gw.IsAuthorized("10.0.0.2"))
	f.flusher.AssertNumberOfCalls(t, "FlushAddress", 1)
}

func TestNFTGateway_RebindFailureKeepsFlows(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.conn.On("SetAddElements", mock.Anything, mock.Anything).Return(nil)
	f.conn.On("SetDeleteElements", mock.Anything, mock.Anything).Return(nil)
	f.conn.On("Flush").Return(nil).Once()
	f.conn.On("Flush").Return(errors.New("netlink busy"))

	old := binding(t, "10.0.0.2", "aa:bb:cc:dd:ee:01")
	require.True(t, f.gw.Authorize("10.0.0.2", old.MAC))
	assert.False(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:02"))

	assert.True(t, f.conn.HasElement(ClientsSet, clientKey(old)))
	f.flusher.AssertNotCalled(t, "FlushAddress", mock.Anything)
}

func TestNFTGateway_RevokeSharedMAC(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.allowBatches()
	f.flusher.On("FlushAddress", mock.Anything).Return(0, nil)

	mac := "aa:bb:cc:dd:ee:01"
	first := binding(t, "10.0.0.5", mac)
	second := binding(t, "10.0.0.7", mac)
	require.True(t, f.gw.Authorize("10.0.0.5", mac))
	require.True(t, f.gw.Authorize("10.0.0.7", mac))

	require.True(t, f.gw.Revoke("10.0.0.5", mac))
	assert.False(t, f.conn.HasElement(ClientsSet, clientKey(first)))
	assert.True(t, f.conn.HasElement(ClientsSet, clientKey(second)))
	assert.True(t, f.gw.IsAuthorized("10.0.0.7"))
	assert.False(t, f.conn.HasElement(RevokedSet, revokedKey(mac)), "MAC still bound to 10.0.0.7 must not be dropped")

	require.True(t, f.gw.Revoke("10.0.0.7", mac))
	assert.Equal(t, 0, f.conn.Len(ClientsSet))
	assert.True(t, f.conn.HasElement(RevokedSet, revokedKey(mac)))
}

func TestNFTGateway_RevokeFailureReconciles(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.conn.On("SetAddElements", mock.Anything, mock.Anything).Return(nil)
	f.conn.On("SetDeleteElements", mock.Anything, mock.Anything).Return(nil)
	f.conn.On("Flush").Return(nil).Once()
	f.conn.On("Flush").Return(errors.New("netlink busy")).Once()
	f.conn.On("Flush").Return(nil)
	f.flusher.On("FlushAddress", mock.Anything).Return(0, nil)

	b := binding(t, "10.0.0.2", "aa:bb:cc:dd:ee:01")
	require.True(t, f.gw.Authorize("10.0.0.2", b.MAC))

	assert.False(t, f.gw.Revoke("10.0.0.2", ""))
	assert.True(t, f.conn.HasElement(ClientsSet, clientKey(b)))
	assert.True(t, f.gw.IsAuthorized("10.0.0.2"), "binding still in the kernel set is kept")
	f.flusher.AssertNotCalled(t, "FlushAddress", mock.Anything)

	require.True(t, f.gw.Revoke("10.0.0.2", ""))
	assert.False(t, f.conn.HasElement(ClientsSet, clientKey(b)))
	assert.True(t, f.conn.HasElement(RevokedSet, revokedKey(b.MAC)))
	assert.False(t, f.gw.IsAuthorized("10.0.0.2"))
}

func TestNFTGateway_ReauthorizeAfterRevoke(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.allowBatches()
	f.flusher.On("FlushAddress", mock.Anything).Return(0, nil)

	b := binding(t, "10.0.0.2", "aa:bb:cc:dd:ee:01")
	require.True(t, f.gw.Authorize("10.0.0.2", b.MAC))
	require.True(t, f.gw.Revoke("10.0.0.2", b.MAC))
	require.True(t, f.gw.Authorize("10.0.0.2", b.MAC))

	assert.False(t, f.conn.HasElement(RevokedSet, revokedKey(b.MAC)))
	assert.True(t, f.conn.HasElement(ClientsSet, clientKey(b)))
}

func TestNFTGateway_AuthorizeRejectsBadInput(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)

	assert.False(t, f.gw.Authorize("10.0.0.2", ""))
	assert.False(t, f.gw.Authorize("10.0.0.2", "zz:zz"))
	assert.False(t, f.gw.Authorize("2001:db8::1", "aa:bb:cc:dd:ee:01"))
	f.conn.AssertNotCalled(t, "Flush")
}

func TestNFTGateway_AuthorizeFlushFails(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.conn.On("SetAddElements", mock.Anything, mock.Anything).Return(nil)
	f.conn.On("Flush").Return(errors.New("netlink busy"))

	assert.False(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:01"))
	assert.False(t, f.gw.IsAuthorized("10.0.0.2"))
	assert.Equal(t, 0, f.conn.Len(ClientsSet))
}

func TestNFTGateway_RevokeUnknown(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	assert.False(t, f.gw.Revoke("10.0.0.9", ""))
	assert.False(t, f.gw.Revoke("garbage", ""))
}

func TestNFTGateway_RevokeConntrackFailureStillSucceeds(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.allowBatches()
	f.flusher.On("FlushAddress", mock.Anything).Return(0, errors.New("permission denied"))

	require.True(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:01"))
	assert.True(t, f.gw.Revoke("10.0.0.2", ""))
}

func TestNFTGateway_Cleanup(t *testing.T) {
	f := newGatewayFixture(t, false)
	f.initialize(t)
	f.allowBatches()
	require.True(t, f.gw.Authorize("10.0.0.2", "aa:bb:cc:dd:ee:01"))

	require.NoError(t, f.gw.Cleanup(context.Background()))
	f.runner.AssertCalled(t, "RunInput", BuildCleanupScript("netguard"), "nft", "-f", "-")
	assert.False(t, f.gw.IsAuthorized("10.0.0.2"))
	f.sys.AssertNotCalled(t, "WriteSysctl", network.IPv4ForwardPath, "0")
}

func TestNFTGateway_ImplementsGateway(t *testing.T) {
	var _ Gateway = (*NFTGateway)(nil)
}

func TestClientKey(t *testing.T) {
	b := binding(t, "192.168.1.20", "01:02:03:04:05:06")
	assert.Equal(t, []byte{192, 168, 1, 20, 1, 2, 3, 4, 5, 6, 0, 0}, clientKey(b))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, revokedKey(b.MAC))
}
