// Package transport owns the single UDP socket LSNP communicates over
// (spec.md §4.5): one process-wide bound socket, a dedicated receive
// loop, and synchronous send-to and subnet-broadcast operations.
//
// The technique for finding the local IPv4 address and deriving its
// subnet broadcast address is adapted from the teacher's beacon package
// (beacon/beacon.go: start()), which walks net.Interfaces() and computes
// a broadcast address from each interface's CIDR. The teacher's actual
// socket layer (ZMQ ROUTER/DEALER via pebbe/zmq4) is replaced with a
// plain net.UDPConn, since LSNP's wire format is text frames over one
// broadcast-enabled UDP socket rather than a ZMQ message-queue mesh.
package transport

import (
	"errors"
	"net"
	"strings"
)

// BufferSize is the maximum datagram size (spec.md §6).
const BufferSize = 4096

// DefaultPort is the default LSNP UDP port (spec.md §6).
const DefaultPort = 50999

// Socket is the bound UDP endpoint with broadcast permission enabled.
type Socket struct {
	conn      *net.UDPConn
	localIP   string
	port      int
	broadcast string
}

// Bind opens a UDP socket on INADDR_ANY:port with broadcast enabled, and
// determines the local IPv4 address and its subnet broadcast address.
func Bind(port int) (*Socket, error) {
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}

	localIP, bcast, err := localAddressAndBroadcast()
	if err != nil {
		conn.Close()
		return nil, err
	}

	actualPort := conn.LocalAddr().(*net.UDPAddr).Port
	return &Socket{conn: conn, localIP: localIP, port: actualPort, broadcast: bcast}, nil
}

// LocalIP returns the local IPv4 address chosen for this socket.
func (s *Socket) LocalIP() string { return s.localIP }

// Port returns the bound UDP port.
func (s *Socket) Port() int { return s.port }

// BroadcastAddr returns the bound interface's subnet broadcast address,
// computed from its netmask ("<subnet_prefix>.255" on a /24).
func (s *Socket) BroadcastAddr() string { return s.broadcast }

// Receive blocks until a datagram arrives, returning its payload and
// source IP (not including port — sender-IP binding only checks the
// host, per spec.md §4.6).
func (s *Socket) Receive() (payload []byte, sourceIP string, err error) {
	buf := make([]byte, BufferSize)
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, "", err
	}
	return buf[:n], addr.IP.String(), nil
}

// SendTo synchronously sends a payload to an explicit (ip, port).
func (s *Socket) SendTo(payload []byte, ip string, port int) error {
	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
	_, err := s.conn.WriteToUDP(payload, addr)
	return err
}

// Broadcast sends a payload to the subnet broadcast address on the bound
// port.
func (s *Socket) Broadcast(payload []byte) error {
	return s.SendTo(payload, s.broadcast, s.port)
}

// Close releases the socket.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// localAddressAndBroadcast finds the first non-loopback IPv4 interface
// address and computes its subnet broadcast address, mirroring
// beacon.go's interface-walking technique (net.Interfaces + ParseCIDR +
// OR-ing the host bits of the broadcast mask).
func localAddressAndBroadcast() (ip string, broadcast string, err error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", "", err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipNet.IP.To4()
			if v4 == nil {
				continue
			}
			bcastIP := make(net.IP, len(v4))
			for i := range v4 {
				bcastIP[i] = v4[i] | ^ipNet.Mask[i]
			}
			return v4.String(), bcastIP.String(), nil
		}
	}

	return "", "", errors.New("transport: no usable IPv4 interface found")
}

// SubnetPrefix returns the "a.b.c" portion of a dotted IPv4 address, used
// for display/logging of the broadcast domain.
func SubnetPrefix(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return strings.Join(parts[:3], ".")
}
