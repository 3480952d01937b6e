// Package discovery implements LSNP's mDNS/DNS-SD bootstrap (spec.md
// §4.3): it registers a "_lsnp._udp.local." service and concurrently
// browses the same service type, materializing a peer record for each
// instance found. This is best-effort: peers also self-announce via
// PROFILE broadcasts, so a Register/Browse failure only logs a warning
// and never stops the node (spec.md: "mDNS failure does not disable the
// system").
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/ImaginaryLogs/CSNETWK-MCO3/internal/logx"
)

// ServiceType is the DNS-SD service type LSNP peers register under.
const ServiceType = "_lsnp._udp"

// Found describes a peer discovered over mDNS.
type Found struct {
	UserID      string
	DisplayName string
	IP          string
	Port        int
}

// Service registers this node and browses for others.
type Service struct {
	server *zeroconf.Server
	log    *logx.Logger
}

// Register advertises this node's service instance with TXT records
// user_id, display_name, and port (the port is an addition over
// spec.md's bare txt keys — see SPEC_FULL.md §5 — so a peer discovered
// purely via mDNS, before any PROFILE arrives, is immediately
// addressable).
func Register(userID, displayName, ip string, port int, log *logx.Logger) (*Service, error) {
	instance := instanceName(userID)
	txt := []string{
		"user_id=" + userID,
		"display_name=" + displayName,
		"port=" + strconv.Itoa(port),
	}

	server, err := zeroconf.Register(instance, ServiceType, "local.", port, txt, nil)
	if err != nil {
		log.Warn("mDNS register failed, continuing without discovery: %v", err)
		return &Service{log: log}, nil
	}
	return &Service{server: server, log: log}, nil
}

// instanceName builds "<username>_at_<ip-with-dots-as-underscores>" per
// spec.md §4.3.
func instanceName(userID string) string {
	parts := strings.SplitN(userID, "@", 2)
	if len(parts) != 2 {
		return strings.ReplaceAll(userID, ".", "_")
	}
	username, ip := parts[0], parts[1]
	return fmt.Sprintf("%s_at_%s", username, strings.ReplaceAll(ip, ".", "_"))
}

// Browse runs until ctx is cancelled, invoking onFound for each
// discovered instance. Meant to run in its own goroutine.
func (s *Service) Browse(ctx context.Context, onFound func(Found)) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		s.log.Warn("mDNS browse unavailable: %v", err)
		return
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			f, ok := toFound(entry)
			if !ok {
				continue
			}
			onFound(f)
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		s.log.Warn("mDNS browse failed: %v", err)
	}
	<-ctx.Done()
}

// toFound extracts UserID/DisplayName/IP/Port out of a zeroconf entry's
// TXT records, preferring the advertised user_id over a reconstruction
// from the instance name.
func toFound(entry *zeroconf.ServiceEntry) (Found, bool) {
	f := Found{Port: entry.Port}
	for _, kv := range entry.Text {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key, val := kv[:eq], kv[eq+1:]
		switch key {
		case "user_id":
			f.UserID = val
		case "display_name":
			f.DisplayName = val
		}
	}
	if len(entry.AddrIPv4) > 0 {
		f.IP = entry.AddrIPv4[0].String()
	}
	if f.UserID == "" {
		return Found{}, false
	}
	return f, true
}

// Shutdown unregisters the service, if it was registered.
func (s *Service) Shutdown() {
	if s.server != nil {
		s.server.Shutdown()
	}
}
