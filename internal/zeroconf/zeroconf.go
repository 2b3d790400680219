// Package zeroconf advertises the daemon's status endpoint over mDNS/DNS-SD
// so collectors on the LAN can find it.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type the status endpoint registers under.
const ServiceType = "_lpg._tcp"

// Service manages mDNS service registration.
type Service struct {
	name string
	port int

	mu     sync.Mutex
	txt    map[string]string
	server *zeroconf.Server
}

// New creates a Service advertising name on port. txt entries become TXT
// records, e.g. chip=pmi8994-lpg.
func New(name string, port int, txt map[string]string) *Service {
	return &Service{name: name, port: port, txt: txt}
}

// Records returns the TXT records in key order.
func (s *Service) Records() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordsLocked()
}

// SetTXT replaces the TXT records. A registered service re-announces them.
func (s *Service) SetTXT(txt map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txt = txt
	if s.server != nil {
		s.server.SetText(s.recordsLocked())
	}
}

func (s *Service) recordsLocked() []string {
	keys := make([]string, 0, len(s.txt))
	for k := range s.txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+s.txt[k])
	}
	return out
}

// Run registers the service and blocks until ctx is done, then unregisters.
func (s *Service) Run(ctx context.Context) error {
	if s.port <= 0 {
		return fmt.Errorf("zeroconf: invalid port %d", s.port)
	}
	s.mu.Lock()
	txt := s.recordsLocked()
	server, err := zeroconf.Register(s.name, ServiceType, "local.", s.port, txt, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	s.mu.Unlock()
	slog.Info("zeroconf: registered", "name", s.name, "type", ServiceType, "port", s.port, "txt", txt)

	<-ctx.Done()

	s.mu.Lock()
	s.server = nil
	s.mu.Unlock()
	server.Shutdown()
	slog.Info("zeroconf: unregistered")
	return nil
}
