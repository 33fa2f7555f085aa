package stats

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/net"
	"github.com/sirupsen/logrus"
)

// HostStats contains cumulative host network counters.
type HostStats struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	Errout      uint64 `json:"errout"`
}

// HostReader reads host-wide network counters.
type HostReader interface {
	// ReadStats returns the current counters summed over all interfaces.
	ReadStats(ctx context.Context) (*HostStats, error)
	// Type returns the reader implementation type for logging.
	Type() string
}

// Compile-time interface check.
var _ HostReader = (*psutilReader)(nil)

type psutilReader struct {
	log logrus.FieldLogger
}

// NewHostReader creates a HostReader backed by gopsutil.
func NewHostReader(log logrus.FieldLogger) HostReader {
	return &psutilReader{log: log.WithField("component", "host-stats")}
}

func (r *psutilReader) Type() string {
	return "gopsutil"
}

func (r *psutilReader) ReadStats(ctx context.Context) (*HostStats, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("reading network counters: %w", err)
	}

	if len(counters) == 0 {
		return nil, fmt.Errorf("no network counters available")
	}

	c := counters[0]

	return &HostStats{
		BytesSent:   c.BytesSent,
		BytesRecv:   c.BytesRecv,
		PacketsSent: c.PacketsSent,
		Errout:      c.Errout,
	}, nil
}
