package sshnode

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/model"
)

// overviewCommand is the canonical multi-probe command run over SSH to
// build a NodeOverview: one line per metric, in KEY=value form, so a
// single round trip yields hostname, OS release, kernel, uptime, load
// average and memory/disk figures (SPEC_FULL.md §D.1).
const overviewCommand = `printf 'HOSTNAME=%s\n' "$(hostname)"; ` +
	`printf 'OS_NAME=%s\n' "$(. /etc/os-release 2>/dev/null; echo ${PRETTY_NAME:-unknown})"; ` +
	`printf 'KERNEL=%s\n' "$(uname -r)"; ` +
	`printf 'UPTIME=%s\n' "$(uptime -p 2>/dev/null || uptime)"; ` +
	`printf 'LOAD_AVG=%s\n' "$(cat /proc/loadavg 2>/dev/null | awk '{print $1" "$2" "$3}')"; ` +
	`printf 'MEM_TOTAL_KB=%s\n' "$(grep MemTotal /proc/meminfo 2>/dev/null | awk '{print $2}')"; ` +
	`printf 'MEM_AVAILABLE_KB=%s\n' "$(grep MemAvailable /proc/meminfo 2>/dev/null | awk '{print $2}')"; ` +
	`printf 'ROOT_DISK=%s\n' "$(df -Pk / 2>/dev/null | tail -1 | awk '{print $2" "$3" "$5}')"`

// Health thresholds: a 1-minute load average of 2 or more is "warning"
// and 4 or more is "critical"; memory/disk use percent follow the
// conventional 75%/90% warn/critical split.
const (
	loadWarnThreshold     = 2.0
	loadCriticalThreshold = 4.0
	pctWarnThreshold      = 75.0
	pctCriticalThreshold  = 90.0
)

// Overview runs the canonical multi-probe command against nodeID and
// derives a threshold-evaluated NodeOverview (spec §4.7).
func (s *Service) Overview(ctx context.Context, userID, nodeID string) (*model.NodeOverview, error) {
	node, err := s.nodes.FindByID(ctx, nodeID)
	if err != nil {
		return nil, apperr.ServerError(err, "find ssh node")
	}
	if node == nil || node.UserID != userID {
		return nil, apperr.NotFound("ssh node %s", nodeID)
	}

	output, _, err := s.runner.Run(ctx, node, overviewCommand)
	if err != nil {
		return nil, apperr.ServerError(err, "probe ssh node")
	}

	return parseOverview(output), nil
}

// parseOverview turns overviewCommand's KEY=value output into a
// threshold-evaluated NodeOverview.
func parseOverview(output string) *model.NodeOverview {
	fields := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || key == "" {
			continue
		}
		fields[key] = value
	}

	loadAvg := firstFloat(fields["LOAD_AVG"])
	memTotal := firstInt(fields["MEM_TOTAL_KB"])
	memAvail := firstInt(fields["MEM_AVAILABLE_KB"])
	memUsedPct := percentOf(memTotal-memAvail, memTotal)
	diskUsedPct := diskPercent(fields["ROOT_DISK"])

	overview := &model.NodeOverview{
		Hostname:      fields["HOSTNAME"],
		OSRelease:     fields["OS_NAME"],
		Kernel:        fields["KERNEL"],
		Uptime:        fields["UPTIME"],
		LoadAverage1m: loadAvg,
		MemTotalKB:    memTotal,
		MemAvailKB:    memAvail,
		MemUsedPct:    memUsedPct,
		DiskUsedPct:   diskUsedPct,
	}
	overview.Status = healthStatus(loadAvg, memUsedPct, diskUsedPct)
	return overview
}

func healthStatus(loadAvg, memUsedPct, diskUsedPct float64) model.NodeHealthStatus {
	if loadAvg >= loadCriticalThreshold || memUsedPct >= pctCriticalThreshold || diskUsedPct >= pctCriticalThreshold {
		return model.NodeCritical
	}
	if loadAvg >= loadWarnThreshold || memUsedPct >= pctWarnThreshold || diskUsedPct >= pctWarnThreshold {
		return model.NodeWarning
	}
	return model.NodeHealthy
}

var digitsRE = regexp.MustCompile(`\d+(\.\d+)?`)

func firstFloat(s string) float64 {
	field, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0
	}
	return v
}

func firstInt(s string) int64 {
	m := digitsRE.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSuffix(m, "."), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// diskPercent parses the "<total> <used> <use%>" ROOT_DISK field
// produced by `df -Pk / | tail -1 | awk '{print $2" "$3" "$5}'`.
func diskPercent(rootDisk string) float64 {
	parts := strings.Fields(rootDisk)
	if len(parts) < 3 {
		return 0
	}
	return firstFloat(strings.TrimSuffix(parts[2], "%"))
}

func percentOf(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
