package ui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"driftwatch/pkg/sdk/types"
)

// ScanReport renders one row per container, grouped by unit, followed by the
// drift findings and a summary line. It ends with a newline.
func ScanReport(result *types.ScanResult) string {
	if result == nil || len(result.Units) == 0 {
		return InfoMsg("No compose files are assigned to this host.") + "\n"
	}

	var rows [][]string
	var findings []string
	for _, unit := range result.Units {
		for i, c := range unit.Containers {
			path, unitStatus := "", ""
			if i == 0 {
				path, unitStatus = unit.Path, Status(unit.Status)
			}
			rows = append(rows, []string{path, unitStatus, c.Name, c.Image, Status(c.Status), Ports(c.Ports)})
			for _, f := range c.Findings {
				findings = append(findings, fmt.Sprintf("  %s %s %s", Bold(c.Name), Muted("["+string(f.Kind)+"]"), f.Message))
			}
		}
		if len(unit.Containers) == 0 {
			rows = append(rows, []string{unit.Path, Status(unit.Status), Muted("(no services)"), "", "", ""})
		}
	}

	var sb strings.Builder
	sb.WriteString(Table([]string{"COMPOSE FILE", "UNIT", "CONTAINER", "IMAGE", "STATUS", "PORTS"}, rows, 0))
	sb.WriteString("\n")
	if len(findings) > 0 {
		sb.WriteString("\n" + WarnMsg("Drift detected:") + "\n")
		sb.WriteString(strings.Join(findings, "\n") + "\n")
	}
	sb.WriteString("\n" + Summary(result) + "\n")
	return sb.String()
}

// Summary counts units per status, e.g. "3 units: 2 Healthy, 1 Outdated (scanned ... in 1.2s)".
func Summary(result *types.ScanResult) string {
	units, _ := result.Count()
	parts := make([]string, 0, len(types.Statuses))
	for _, s := range types.Statuses {
		if n := units[s]; n > 0 {
			parts = append(parts, strconv.Itoa(n)+" "+Status(s))
		}
	}
	noun := "units"
	if len(result.Units) == 1 {
		noun = "unit"
	}
	meta := result.Metadata
	return fmt.Sprintf("%d %s: %s %s", len(result.Units), noun, strings.Join(parts, ", "),
		Muted(fmt.Sprintf("(scanned %s in %s)", meta.Datetime.Local().Format(time.DateTime), meta.TimeTaken())))
}

// Ports renders published ports as "8080->80/tcp", sorted for stable output.
func Ports(ports []types.Port) string {
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		target := strconv.FormatUint(uint64(p.Target), 10) + "/" + proto
		switch {
		case p.Published == "":
			out = append(out, target)
		case p.HostIP != "" && p.HostIP != "0.0.0.0" && p.HostIP != "::":
			out = append(out, p.HostIP+":"+p.Published+"->"+target)
		default:
			out = append(out, p.Published+"->"+target)
		}
	}
	slices.Sort(out)
	return strings.Join(slices.Compact(out), ", ")
}

func RestartHistory(records []types.RestartRecord) string {
	if len(records) == 0 {
		return InfoMsg("No restarts recorded.")
	}
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		result := Success("ok")
		if r.Error != "" {
			result = Failure(r.Error)
		}
		rows = append(rows, []string{
			r.CreatedAt.Local().Format(time.DateTime),
			r.Unit,
			r.Host,
			r.Pull.Round(time.Millisecond).String(),
			r.Restart.Round(time.Millisecond).String(),
			result,
		})
	}
	return Table([]string{"WHEN", "COMPOSE FILE", "HOST", "PULL", "RESTART", "RESULT"}, rows)
}
