package ui

import (
	"strings"
	"testing"
	"time"

	"driftwatch/pkg/sdk/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestPorts(t *testing.T) {
	tests := []struct {
		name  string
		ports []types.Port
		want  string
	}{
		{name: "none", want: ""},
		{name: "unpublished", ports: []types.Port{{Target: 5432, Protocol: "tcp"}}, want: "5432/tcp"},
		{
			name: "published sorted and deduplicated",
			ports: []types.Port{
				{Target: 443, Published: "8443", HostIP: "0.0.0.0", Protocol: "tcp"},
				{Target: 443, Published: "8443", HostIP: "::", Protocol: "tcp"},
				{Target: 80, Published: "8080"},
			},
			want: "8080->80/tcp, 8443->443/tcp",
		},
		{name: "bound address", ports: []types.Port{{Target: 53, Published: "53", HostIP: "127.0.0.1", Protocol: "udp"}}, want: "127.0.0.1:53->53/udp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ports(tt.ports); got != tt.want {
				t.Fatalf("Ports() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScanReport(t *testing.T) {
	result := &types.ScanResult{
		Units: []types.UnitResult{{
			Path:   "web/docker-compose.yml",
			Status: types.StatusOutdated,
			Containers: []types.ContainerResult{{
				Name:     "web",
				Image:    "nginx:1.25",
				Status:   types.StatusOutdated,
				Findings: []types.Finding{{Kind: types.FindingImage, Message: "Image differs"}},
			}},
		}},
		Metadata: types.ScanMetadata{Datetime: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC), TimeTakenMS: 1500},
	}

	got := ScanReport(result)
	for _, want := range []string{"web/docker-compose.yml", "nginx:1.25", "Outdated", "[image] Image differs", "1 unit: 1 Outdated", "in 1.5s"} {
		if !strings.Contains(got, want) {
			t.Fatalf("ScanReport() missing %q:\n%s", want, got)
		}
	}
}

func TestScanReportEmpty(t *testing.T) {
	if got := ScanReport(&types.ScanResult{}); !strings.Contains(got, "No compose files") {
		t.Fatalf("ScanReport(empty) = %q", got)
	}
}
