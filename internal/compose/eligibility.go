package compose

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

const runsOnMarker = "runs-on:"

// IsEligible reports whether the compose file at path is designated to run on
// hostID. Only the first line is read, so files for other hosts are rejected
// without being parsed.
func IsEligible(path, hostID string) bool {
	hosts, err := RunsOn(path)
	if err != nil {
		slog.With("component", "compose").Warn("read runs-on marker", "path", path, "err", err)
		return false
	}
	hostID = strings.TrimSpace(hostID)
	return hostID != "" && slices.Contains(hosts, hostID)
}

// RunsOn returns the hosts named by the marker on the first line of the
// compose file at path. Unlike IsEligible it reports an unreadable file as an
// error instead of treating it as designated elsewhere.
func RunsOn(path string) ([]string, error) {
	line, err := readFirstLine(path)
	if err != nil {
		return nil, fmt.Errorf("read runs-on marker %s: %w", path, err)
	}
	return ParseRunsOn(line), nil
}

// ParseRunsOn extracts the host list from a "runs-on:" marker line such as
// "# runs-on: nas, pi". The list ends at the next colon. It returns nil when
// the marker is missing or lists no hosts.
func ParseRunsOn(line string) []string {
	_, rest, ok := strings.Cut(line, runsOnMarker)
	if !ok {
		return nil
	}
	rest, _, _ = strings.Cut(rest, ":")

	var hosts []string
	for _, item := range strings.Split(rest, ",") {
		if item = strings.TrimSpace(item); item != "" {
			hosts = append(hosts, item)
		}
	}
	return hosts
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
