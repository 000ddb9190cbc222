// Package drift compares declared compose services against live container
// state and classifies the outcome.
//
// Everything in this package is pure: callers fetch declarations and runtime
// descriptors, this package only decides.
package drift

import (
	"strconv"
	"strings"
)

// EnvState distinguishes the three shapes an environment entry can take.
type EnvState uint8

const (
	// EnvAbsent means the key is not set at all.
	EnvAbsent EnvState = iota
	// EnvEmpty means the key is present without a value (bare "KEY").
	EnvEmpty
	// EnvSet means the key carries a value, possibly the empty string.
	EnvSet
)

// EnvValue is one environment entry.
type EnvValue struct {
	State EnvState
	Value string
}

func Unset() EnvValue         { return EnvValue{State: EnvAbsent} }
func Empty() EnvValue         { return EnvValue{State: EnvEmpty} }
func Value(v string) EnvValue { return EnvValue{State: EnvSet, Value: v} }

func (v EnvValue) Equal(o EnvValue) bool {
	if v.State != o.State {
		return false
	}
	return v.State != EnvSet || v.Value == o.Value
}

func (v EnvValue) String() string {
	switch v.State {
	case EnvAbsent:
		return "(not set)"
	case EnvEmpty:
		return "(empty)"
	default:
		return v.Value
	}
}

// ParseEnv parses runtime "KEY=VALUE" and bare "KEY" entries. Bare entries
// map to EnvEmpty. Later duplicates win.
func ParseEnv(entries []string) map[string]EnvValue {
	out := make(map[string]EnvValue, len(entries))
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			out[entry] = Empty()
			continue
		}
		out[key] = Value(value)
	}
	return out
}

type VolumeDecl struct {
	Type     string
	Source   string
	Target   string
	ReadOnly bool
}

type PortDecl struct {
	Target    uint32
	Published string
	Protocol  string
}

// ServiceDeclaration is one service's intended configuration.
type ServiceDeclaration struct {
	Service       string
	ContainerName string
	Image         string
	Environment   map[string]EnvValue
	Labels        map[string]string
	Volumes       []VolumeDecl
	Ports         []PortDecl
	RestartPolicy string
}

// BoundedTask reports whether a restart policy marks a cron-style service
// that is expected to run to completion rather than stay up.
func BoundedTask(restartPolicy string) bool {
	policy := strings.TrimSpace(restartPolicy)
	return policy == "" || policy == "no"
}

const (
	RunStateRunning = "running"
	RunStateExited  = "exited"

	HealthHealthy   = "healthy"
	HealthUnhealthy = "unhealthy"
)

type Mount struct {
	Type        string
	Source      string
	Destination string
	Writable    bool
}

type PortBinding struct {
	HostIP   string
	HostPort string
}

// RuntimeDescriptor is a point-in-time snapshot of one container.
type RuntimeDescriptor struct {
	ID          string
	Name        string
	Image       string
	State       string
	ExitCode    int
	Health      string
	Environment map[string]EnvValue
	Labels      map[string]string
	Mounts      []Mount
	// Ports is keyed by "port/protocol".
	Ports map[string][]PortBinding
}

// PortKey formats the "port/protocol" key used by RuntimeDescriptor.Ports.
func PortKey(port uint32, protocol string) string {
	return strconv.FormatUint(uint64(port), 10) + "/" + normalizeProtocol(protocol)
}

func normalizeProtocol(protocol string) string {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	if protocol == "" {
		return "tcp"
	}
	return protocol
}
