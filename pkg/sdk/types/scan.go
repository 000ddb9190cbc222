package types

import "time"

// Status is the verdict for one container, or the folded verdict for a
// deployment unit.
type Status string

const (
	StatusDown      Status = "Down"
	StatusOutdated  Status = "Outdated"
	StatusUp        Status = "Up"
	StatusUnhealthy Status = "Unhealthy"
	StatusHealthy   Status = "Healthy"
	StatusCompleted Status = "Completed"
)

// Statuses lists every status value in display order.
var Statuses = []Status{
	StatusDown,
	StatusOutdated,
	StatusUp,
	StatusUnhealthy,
	StatusHealthy,
	StatusCompleted,
}

func (s Status) IsValid() bool {
	switch s {
	case StatusDown, StatusOutdated, StatusUp, StatusUnhealthy, StatusHealthy, StatusCompleted:
		return true
	default:
		return false
	}
}

// FindingKind names the axis a drift finding was detected on.
type FindingKind string

const (
	FindingImage       FindingKind = "image"
	FindingEnvironment FindingKind = "environment"
	FindingLabels      FindingKind = "labels"
	FindingVolumes     FindingKind = "volumes"
	FindingPorts       FindingKind = "ports"
)

func (k FindingKind) IsValid() bool {
	switch k {
	case FindingImage, FindingEnvironment, FindingLabels, FindingVolumes, FindingPorts:
		return true
	default:
		return false
	}
}

// Finding is one declared-vs-live mismatch.
type Finding struct {
	Kind    FindingKind `json:"type"`
	Message string      `json:"message"`
}

type Port struct {
	Target    uint32 `json:"target"`
	Published string `json:"published,omitempty"`
	HostIP    string `json:"hostIp,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
}

type Volume struct {
	Type     string `json:"type"`
	Source   string `json:"source,omitempty"`
	Target   string `json:"target"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

type ContainerResult struct {
	Name     string            `json:"name"`
	Service  string            `json:"service"`
	Image    string            `json:"image"`
	Status   Status            `json:"status"`
	Findings []Finding         `json:"outdatedDetails,omitempty"`
	Ports    []Port            `json:"ports"`
	Volumes  []Volume          `json:"volumes"`
	Labels   map[string]string `json:"labels"`

	// Environment is the declared environment. A key declared without a
	// value maps to nil and renders as null.
	Environment map[string]*string `json:"environment"`
}

type UnitResult struct {
	Path       string            `json:"path"`
	Status     Status            `json:"status"`
	Containers []ContainerResult `json:"containers"`
}

type ScanMetadata struct {
	ID       string    `json:"id"`
	// Datetime is when the pass completed.
	Datetime time.Time `json:"datetime"`
	// TimeTakenMS is the wall-clock duration of the pass in milliseconds.
	TimeTakenMS int64 `json:"timeTaken"`
}

func (m ScanMetadata) TimeTaken() time.Duration {
	return time.Duration(m.TimeTakenMS) * time.Millisecond
}

// ScanResult is one complete scan pass. It is never mutated after it is
// published; a new pass produces a new value.
type ScanResult struct {
	Units    []UnitResult `json:"composeFiles"`
	Metadata ScanMetadata `json:"metadata"`
}

// OutdatedUnits returns the paths of units with at least one Outdated
// container, in scan order.
func (r *ScanResult) OutdatedUnits() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0)
	for _, unit := range r.Units {
		for _, c := range unit.Containers {
			if c.Status == StatusOutdated {
				out = append(out, unit.Path)
				break
			}
		}
	}
	return out
}

// Count returns how many units and containers carry each status.
func (r *ScanResult) Count() (units, containers map[Status]int) {
	units = make(map[Status]int, len(Statuses))
	containers = make(map[Status]int, len(Statuses))
	if r == nil {
		return units, containers
	}
	for _, unit := range r.Units {
		units[unit.Status]++
		for _, c := range unit.Containers {
			containers[c.Status]++
		}
	}
	return units, containers
}

// OutdatedResponse is the body of the outdated-units query.
type OutdatedResponse struct {
	Units []string `json:"composeFiles"`
}

// RestartRequest selects the units to restart. An empty list restarts every
// unit currently classified Outdated.
type RestartRequest struct {
	Units []string `json:"composeFiles,omitempty"`
}

// RestartTiming reports how long one unit took to pull and recreate. Skipped
// units were not designated for this host and were brought down instead.
type RestartTiming struct {
	Unit    string        `json:"path"`
	Pull    time.Duration `json:"pull"`
	Restart time.Duration `json:"restart"`
	Skipped bool          `json:"skipped,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RestartRecord is one stored restart, as listed by the restart history.
type RestartRecord struct {
	ID        int64         `json:"id"`
	Unit      string        `json:"path"`
	Host      string        `json:"host"`
	Pull      time.Duration `json:"pull"`
	Restart   time.Duration `json:"restart"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// RestartResponse acknowledges a restart request.
type RestartResponse struct {
	Status string   `json:"status"`
	Units  []string `json:"composeFiles"`
}
