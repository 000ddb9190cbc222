package drift

import "driftwatch/pkg/sdk/types"

// ClassifyContainer maps one container's findings and runtime signals to a
// status. A nil runtime means the container could not be inspected.
//
// Drift outranks health: a container can pass its own health check while
// running stale configuration.
func ClassifyContainer(findings []types.Finding, runtime *RuntimeDescriptor, restartPolicy string) types.Status {
	if runtime == nil {
		return types.StatusDown
	}
	if len(findings) > 0 {
		return types.StatusOutdated
	}
	switch runtime.Health {
	case HealthHealthy:
		return types.StatusHealthy
	case HealthUnhealthy:
		return types.StatusUnhealthy
	}
	if runtime.State == RunStateRunning {
		return types.StatusUp
	}
	if runtime.State == RunStateExited && BoundedTask(restartPolicy) && runtime.ExitCode == 0 {
		return types.StatusCompleted
	}
	return types.StatusDown
}

// ClassifyUnit folds container statuses into one unit status. The order of
// the checks matters: one unhealthy or outdated container makes the whole
// unit actionable.
func ClassifyUnit(statuses []types.Status) types.Status {
	if len(statuses) == 0 {
		return types.StatusDown
	}
	if all(statuses, types.StatusHealthy) {
		return types.StatusHealthy
	}
	if anyOf(statuses, types.StatusUnhealthy) {
		return types.StatusUnhealthy
	}
	if anyOf(statuses, types.StatusOutdated) {
		return types.StatusOutdated
	}
	if anyOf(statuses, types.StatusDown) {
		return types.StatusDown
	}
	if all(statuses, types.StatusCompleted) {
		return types.StatusCompleted
	}
	if all(statuses, types.StatusUp, types.StatusHealthy, types.StatusCompleted) {
		return types.StatusUp
	}
	return types.StatusDown
}

// all reports whether every status is one of allowed.
func all(statuses []types.Status, allowed ...types.Status) bool {
	for _, s := range statuses {
		if !anyOf(allowed, s) {
			return false
		}
	}
	return true
}

func anyOf(statuses []types.Status, want types.Status) bool {
	for _, s := range statuses {
		if s == want {
			return true
		}
	}
	return false
}
