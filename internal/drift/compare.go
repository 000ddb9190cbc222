package drift

import (
	"fmt"
	"slices"

	"driftwatch/internal/check"
	"driftwatch/pkg/sdk/types"
)

// Compare reports every way runtime fails to satisfy declared. Only declared
// keys, volumes and ports are checked; extra runtime state is ignored.
//
// Findings are ordered by axis (image, environment, labels, volumes, ports)
// and by sorted key within an axis, so identical inputs always render the
// same report.
func Compare(declared ServiceDeclaration, runtime RuntimeDescriptor) []types.Finding {
	var findings []types.Finding
	findings = append(findings, compareImage(declared, runtime)...)
	findings = append(findings, compareEnvironment(declared, runtime)...)
	findings = append(findings, compareLabels(declared, runtime)...)
	findings = append(findings, compareVolumes(declared, runtime)...)
	findings = append(findings, comparePorts(declared, runtime)...)
	return findings
}

func compareImage(declared ServiceDeclaration, runtime RuntimeDescriptor) []types.Finding {
	if runtime.Image == declared.Image {
		return nil
	}
	return []types.Finding{{
		Kind:    types.FindingImage,
		Message: fmt.Sprintf("Image differs: expected '%s' but running '%s'", declared.Image, runtime.Image),
	}}
}

func compareEnvironment(declared ServiceDeclaration, runtime RuntimeDescriptor) []types.Finding {
	var out []types.Finding
	for _, key := range sortedKeys(declared.Environment) {
		want := declared.Environment[key]
		got, ok := runtime.Environment[key]
		if !ok {
			got = Unset()
		}
		if want.Equal(got) {
			continue
		}
		out = append(out, types.Finding{
			Kind:    types.FindingEnvironment,
			Message: fmt.Sprintf("Environment variable '%s' differs: expected '%s' but running '%s'", key, want, got),
		})
	}
	return out
}

func compareLabels(declared ServiceDeclaration, runtime RuntimeDescriptor) []types.Finding {
	var out []types.Finding
	for _, key := range sortedKeys(declared.Labels) {
		want := declared.Labels[key]
		got, ok := runtime.Labels[key]
		if ok && got == want {
			continue
		}
		if !ok {
			got = Unset().String()
		}
		out = append(out, types.Finding{
			Kind:    types.FindingLabels,
			Message: fmt.Sprintf("Label '%s' differs: expected '%s' but running '%s'", key, want, got),
		})
	}
	return out
}

func compareVolumes(declared ServiceDeclaration, runtime RuntimeDescriptor) []types.Finding {
	var out []types.Finding
	for _, want := range declared.Volumes {
		check.Assertf(want.Target != "", "drift.compareVolumes: service %q declares a volume without target", declared.Service)

		mount, ok := findMount(runtime.Mounts, want.Target)
		if !ok {
			out = append(out, types.Finding{
				Kind:    types.FindingVolumes,
				Message: fmt.Sprintf("Volume '%s' is not mounted", want.Target),
			})
			continue
		}
		if want.Source != "" && mount.Source != want.Source {
			out = append(out, types.Finding{
				Kind:    types.FindingVolumes,
				Message: fmt.Sprintf("Volume source for '%s' differs: expected '%s' but running '%s'", want.Target, want.Source, mount.Source),
			})
		}
		if readOnly := !mount.Writable; readOnly != want.ReadOnly {
			out = append(out, types.Finding{
				Kind:    types.FindingVolumes,
				Message: fmt.Sprintf("Volume '%s' read-only setting differs: expected %t but running %t", want.Target, want.ReadOnly, readOnly),
			})
		}
	}
	return out
}

func comparePorts(declared ServiceDeclaration, runtime RuntimeDescriptor) []types.Finding {
	var out []types.Finding
	for _, want := range declared.Ports {
		if want.Published == "" {
			continue
		}
		protocol := normalizeProtocol(want.Protocol)
		bindings := runtime.Ports[PortKey(want.Target, protocol)]
		if len(bindings) == 0 {
			out = append(out, types.Finding{
				Kind:    types.FindingPorts,
				Message: fmt.Sprintf("Port %d/%s is not published (expected %s)", want.Target, protocol, want.Published),
			})
			continue
		}
		if got := bindings[0].HostPort; got != want.Published {
			out = append(out, types.Finding{
				Kind:    types.FindingPorts,
				Message: fmt.Sprintf("Port %d/%s differs: expected published on %s but running on %s", want.Target, protocol, want.Published, got),
			})
		}
	}
	return out
}

// findMount returns the first mount whose destination is target.
func findMount(mounts []Mount, target string) (Mount, bool) {
	for _, m := range mounts {
		if m.Destination == target {
			return m, true
		}
	}
	return Mount{}, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
