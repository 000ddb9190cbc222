package compose

import (
	"slices"
	"strings"

	"driftwatch/internal/drift"

	composetypes "github.com/compose-spec/compose-go/v2/types"
)

// Declarations extracts the declared state of every service in project,
// ordered by service name.
func Declarations(project *composetypes.Project) []drift.ServiceDeclaration {
	if project == nil || len(project.Services) == 0 {
		return nil
	}

	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]drift.ServiceDeclaration, 0, len(names))
	for _, name := range names {
		svc := project.Services[name]
		if svc.Name == "" {
			svc.Name = name
		}
		out = append(out, NormalizeService(project, svc))
	}
	return out
}

// NormalizeService extracts the fields drift detection compares from a
// compose ServiceConfig.
func NormalizeService(project *composetypes.Project, svc composetypes.ServiceConfig) drift.ServiceDeclaration {
	containerName := strings.TrimSpace(svc.ContainerName)
	if containerName == "" {
		containerName = svc.Name
	}
	return drift.ServiceDeclaration{
		Service:       svc.Name,
		ContainerName: containerName,
		Image:         svc.Image,
		Environment:   normalizeEnvironment(svc.Environment),
		Labels:        normalizeLabels(svc.Labels),
		Volumes:       normalizeVolumes(project, svc.Volumes),
		Ports:         normalizePorts(svc.Ports),
		RestartPolicy: strings.TrimSpace(svc.Restart),
	}
}

func normalizeEnvironment(env composetypes.MappingWithEquals) map[string]drift.EnvValue {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]drift.EnvValue, len(env))
	for key, value := range env {
		if value == nil {
			out[key] = drift.Empty()
			continue
		}
		out[key] = drift.Value(*value)
	}
	return out
}

func normalizeLabels(labels composetypes.Labels) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for key, value := range labels {
		out[key] = value
	}
	return out
}

// normalizeVolumes keeps declaration order. Named volume sources are
// replaced by the engine-level volume name so they compare against what
// the runtime reports.
func normalizeVolumes(project *composetypes.Project, volumes []composetypes.ServiceVolumeConfig) []drift.VolumeDecl {
	if len(volumes) == 0 {
		return nil
	}
	out := make([]drift.VolumeDecl, 0, len(volumes))
	for _, v := range volumes {
		if strings.TrimSpace(v.Target) == "" {
			continue
		}
		source := v.Source
		if v.Type == composetypes.VolumeTypeVolume && source != "" && project != nil {
			if named, ok := project.Volumes[source]; ok && named.Name != "" {
				source = named.Name
			}
		}
		out = append(out, drift.VolumeDecl{
			Type:     v.Type,
			Source:   source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}
	return out
}

func normalizePorts(ports []composetypes.ServicePortConfig) []drift.PortDecl {
	if len(ports) == 0 {
		return nil
	}
	out := make([]drift.PortDecl, 0, len(ports))
	for _, p := range ports {
		protocol := strings.ToLower(strings.TrimSpace(p.Protocol))
		if protocol == "" {
			protocol = "tcp"
		}
		out = append(out, drift.PortDecl{
			Target:    p.Target,
			Published: strings.TrimSpace(p.Published),
			Protocol:  protocol,
		})
	}
	return out
}
