package docker

import (
	"strings"

	"driftwatch/internal/drift"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
)

// Descriptor converts an inspect response into the runtime descriptor drift
// detection compares against.
func Descriptor(info container.InspectResponse) *drift.RuntimeDescriptor {
	desc := &drift.RuntimeDescriptor{}
	if info.ContainerJSONBase != nil {
		desc.ID = info.ID
		desc.Name = strings.TrimPrefix(info.Name, "/")
		if st := info.State; st != nil {
			desc.State = string(st.Status)
			desc.ExitCode = st.ExitCode
			if st.Health != nil {
				desc.Health = string(st.Health.Status)
			}
		}
	}
	if cfg := info.Config; cfg != nil {
		desc.Image = cfg.Image
		desc.Environment = drift.ParseEnv(cfg.Env)
		desc.Labels = copyLabels(cfg.Labels)
	}
	desc.Mounts = mounts(info.Mounts)
	if info.NetworkSettings != nil {
		desc.Ports = portBindings(info.NetworkSettings.Ports)
	}
	return desc
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// mounts reports named volumes by volume name so they compare against the
// resolved compose volume name rather than the engine's data path.
func mounts(points []container.MountPoint) []drift.Mount {
	if len(points) == 0 {
		return nil
	}
	out := make([]drift.Mount, 0, len(points))
	for _, mp := range points {
		source := mp.Source
		if mp.Type == mount.TypeVolume && mp.Name != "" {
			source = mp.Name
		}
		out = append(out, drift.Mount{
			Type:        string(mp.Type),
			Source:      source,
			Destination: mp.Destination,
			Writable:    mp.RW,
		})
	}
	return out
}

func portBindings(ports nat.PortMap) map[string][]drift.PortBinding {
	if len(ports) == 0 {
		return nil
	}
	out := make(map[string][]drift.PortBinding, len(ports))
	for port, bindings := range ports {
		key := drift.PortKey(uint32(port.Int()), port.Proto())
		list := make([]drift.PortBinding, 0, len(bindings))
		for _, b := range bindings {
			list = append(list, drift.PortBinding{HostIP: b.HostIP, HostPort: b.HostPort})
		}
		out[key] = list
	}
	return out
}
