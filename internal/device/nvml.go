package device

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlLibraryNames are tried in order until one loads.
var nvmlLibraryNames = []string{
	"libnvidia-ml.so",   // Linux
	"libnvidia-ml.so.1", // WSL
	"nvml.dll",          // Windows
}

// rawDevice is the driver-reported view of one device before budgeting.
type rawDevice struct {
	TotalMemory  uint64
	Name         string
	PowerLimit   uint32 // milliwatts, 0 when unknown
	ComputeMajor int
	ComputeMinor int
}

// querier is the slice of NVML that discovery needs. Tests substitute fakes.
type querier interface {
	DeviceCount() (int, error)
	DeviceByOrdinal(ordinal int) (rawDevice, error)
	Shutdown()
}

type nvmlQuerier struct {
	lib nvml.Interface
}

// openNVML loads NVML, trying each candidate library name in order.
func openNVML() (querier, error) {
	for _, name := range nvmlLibraryNames {
		lib := nvml.New(nvml.WithLibraryPath(name))
		if ret := lib.Init(); ret == nvml.SUCCESS {
			return &nvmlQuerier{lib: lib}, nil
		}
	}
	return nil, ErrInit
}

func (q *nvmlQuerier) DeviceCount() (int, error) {
	n, ret := q.lib.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("nvml device count: %s", nvml.ErrorString(ret))
	}
	return n, nil
}

func (q *nvmlQuerier) DeviceByOrdinal(ordinal int) (rawDevice, error) {
	dev, ret := q.lib.DeviceGetHandleByIndex(ordinal)
	if ret != nvml.SUCCESS {
		return rawDevice{}, fmt.Errorf("device %d: %s", ordinal, nvml.ErrorString(ret))
	}
	mem, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return rawDevice{}, fmt.Errorf("device %d memory info: %s", ordinal, nvml.ErrorString(ret))
	}
	raw := rawDevice{TotalMemory: mem.Total}
	// Metadata is best-effort; a device without a readable name is still usable.
	if name, ret := dev.GetName(); ret == nvml.SUCCESS {
		raw.Name = name
	}
	if limit, ret := dev.GetEnforcedPowerLimit(); ret == nvml.SUCCESS {
		raw.PowerLimit = limit
	}
	if major, minor, ret := dev.GetCudaComputeCapability(); ret == nvml.SUCCESS {
		raw.ComputeMajor, raw.ComputeMinor = major, minor
	}
	return raw, nil
}

func (q *nvmlQuerier) Shutdown() {
	_ = q.lib.Shutdown()
}
