package device

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"llamad/pkg/types"
)

// Overhead is the fixed per-device memory reserve subtracted from the raw
// total before budgeting. It covers the CUDA context and allocator slack.
const Overhead = 512 * 1024 * 1024

// maxProbeOrdinal bounds sequential enumeration so a driver that reports a
// device count which never converges cannot loop forever.
const maxProbeOrdinal = 100

const gib = 1024 * 1024 * 1024

// Device is one usable accelerator. Devices reporting zero total memory, or
// less than Overhead, are never stored.
type Device struct {
	Ordinal         int
	TotalMemory     uint64
	AvailableMemory uint64 // TotalMemory - Overhead
	Name            string
	PowerLimit      uint32 // milliwatts, 0 when unknown
	ComputeMajor    int
	ComputeMinor    int
}

// Options controls discovery.
type Options struct {
	// Ordinals to query. Empty probes sequentially from 0 until the
	// driver-reported device count is reached.
	Ordinals []int
	// Primary is the explicit primary-device ordinal; negative selects the
	// device with the most available memory automatically.
	Primary int
	// Strict aborts discovery on a per-device query failure instead of
	// skipping it, and rejects an absent explicit primary instead of
	// falling back to automatic selection.
	Strict bool
	Logger zerolog.Logger
}

// Inventory is the result of discovery. It is built once and never mutated.
type Inventory struct {
	devices []Device
	primary int
}

// Discover enumerates accelerators through NVML and builds an Inventory.
func Discover(opts Options) (*Inventory, error) {
	q, err := openNVML()
	if err != nil {
		return nil, err
	}
	defer q.Shutdown()
	return discover(q, opts)
}

func discover(q querier, opts Options) (*Inventory, error) {
	log := opts.Logger
	var devices []Device
	if len(opts.Ordinals) == 0 {
		count, err := q.DeviceCount()
		if err != nil {
			return nil, err
		}
		for ordinal := 0; len(devices) < count; ordinal++ {
			if ordinal > maxProbeOrdinal {
				log.Warn().Int("reported", count).Int("found", len(devices)).
					Msg("device enumeration never converged on reported count, stopping")
				break
			}
			d, err := queryDevice(q, ordinal)
			if err != nil {
				log.Debug().Err(err).Int("ordinal", ordinal).Msg("skipping device")
				continue
			}
			devices = append(devices, d)
		}
	} else {
		seen := make(map[int]bool, len(opts.Ordinals))
		for _, ordinal := range opts.Ordinals {
			if seen[ordinal] {
				continue
			}
			seen[ordinal] = true
			d, err := queryDevice(q, ordinal)
			if err != nil {
				log.Warn().Err(err).Int("ordinal", ordinal).Msg("failed to query requested device")
				if opts.Strict {
					return nil, ErrDeviceNotFound(ordinal)
				}
				continue
			}
			devices = append(devices, d)
		}
		if len(devices) == 0 {
			// None of the requested ordinals are usable; discover everything.
			log.Warn().Ints("ordinals", opts.Ordinals).Msg("no requested device is usable, discovering all")
			auto := opts
			auto.Ordinals = nil
			return discover(q, auto)
		}
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Ordinal < devices[j].Ordinal })

	primary, err := resolvePrimary(devices, opts.Primary, opts.Strict, log)
	if err != nil {
		return nil, err
	}

	for _, d := range devices {
		log.Info().Int("ordinal", d.Ordinal).Str("name", d.Name).
			Str("available", fmt.Sprintf("%.2f GiB", float64(d.AvailableMemory)/gib)).
			Msg("discovered device")
	}
	return NewInventory(devices, primary)
}

// NewInventory builds an Inventory from an already-budgeted device set.
// Ordinals must be unique and the primary must be present in the set.
func NewInventory(devices []Device, primary int) (*Inventory, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	sorted := make([]Device, len(devices))
	copy(sorted, devices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })
	found := false
	for i, d := range sorted {
		if i > 0 && sorted[i-1].Ordinal == d.Ordinal {
			return nil, fmt.Errorf("duplicate device ordinal %d", d.Ordinal)
		}
		if d.Ordinal == primary {
			found = true
		}
	}
	if !found {
		return nil, ErrDeviceNotFound(primary)
	}
	return &Inventory{devices: sorted, primary: primary}, nil
}

// queryDevice fetches one device and applies the memory budget. Devices with
// zero total memory, or less than the fixed overhead, are rejected so
// available memory can never go negative.
func queryDevice(q querier, ordinal int) (Device, error) {
	raw, err := q.DeviceByOrdinal(ordinal)
	if err != nil {
		return Device{}, err
	}
	if raw.TotalMemory == 0 {
		return Device{}, fmt.Errorf("device %d reports 0 bytes of memory", ordinal)
	}
	if raw.TotalMemory < Overhead {
		return Device{}, fmt.Errorf("device %d total memory %d below fixed overhead", ordinal, raw.TotalMemory)
	}
	return Device{
		Ordinal:         ordinal,
		TotalMemory:     raw.TotalMemory,
		AvailableMemory: raw.TotalMemory - Overhead,
		Name:            raw.Name,
		PowerLimit:      raw.PowerLimit,
		ComputeMajor:    raw.ComputeMajor,
		ComputeMinor:    raw.ComputeMinor,
	}, nil
}

// resolvePrimary picks the primary device. devices must be sorted by ordinal
// and non-empty; ties on available memory go to the lowest ordinal.
func resolvePrimary(devices []Device, explicit int, strict bool, log zerolog.Logger) (int, error) {
	if explicit >= 0 {
		for _, d := range devices {
			if d.Ordinal == explicit {
				return explicit, nil
			}
		}
		if strict {
			return 0, ErrDeviceNotFound(explicit)
		}
		log.Warn().Int("ordinal", explicit).Msg("requested primary device not found, selecting automatically")
	}
	best := devices[0]
	for _, d := range devices[1:] {
		if d.AvailableMemory > best.AvailableMemory {
			best = d
		}
	}
	return best.Ordinal, nil
}

// Devices returns a copy of the discovered devices in ordinal order.
func (inv *Inventory) Devices() []Device {
	out := make([]Device, len(inv.devices))
	copy(out, inv.devices)
	return out
}

// Count returns the number of discovered devices.
func (inv *Inventory) Count() int { return len(inv.devices) }

// PrimaryOrdinal returns the resolved primary-device ordinal. It always
// refers to a device present in the inventory.
func (inv *Inventory) PrimaryOrdinal() int { return inv.primary }

// Primary returns the primary device.
func (inv *Inventory) Primary() Device {
	for _, d := range inv.devices {
		if d.Ordinal == inv.primary {
			return d
		}
	}
	// Unreachable: the primary is validated at construction.
	return inv.devices[0]
}

// TotalAvailable returns the sum of available memory across all devices.
func (inv *Inventory) TotalAvailable() uint64 {
	var total uint64
	for _, d := range inv.devices {
		total += d.AvailableMemory
	}
	return total
}

// Snapshot projects the inventory into its JSON API shape.
func (inv *Inventory) Snapshot() types.DevicesResponse {
	resp := types.DevicesResponse{
		PrimaryOrdinal:      inv.primary,
		TotalAvailableBytes: inv.TotalAvailable(),
	}
	for _, d := range inv.devices {
		resp.Devices = append(resp.Devices, types.DeviceInfo{
			Ordinal:              d.Ordinal,
			Name:                 d.Name,
			TotalBytes:           d.TotalMemory,
			AvailableBytes:       d.AvailableMemory,
			PowerLimitMilliwatts: d.PowerLimit,
			ComputeMajor:         d.ComputeMajor,
			ComputeMinor:         d.ComputeMinor,
			Primary:              d.Ordinal == inv.primary,
		})
	}
	return resp
}
