package types

// Model describes one model file available to the supervisor.
type Model struct {
	// Stable identifier, currently the model filename.
	// example: llama-3.1-8b-q4_k_m.gguf
	ID string `json:"id" example:"llama-3.1-8b-q4_k_m.gguf"`
	// Human-readable name.
	// example: llama-3.1-8b-q4_k_m.gguf
	Name string `json:"name,omitempty" example:"llama-3.1-8b-q4_k_m.gguf"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/llm/llama-3.1-8b-q4_k_m.gguf
	Path string `json:"path,omitempty" example:"/home/user/models/llm/llama-3.1-8b-q4_k_m.gguf"`
}

// DeviceInfo is the JSON projection of one discovered accelerator.
type DeviceInfo struct {
	// NVML ordinal of the device.
	// example: 0
	Ordinal int `json:"ordinal" example:"0"`
	// Product name reported by the driver, if available.
	// example: NVIDIA GeForce RTX 4090
	Name string `json:"name,omitempty" example:"NVIDIA GeForce RTX 4090"`
	// Raw total memory in bytes.
	// example: 25769803776
	TotalBytes uint64 `json:"total_bytes" example:"25769803776"`
	// Memory usable for model weights after the fixed overhead.
	// example: 25232932864
	AvailableBytes uint64 `json:"available_bytes" example:"25232932864"`
	// Enforced power limit in milliwatts, 0 when unknown.
	// example: 450000
	PowerLimitMilliwatts uint32 `json:"power_limit_mw,omitempty" example:"450000"`
	// CUDA compute capability, zero when unknown.
	// example: 8
	ComputeMajor int `json:"compute_major,omitempty" example:"8"`
	// example: 9
	ComputeMinor int `json:"compute_minor,omitempty" example:"9"`
	// True when this device hosts the bulk of the model.
	// example: true
	Primary bool `json:"primary" example:"true"`
}
