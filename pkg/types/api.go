package types

// EnsureRequest asks the daemon to make a server serving the given model reachable.
type EnsureRequest struct {
	// Model identifier from the registry. If empty, the configured default is used.
	// example: llama-3.1-8b-q4_k_m.gguf
	Model string `json:"model,omitempty" example:"llama-3.1-8b-q4_k_m.gguf"`
}

// EnsureResponse reports the outcome of a successful ensure call.
type EnsureResponse struct {
	// Model identifier now being served.
	// example: llama-3.1-8b-q4_k_m.gguf
	Model string `json:"model" example:"llama-3.1-8b-q4_k_m.gguf"`
	// Endpoint the server is reachable at.
	// example: 127.0.0.1:8337
	Addr string `json:"addr" example:"127.0.0.1:8337"`
	// Process ID of the tracked server, 0 when an already-running server was reused.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Whether an already-correct server was reused instead of spawned.
	// example: false
	Reused bool `json:"reused" example:"false"`
}

// DevicesResponse wraps the device inventory returned by GET /devices.
type DevicesResponse struct {
	// All discovered devices in ordinal order.
	Devices []DeviceInfo `json:"devices"`
	// Ordinal of the primary device.
	// example: 0
	PrimaryOrdinal int `json:"primary_ordinal" example:"0"`
	// Sum of available memory across all devices in bytes.
	// example: 33285996544
	TotalAvailableBytes uint64 `json:"total_available_bytes" example:"33285996544"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of models found in the configured models directory.
	Models []Model `json:"models"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Supervisor view of the server: stopped or running.
	// example: running
	State string `json:"state" example:"running"`
	// Model identifier the tracked server was started with.
	// example: llama-3.1-8b-q4_k_m.gguf
	Model string `json:"model,omitempty" example:"llama-3.1-8b-q4_k_m.gguf"`
	// Endpoint of the managed server.
	// example: 127.0.0.1:8337
	Addr string `json:"addr" example:"127.0.0.1:8337"`
	// PID of the tracked server process, 0 when none is tracked.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Daemon uptime in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Daemon time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: x.gguf
	Error string `json:"error" example:"model not found: x.gguf"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
