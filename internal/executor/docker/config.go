package docker

import (
	"time"
)

// Config holds the configuration for Docker execution.
type Config struct {
	// Image is the Docker image to use for execution. It must ship Python 3
	// with pandas, matplotlib, and seaborn installed — the three libraries
	// the generation prompt allows.
	Image string
	// MemoryLimit is the maximum amount of memory the container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs the container can use.
	CPULimit float64
	// Timeout is the maximum amount of time one execution can take.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig provides sensible defaults for the analysis sandbox.
func DefaultConfig() Config {
	return Config{
		// The Jupyter scientific stack image carries pandas, matplotlib,
		// and seaborn. Large on first pull, but pulled once and the pool
		// reuses it for every container after that.
		Image: "jupyter/scipy-notebook:latest",
		// 256 MB — enough headroom for pandas on interactively sized CSVs
		MemoryLimit: 256 * 1024 * 1024,
		// 0.5 CPU shares
		CPULimit: 0.5,
		// Plot rendering plus the pandas import is slower than plain
		// snippets, so the budget is looser than a bare code runner's.
		Timeout:  30 * time.Second,
		PoolSize: 2,
	}
}
