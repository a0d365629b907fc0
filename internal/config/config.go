// Package config loads runtime configuration from environment
// variables with positional flag overrides, in the style of the
// teacher's provers/types.Config.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the settings shared by every cmd/ entrypoint. Not every
// binary uses every field: cmd/prove-worker ignores HTTPAddr, for
// instance.
type Config struct {
	// NATSURL is the work-queue bus connection string.
	NATSURL string
	// HTTPAddr is the control-plane bind address.
	HTTPAddr string
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string
	// NEARRPCURL is the NEAR JSON-RPC endpoint used by the BlockSource.
	NEARRPCURL string

	// WorkerPoolSize is the number of concurrent signature-proof workers
	// this process runs (cmd/prove-worker).
	WorkerPoolSize int
	// MaxAckPending is loaded from MAX_ACK_PENDING but is not read by the
	// bus adapter, which applies the bus.MaxAckPending constant instead.
	MaxAckPending int
	// DispatchQueueSize bounds the in-memory surplus queue, spec.md §5
	// ("size 4·workers" by default).
	DispatchQueueSize int

	// TaskTimeout is T1, the per-attempt timeout for one proving task.
	TaskTimeout time.Duration
	// JobTimeout is T2, the per-job wall clock.
	JobTimeout time.Duration

	// RootDir is where circuit-setup artifacts (proving/verifying keys)
	// are cached on disk.
	RootDir string
}

// New loads configuration from the environment, then applies any
// "--flag value" pairs in args (as os.Args[1:]).
func New(args ...string) *Config {
	cfg := &Config{
		NATSURL:           getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		HTTPAddr:          getEnv("EPOCH_SERVER_ADDRESS", "127.0.0.1:1337"),
		LogLevel:          getEnv("RUST_LOG", "info"),
		NEARRPCURL:        getEnv("NEAR_RPC_URL", "https://rpc.mainnet.near.org"),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 1),
		MaxAckPending:     getEnvInt("MAX_ACK_PENDING", 1000),
		DispatchQueueSize: getEnvInt("DISPATCH_QUEUE_SIZE", 4),
		TaskTimeout:       getEnvDuration("TASK_TIMEOUT", 5*time.Minute),
		JobTimeout:        getEnvDuration("JOB_TIMEOUT", 60*time.Minute),
		RootDir:           getEnv("ROOT", "."),
	}

	for i := 0; i < len(args); i++ {
		if len(args) <= i+1 {
			panic(fmt.Errorf("missing argument for %s", args[i]))
		}
		switch args[i] {
		case "--nats":
			cfg.NATSURL = args[i+1]
			i++
		case "--addr":
			cfg.HTTPAddr = args[i+1]
			i++
		case "--near-rpc":
			cfg.NEARRPCURL = args[i+1]
			i++
		case "--workers":
			n, _ := strconv.Atoi(args[i+1])
			cfg.WorkerPoolSize = n
			i++
		case "--root":
			cfg.RootDir = args[i+1]
			i++
		}
	}

	// DispatchQueueSize is stored as a multiplier in the env var for
	// operator ergonomics but callers want the resolved size.
	cfg.DispatchQueueSize *= cfg.WorkerPoolSize
	if cfg.DispatchQueueSize == 0 {
		cfg.DispatchQueueSize = 4
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
