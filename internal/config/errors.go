package config

import "errors"

var (
	// ErrInvalidWorkerCount is returned when worker_count is not greater than 0.
	ErrInvalidWorkerCount = errors.New("worker_count must be greater than 0")
	// ErrInvalidTimeout is returned when request_timeout is not greater than 0.
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidDepth is returned when a depth budget is negative.
	ErrInvalidDepth = errors.New("max_depth_faq and max_depth_general must be >= 0")
	// ErrInvalidRPS is returned when per_host_rps is not greater than 0.
	ErrInvalidRPS = errors.New("per_host_rps must be greater than 0")
	// ErrEmptyRegistryPath is returned when output_directories.registry_path is empty.
	ErrEmptyRegistryPath = errors.New("output_directories.registry_path cannot be empty")
	// ErrEmptyArtifactsRoot is returned when output_directories.artifacts_root is empty.
	ErrEmptyArtifactsRoot = errors.New("output_directories.artifacts_root cannot be empty")
	// ErrNoAllowedDomains is returned when a seed sitemap is configured without any allowed domain.
	ErrNoAllowedDomains = errors.New("allowed_domains must contain at least one host when seed_sitemap_url is set")
)
