// Package config loads resource limits from a YAML file with
// environment variable overrides.
//
// Loading order (later sources override earlier):
//  1. resource.DefaultLimits()
//  2. Configuration file (YAML)
//  3. Environment variables (RESGUARD_ prefix)
//
// The loaded limits are meant to be handed to Manager.UpdateLimits (or
// resguard.WithLimits) at startup:
//
//	limits, err := config.LoadLimits("resguard.yaml")
//	if err != nil {
//	    return err
//	}
//	mgr := resguard.New(resguard.WithLimits(limits))
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hupe1980/resguard/resource"
)

// DefaultEnvPrefix is the default environment variable prefix.
// Example: RESGUARD_MAX_PROCESSES=8, RESGUARD_CLEANUP_TIMEOUT=2s.
const DefaultEnvPrefix = "RESGUARD_"

type loader struct {
	envPrefix string
}

// Option configures limit loading.
type Option func(*loader)

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *loader) {
		l.envPrefix = prefix
	}
}

// LoadLimits loads a resource.Limits snapshot.
//
// path may be empty, in which case only defaults and environment
// variables apply. Keys mirror the Limits field tags:
//
//	max_memory_bytes: 536870912
//	max_processes: 16
//	max_connections: 64
//	max_file_handles: 128
//	max_tasks: 64
//	cleanup_timeout: 5s
//	stale_resource_timeout: 10m
func LoadLimits(path string, optFns ...Option) (resource.Limits, error) {
	l := loader{envPrefix: DefaultEnvPrefix}
	for _, fn := range optFns {
		fn(&l)
	}

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return resource.Limits{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment variables override the file. The keys are flat, so
	// the transformer only strips the prefix and lowercases.
	envTransformer := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	}
	if err := k.Load(env.Provider(l.envPrefix, ".", envTransformer), nil); err != nil {
		return resource.Limits{}, fmt.Errorf("load env: %w", err)
	}

	// Unmarshal over the defaults; absent keys keep their default value.
	limits := resource.DefaultLimits()
	if err := k.Unmarshal("", &limits); err != nil {
		return resource.Limits{}, fmt.Errorf("unmarshal limits: %w", err)
	}

	if err := validate(limits); err != nil {
		return resource.Limits{}, err
	}

	return limits, nil
}

func validate(l resource.Limits) error {
	if l.MaxMemoryBytes < 0 {
		return fmt.Errorf("max_memory_bytes must not be negative: %d", l.MaxMemoryBytes)
	}
	for name, v := range map[string]int{
		"max_processes":    l.MaxProcesses,
		"max_connections":  l.MaxConnections,
		"max_file_handles": l.MaxFileHandles,
		"max_tasks":        l.MaxTasks,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative: %d", name, v)
		}
	}
	if l.CleanupTimeout < 0 {
		return fmt.Errorf("cleanup_timeout must not be negative: %s", l.CleanupTimeout)
	}
	if l.StaleResourceTimeout < 0 {
		return fmt.Errorf("stale_resource_timeout must not be negative: %s", l.StaleResourceTimeout)
	}
	return nil
}
