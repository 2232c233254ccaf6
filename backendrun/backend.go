// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backendrun

import (
	"os"
	"sync"

	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	"k8s.io/klog/v2"
)

var (
	backendOnce   sync.Once
	cachedBackend backends.Backend
)

// MustBackend returns a process-wide cached backend for the harness and its
// tests. It defaults to the pure-Go "go" backend so the harness runs without
// any accelerator plugin; set GOMLX_BACKEND to override.
func MustBackend() backends.Backend {
	backendOnce.Do(func() {
		config := os.Getenv(backends.ConfigEnvVar)
		if config == "" {
			config = "go"
		}
		backend, err := backends.NewWithConfig(config)
		if err != nil {
			klog.Fatalf("Failed to create backend %q: %+v", config, err)
		}
		cachedBackend = backend
		klog.V(1).Infof("crosscheck backend: %s", backend.Name())
	})
	return cachedBackend
}
