// Package container handles Docker operations, port allocation, and volume management.
//
// The package provides four main components:
//
// 1. Docker Client Wrapper (docker.go)
//    - Simplified interface to the Docker SDK
//    - Process-wide shared client (Shared)
//    - Inspect, logs, exec, version and bridge network queries
//    - Image existence checks and builds
//
// 2. Container Lifecycle (lifecycle.go)
//    - Run (create + start), start, stop and remove containers
//    - Prefix-wide listing, stop and removal
//    - Published port discovery across running containers
//    - Uptime calculation
//
// 3. Port Allocation (ports.go)
//    - Disjoint ranges for the control, editor and application ports
//    - Random draw of a bindable host port within a range
//    - Best-effort cross-check against ports running containers publish
//
// 4. Volume Management (volumes.go)
//    - Workspace bind mounts
//    - Automatic host directory creation
//
// Basic usage:
//
//	client, err := container.Shared()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	alloc := &container.PortAllocator{Published: client.PublishedPorts}
//	port, err := alloc.Allocate(ctx, container.ControlPortRange)
//
//	cfg := container.RunConfig{
//	    Name:         "openhands-runtime-abc",
//	    Image:        "ghcr.io/example/runtime:latest",
//	    NetworkMode:  "bridge",
//	    PortMappings: []container.PortMapping{{Host: port, Container: port}},
//	}
//
//	containerID, err := client.Run(ctx, cfg)
//
// Port bindings are never sent in host network mode, and published ports bind
// to 127.0.0.1 unless RunConfig.BindAddress says otherwise.
package container
