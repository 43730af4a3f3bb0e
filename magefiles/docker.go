// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Container image constants.
const (
	dockerImageName = "cvalchemist"
	dockerImageTag  = "latest"
	dockerfile      = "Dockerfile"
	dockerPort      = "8080"
)

var errNoRuntime = errors.New("no container runtime found (tried podman, docker)")

// Docker groups the container image targets.
type Docker mg.Namespace

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable. It checks both that the
// binary exists on PATH and that it can connect to its daemon/machine.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

// imageRef returns the full image reference (name:tag).
func imageRef() string {
	return dockerImageName + ":" + dockerImageTag
}

func runtimeCmd(rt string, args ...string) *exec.Cmd {
	cmd := exec.Command(rt, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// Build builds the container image from the repo root Dockerfile.
func (Docker) Build() error {
	rt := containerRuntime()
	if rt == "" {
		return errNoRuntime
	}
	fmt.Fprintln(os.Stderr, "Building container image...")
	return runtimeCmd(rt, "build",
		"--build-arg", "VERSION="+version(),
		"-t", imageRef(),
		"-f", dockerfile,
		".").Run()
}

// Run starts the image the way the platform does: PORT=8080 and nothing
// else. STRIPE_API_KEY and GOOGLE_CLOUD_PROJECT are forwarded when set.
func (Docker) Run() error {
	mg.Deps(Docker.Build)
	rt := containerRuntime()
	if rt == "" {
		return errNoRuntime
	}

	args := []string{"run", "--rm", "-e", "PORT=" + dockerPort, "-p", dockerPort + ":" + dockerPort}
	for _, key := range []string{"STRIPE_API_KEY", "GOOGLE_CLOUD_PROJECT"} {
		if _, ok := os.LookupEnv(key); ok {
			args = append(args, "-e", key)
		}
	}
	args = append(args, imageRef())
	return runtimeCmd(rt, args...).Run()
}

// Clean removes the container image. Errors are ignored because the image
// may not exist.
func (Docker) Clean() {
	rt := containerRuntime()
	if rt == "" {
		return
	}
	fmt.Fprintln(os.Stderr, "Removing container image...")
	_ = exec.Command(rt, "rmi", imageRef()).Run()
}
