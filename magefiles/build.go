// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

//go:build mage

// Package main provides build targets for the cvalchemist project using Mage.
//
// Usage:
//
//	mage build          Compile the alchemist binary to bin/
//	mage test:all       Run all tests
//	mage test:unit      Run tests except the end-to-end launcher test
//	mage test:e2e       Run the end-to-end launcher test
//	mage lint           Run golangci-lint
//	mage docker:build   Build the container image
//	mage docker:run     Run the image with PORT=8080
//	mage clean          Remove build artifacts
//	mage install        Install alchemist to GOPATH/bin
//	mage stats          Print Go LOC per package
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binGit     = "git"
	binaryName = "alchemist"
	binaryDir  = "bin"
	cmdDir     = "./cmd/alchemist"
	modulePath = "github.com/mesh-intelligence/cvalchemist"
)

// version returns the git description of HEAD, or "dev".
func version() string {
	out, err := sh.Output(binGit, "describe", "--tags", "--always", "--dirty")
	if err != nil || out == "" {
		return "dev"
	}
	return strings.TrimPrefix(out, "v")
}

func ldflags() string {
	return "-s -w -X " + modulePath + "/internal/cli.Version=" + version()
}

// Build compiles the alchemist binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	if err := sh.Copy(dst, src); err != nil {
		return err
	}
	return os.Chmod(dst, 0o755)
}
