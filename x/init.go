/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"fmt"
)

var (
	initFunc []func()

	// These variables are set using -ldflags
	gqlcacheVersion string
	gitBranch       string
	lastCommitSHA   string
	lastCommitTime  string
)

// AddInit adds a function to be run in x.Init, which should be called at the
// beginning of all mains.
func AddInit(f func()) {
	initFunc = append(initFunc, f)
}

// Init sets the debug mode and runs all functions in initFunc.
func Init(debug bool) {
	Config.DebugMode = debug

	for _, f := range initFunc {
		f()
	}
}

// BuildDetails returns a string containing details about the gqlcache binary.
func BuildDetails() string {
	return fmt.Sprintf(`
gqlcache version : %v
Commit SHA-1     : %v
Commit timestamp : %v
Branch           : %v

Licensed under the Apache License, Version 2.0.

`,
		Version(), lastCommitSHA, lastCommitTime, gitBranch)
}

// Version returns the version of the binary, "dev" when it wasn't set at build time.
func Version() string {
	if gqlcacheVersion == "" {
		return "dev"
	}
	return gqlcacheVersion
}
