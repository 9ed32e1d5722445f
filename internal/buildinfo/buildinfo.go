// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import "fmt"

// Set via ldflags at build time:
//
//	-X github.com/adinunzio10/rd-watch-sub012/internal/buildinfo.Version=v1.2.3
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

var UserAgent = fmt.Sprintf("rdwatch/%s", Version)
