// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the gpureset command line.
//
// Commands:
//
//	gpureset                    Start the interactive reset screen (same as tui)
//	gpureset run [--yes]        Run every strategy once and print the log
//	gpureset strategies         List strategies in execution order
//	gpureset doctor             Show capabilities, detected GPU and paths
//	gpureset history            List recorded Runs
//	gpureset config <sub>       init | show | path | get | set
//	gpureset version            Print version information
//
// Global flags --config, --log-level, --log-file and --no-color override
// the config file for one invocation.
//
// Exit codes: 0 on success, 1 when a command fails or when a run finished
// without any successful strategy.
package cli
