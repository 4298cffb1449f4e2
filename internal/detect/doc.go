// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect identifies NVIDIA GPUs through nvidia-smi.
//
// Detection is informational: it feeds the shell header and the doctor
// report and suggests a hardware ID for the device toggle. Reset strategies
// never depend on it.
package detect
