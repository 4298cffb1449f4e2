// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/config"
	"github.com/jeranaias/gpureset/internal/detect"
)

// =============================================================================
// REPORT
// =============================================================================

// doctorReport is everything the doctor command shows.
type doctorReport struct {
	Capabilities []capability.Status
	Strategies   []StrategyInfo
	GPU          *detect.GpuInfo
	GPUErr       error
	HardwareID   string
	ConfigPath   string
	ConfigExists bool
	LogPath      string
	HistoryPath  string
	HistoryOn    bool
}

func (a *App) buildDoctorReport(ctx context.Context, cfg *config.Config) (*doctorReport, error) {
	s, err := settings(cfg)
	if err != nil {
		return nil, err
	}
	deps := a.deps(s, zap.NewNop())

	r := &doctorReport{
		Capabilities: deps.Capabilities.Report(),
		Strategies:   listStrategies(s, deps.Capabilities),
		HardwareID:   cfg.Devcon.HardwareID,
		HistoryOn:    cfg.History.Enabled,
	}

	if a.Detect != nil {
		gpus, err := a.Detect(ctx)
		switch {
		case err != nil:
			r.GPUErr = err
		default:
			if g, ok := detect.Primary(gpus); ok {
				r.GPU = &g
			} else {
				r.GPUErr = errNoGPU
			}
		}
	}

	if r.ConfigPath, err = a.configPath(); err == nil {
		_, statErr := os.Stat(r.ConfigPath)
		r.ConfigExists = statErr == nil
	}
	r.LogPath, _ = cfg.LogPath()
	r.HistoryPath, _ = cfg.HistoryPath()
	return r, nil
}

// Markdown renders the report for glamour.
func (r *doctorReport) Markdown() string {
	var b strings.Builder
	b.WriteString("# gpureset doctor\n\n")

	b.WriteString("## Capabilities\n\n")
	b.WriteString("| Capability | Status | Detail |\n|---|---|---|\n")
	for _, st := range r.Capabilities {
		status, detail := "available", ""
		if !st.Available {
			status = "missing"
			if st.Reason != nil {
				detail = escapeCell(st.Reason.Error())
			}
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", st.Name, status, detail)
	}

	b.WriteString("\n## Strategies\n\n")
	for _, s := range r.Strategies {
		fmt.Fprintf(&b, "%d. **%s** (`%s`): %s\n", s.Position, s.Name, s.ID, s.State())
	}

	b.WriteString("\n## GPU\n\n")
	if r.GPU != nil {
		fmt.Fprintf(&b, "- Detected: %s\n", r.GPU.String())
		if r.GPU.BusID != "" {
			fmt.Fprintf(&b, "- Bus: `%s`\n", r.GPU.BusID)
		}
		suggested := r.GPU.HardwareID()
		if suggested == "" {
			b.WriteString("- Suggested hardware ID: unknown (no PCI device ID reported)\n")
		} else {
			fmt.Fprintf(&b, "- Suggested hardware ID: `%s`\n", suggested)
		}
		if suggested != "" && !hardwareIDMatches(r.HardwareID, suggested) {
			fmt.Fprintf(&b, "- Configured hardware ID `%s` does not match; set `[devcon] hardware_id`.\n", r.HardwareID)
		}
	} else {
		fmt.Fprintf(&b, "- Not detected: %v\n", r.GPUErr)
		fmt.Fprintf(&b, "- Configured hardware ID: `%s`\n", r.HardwareID)
	}

	b.WriteString("\n## Files\n\n")
	cfgState := "not created; run `gpureset config init`"
	if r.ConfigExists {
		cfgState = "present"
	}
	fmt.Fprintf(&b, "- Config: `%s` (%s)\n", r.ConfigPath, cfgState)
	fmt.Fprintf(&b, "- Log: `%s`\n", r.LogPath)
	histState := "disabled"
	if r.HistoryOn {
		histState = "enabled"
	}
	fmt.Fprintf(&b, "- History: `%s` (%s)\n", r.HistoryPath, histState)
	return b.String()
}

// hardwareIDMatches reports whether the configured ID targets the detected
// device. The configured ID may omit the subsystem.
func hardwareIDMatches(configured, detected string) bool {
	c, d := strings.ToUpper(configured), strings.ToUpper(detected)
	return c == d || strings.HasPrefix(d, c+"&")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// =============================================================================
// COMMAND
// =============================================================================

func (a *App) doctorCommand() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag"},
		Short:   "Show capabilities, the detected GPU and file locations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			report, err := a.buildDoctorReport(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			md := report.Markdown()
			if plain {
				_, err = fmt.Fprint(a.Out, md)
				return err
			}
			_, err = fmt.Fprint(a.Out, renderMarkdown(md, terminalWidth(a.Out), cfg.UI.NoColor || !isTerminal(a.Out)))
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print raw markdown")
	return cmd
}

// renderMarkdown renders md with glamour. Returns the original content if
// rendering fails.
func renderMarkdown(md string, width int, noColor bool) string {
	style := glamour.WithAutoStyle()
	if noColor {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
