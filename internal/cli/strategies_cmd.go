// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/gpureset/internal/capability"
	"github.com/jeranaias/gpureset/internal/gpu"
	"github.com/jeranaias/gpureset/internal/util"
)

// StrategyInfo is one row of the strategy listing.
type StrategyInfo struct {
	Position    int    `json:"position"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Capability  string `json:"capability,omitempty"`
	// Available is nil for strategies checked only when they run.
	Available *bool  `json:"available,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// State renders the availability column.
func (s StrategyInfo) State() string {
	switch {
	case s.Available == nil:
		return "checked at run time"
	case *s.Available:
		return "available"
	default:
		return "unavailable: " + s.Reason
	}
}

// listStrategies describes the configured order with probe results.
func listStrategies(s gpu.Settings, caps *capability.Set) []StrategyInfo {
	out := make([]StrategyInfo, 0, len(s.Order))
	for i, id := range s.Order {
		desc, ok := gpu.Lookup(id)
		if !ok {
			continue
		}
		info := StrategyInfo{
			Position:    i + 1,
			ID:          desc.ID,
			Name:        desc.Name,
			Description: desc.Description,
			Capability:  string(desc.Capability),
		}
		if desc.Capability != "" {
			st := caps.Status(desc.Capability)
			available := st.Available
			info.Available = &available
			if st.Reason != nil {
				info.Reason = st.Reason.Error()
			}
		}
		out = append(out, info)
	}
	return out
}

func (a *App) strategiesCommand() *cobra.Command {
	var jsonMode bool
	cmd := &cobra.Command{
		Use:     "strategies",
		Aliases: []string{"list"},
		Short:   "List reset strategies in execution order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			s, err := settings(cfg)
			if err != nil {
				return err
			}
			deps := a.deps(s, zap.NewNop())
			infos := listStrategies(s, deps.Capabilities)

			if jsonMode {
				return a.printJSON(infos)
			}

			width := 0
			for _, info := range infos {
				if w := util.StringWidth(info.Name); w > width {
					width = w
				}
			}
			for _, info := range infos {
				fmt.Fprintf(a.Out, "%d. %s  %-16s %s\n",
					info.Position, util.PadRight(info.Name, width), info.ID, info.State())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}
