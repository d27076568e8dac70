package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"arguard/internal/config"
	"arguard/internal/model"
)

func newInspectCmd() *cobra.Command {
	var path string
	var showRules bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a summary of a trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := *mgr.Get()
			if path != "" {
				cfg.Detector.ModelPath = path
			}
			ctx := context.Background()
			store, err := openStore(ctx, &cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			m, err := loadModel(ctx, &cfg, store)
			if err != nil {
				return err
			}
			printModel(os.Stdout, m, showRules)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "model", "", "Model path (defaults to detector.model_path)")
	cmd.Flags().BoolVar(&showRules, "rules", false, "List every rule with its delay bound")
	return cmd
}

func printModel(w io.Writer, m *model.Model, showRules bool) {
	fmt.Fprintf(w, "name:        %s\n", m.Name)
	fmt.Fprintf(w, "mode:        %s\n", m.Settings.Mode)
	fmt.Fprintf(w, "window:      %d\n", m.Settings.ItemsetSize)
	fmt.Fprintf(w, "support:     %g\n", m.Settings.MinSupport)
	fmt.Fprintf(w, "confidence:  %g\n", m.Settings.MinConfidence)
	fmt.Fprintf(w, "classes:     %d\n", len(m.Classes))
	fmt.Fprintf(w, "itemsets:    %d\n", len(m.Itemsets))
	fmt.Fprintf(w, "rules:       %d\n", len(m.Rules))
	fmt.Fprintf(w, "bounded:     %d\n", len(m.DelayBounds))
	if m.Settings.Mode == model.ModeCluster {
		fmt.Fprintf(w, "features:    %v\n", m.Features)
		fmt.Fprintf(w, "clusters:    %d\n", len(m.Clusters))
	}
	if !showRules {
		return
	}
	rules := append([]model.Rule(nil), m.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Support > rules[j].Support })
	for _, r := range rules {
		line := fmt.Sprintf("  %s  support=%g confidence=%g", r, r.Support, r.Confidence)
		if b, ok := m.DelayBound(r); ok {
			line += fmt.Sprintf(" delay=[%g, %g]", b.Min, b.Max)
		}
		fmt.Fprintln(w, line)
	}
}

func newConfigCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(output, config.DefaultConfig())
		},
	}
	cmd.Flags().StringVar(&output, "output", "arguard.yaml", "Destination (.json writes JSON)")
	return cmd
}
