package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chazu/calzone/internal/config"
	"github.com/chazu/calzone/pkg/engine"
	"github.com/chazu/calzone/pkg/geometry"
	"github.com/chazu/calzone/pkg/kernel/sdfx"
	"github.com/chazu/calzone/pkg/spec"
	"github.com/chazu/calzone/pkg/tessellate"
	"github.com/spf13/cobra"
)

// app is the state shared by the subcommands of one invocation.
type app struct {
	cfg     *config.Config
	metrics bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "calzone",
		Short:         "Build, check and export Monte Carlo detector geometries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.metrics {
				return writeMetrics(cmd.ErrOrStderr())
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "print build metrics to stderr on exit")

	var resolution int
	checkCmd := &cobra.Command{
		Use:   "check <spec>",
		Short: "Look for overlapping volumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGeometry(cmd, args[0], func(g *geometry.Geometry) error {
				n := resolution
				if n <= 0 {
					n = a.cfg.CheckResolution
				}
				if err := g.Check(n); err != nil {
					var overlap *geometry.OverlapError
					if errors.As(err, &overlap) {
						return &exitCodeError{code: exitOverlap, err: err}
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "no overlap found")
				return nil
			})
		},
	}
	checkCmd.Flags().IntVar(&resolution, "resolution", 0, "Monte Carlo trials per volume (default from CALZONE_CHECK_RESOLUTION)")

	dumpCmd := &cobra.Command{
		Use:   "dump <spec> <out.gdml>",
		Short: "Write the geometry as GDML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGeometry(cmd, args[0], func(g *geometry.Geometry) error {
				return g.Dump(args[1])
			})
		},
	}

	var frame string
	boxCmd := &cobra.Command{
		Use:   "box <spec> <volume>",
		Short: "Print the bounding box of a volume, in cm",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGeometry(cmd, args[0], func(g *geometry.Geometry) error {
				v, err := volume(g, args[1])
				if err != nil {
					return err
				}
				f := frame
				if f != "" {
					if f, err = g.Find(f); err != nil {
						return err
					}
				}
				box, err := v.ComputeBox(f)
				if err != nil {
					return err
				}
				parts := make([]string, len(box))
				for i, x := range box {
					parts[i] = fmt.Sprintf("%g", x)
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " "))
				return nil
			})
		},
	}
	boxCmd.Flags().StringVar(&frame, "frame", "", "reference volume (default world)")

	describeCmd := &cobra.Command{
		Use:   "describe <spec> <volume>",
		Short: "Print a JSON summary of a volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGeometry(cmd, args[0], func(g *geometry.Geometry) error {
				v, err := volume(g, args[1])
				if err != nil {
					return err
				}
				d, err := newDescription(v)
				if err != nil {
					return err
				}
				return outputJSON(cmd.OutOrStdout(), d)
			})
		},
	}

	var cells int
	var skipWorld bool
	exportCmd := &cobra.Command{
		Use:   "export <spec> <out-dir>",
		Short: "Write one STL surface per placed volume",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGeometry(cmd, args[0], func(g *geometry.Geometry) error {
				n := cells
				if n <= 0 {
					n = a.cfg.TessellationCells
				}
				meshes, err := tessellate.Tessellate(cmd.Context(), g, sdfx.New(n), tessellate.Options{SkipWorld: skipWorld})
				if err != nil {
					return err
				}
				files, err := tessellate.WriteSTL(args[1], meshes)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			})
		},
	}
	exportCmd.Flags().IntVar(&cells, "cells", 0, "marching cubes cells along the longest side (default from CALZONE_TESSELLATION_CELLS)")
	exportCmd.Flags().BoolVar(&skipWorld, "skip-world", false, "do not export the world volume")

	root.AddCommand(checkCmd, dumpCmd, boxCmd, describeCmd, exportCmd)
	return root
}

// withGeometry builds the geometry described at path, calls fn and drops
// the geometry.
func (a *app) withGeometry(cmd *cobra.Command, path string, fn func(g *geometry.Geometry) error) error {
	doc, err := a.load(path)
	if err != nil {
		return err
	}
	logger := a.cfg.Logger(cmd.ErrOrStderr())
	g, err := geometry.Build(doc, a.cfg.BuildOptions(logger)...)
	if err != nil {
		return err
	}
	defer g.Drop()
	return fn(g)
}

// load reads a volume description. Lisp sources end with .lisp; anything
// else is YAML.
func (a *app) load(path string) (*spec.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".lisp") {
		return engine.NewEngine(engine.WithTimeout(a.cfg.EvalTimeout)).LoadFile(path)
	}
	return spec.LoadFile(path)
}

// volume resolves a full pathname or a unique pathname suffix.
func volume(g *geometry.Geometry, name string) (*geometry.Volume, error) {
	path, err := g.Find(name)
	if err != nil {
		return nil, err
	}
	return g.Volume(path)
}
