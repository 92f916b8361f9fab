// Command pep517run is the external driver: it resolves a project's build
// backend, spawns the backend host, and drives sdist/wheel/editable builds
// or metadata preparation on the caller's behalf.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pep517run/internal/config"
	"pep517run/internal/frontend"
	"pep517run/internal/history"
	"pep517run/internal/metadata"
	"pep517run/internal/pyproject"
	"pep517run/internal/wire"
)

var (
	outDir       string
	buildSdist   bool
	buildWheel   bool
	buildEditableFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "pep517run",
	Short: "A frontend driver for the PEP 517/660 build-backend interface",
	Long: `pep517run drives a project's build backend out-of-process to produce
source distributions, wheels, editable wheels, and metadata directories,
without ever loading the backend into this process's address space.`,
}

var buildCmd = &cobra.Command{
	Use:   "build [project-dir]",
	Short: "Build an sdist and/or wheel for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectDirFromArgs(args)
		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		desc, err := pyproject.CreateArgsFromFolder(root)
		if err != nil {
			return fmt.Errorf("pep517run: %w", err)
		}

		var opts []frontend.Option
		if cfg.Interpreter != "" {
			opts = append(opts, frontend.WithHostBinary(cfg.Interpreter))
		}
		opts = append(opts, frontend.WithReuse(cfg.Reuse))

		f, err := frontend.NewSubprocessFrontend(desc, opts...)
		if err != nil {
			return fmt.Errorf("pep517run: %w", err)
		}
		defer f.Close()

		dir := outDir
		if dir == "" {
			dir = cfg.OutputDir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(root, dir)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ResponseTimeout)
		defer cancel()

		doSdist, doWheel := buildSdist, buildWheel
		if !doSdist && !doWheel && !buildEditableFlag {
			doSdist, doWheel = true, true
		}

		if doSdist {
			if err := runBuild(ctx, root, desc.BackendModule, "build_sdist", func() (string, error) {
				res, err := f.BuildSdist(ctx, dir, nil)
				return res.Sdist, err
			}); err != nil {
				return err
			}
		}
		if doWheel {
			if err := runBuild(ctx, root, desc.BackendModule, "build_wheel", func() (string, error) {
				res, err := f.BuildWheel(ctx, dir, nil, "")
				return res.Wheel, err
			}); err != nil {
				return err
			}
		}
		if buildEditableFlag {
			if err := runBuild(ctx, root, desc.BackendModule, "build_editable", func() (string, error) {
				res, err := f.BuildEditable(ctx, dir, nil, "")
				return res.Wheel, err
			}); err != nil {
				return err
			}
		}
		return nil
	},
}

var requiresCmd = &cobra.Command{
	Use:   "requires [project-dir]",
	Short: "Print the dynamic build requirements a backend declares",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectDirFromArgs(args)
		desc, err := pyproject.CreateArgsFromFolder(root)
		if err != nil {
			return fmt.Errorf("pep517run: %w", err)
		}
		f, err := frontend.NewSubprocessFrontend(desc)
		if err != nil {
			return fmt.Errorf("pep517run: %w", err)
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		res, err := f.GetRequiresForBuildWheel(ctx, nil)
		if err != nil {
			return reportFailure(err)
		}
		for _, r := range res.Requires {
			fmt.Println(r.String())
		}
		return nil
	},
}

var metadataCmd = &cobra.Command{
	Use:   "metadata [project-dir]",
	Short: "Prepare a .dist-info metadata directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := projectDirFromArgs(args)
		if outDir == "" {
			return fmt.Errorf("pep517run: -o is required for metadata")
		}
		desc, err := pyproject.CreateArgsFromFolder(root)
		if err != nil {
			return fmt.Errorf("pep517run: %w", err)
		}
		f, err := frontend.NewSubprocessFrontend(desc)
		if err != nil {
			return fmt.Errorf("pep517run: %w", err)
		}
		defer f.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		res, err := f.PrepareMetadataForBuildWheel(ctx, outDir, nil)
		if err != nil {
			return reportFailure(err)
		}
		fmt.Println(res.Path)
		return nil
	},
}

func runBuild(ctx context.Context, root, backend, cmdName string, fn func() (string, error)) error {
	start := time.Now()
	artifact, err := fn()
	entry := history.Entry{
		Timestamp:   time.Now(),
		Command:     cmdName,
		ProjectRoot: root,
		Backend:     backend,
		Succeeded:   err == nil,
		Duration:    time.Since(start).String(),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Artifact = artifact
		if digest, hashErr := metadata.HashArtifact(artifact); hashErr == nil {
			entry.Digest = digest
		}
	}
	_ = history.Append(root, entry)

	if err != nil {
		return reportFailure(err)
	}
	fmt.Println(artifact)
	return nil
}

func reportFailure(err error) error {
	if f, ok := err.(*wire.Failure); ok {
		if f.Err != "" {
			fmt.Fprint(os.Stderr, f.Err)
		}
		return fmt.Errorf("pep517run: %s", f.Error())
	}
	return fmt.Errorf("pep517run: %w", err)
}

func projectDirFromArgs(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	return dir
}

func init() {
	buildCmd.Flags().StringVarP(&outDir, "outdir", "o", "", "output directory (default: <srcdir>/dist)")
	buildCmd.Flags().BoolVarP(&buildSdist, "sdist", "s", false, "build an sdist")
	buildCmd.Flags().BoolVarP(&buildWheel, "wheel", "w", false, "build a wheel")
	buildCmd.Flags().BoolVarP(&buildEditableFlag, "editable", "e", false, "build an editable wheel")

	metadataCmd.Flags().StringVarP(&outDir, "outdir", "o", "", "metadata output directory (required)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(requiresCmd)
	rootCmd.AddCommand(metadataCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
