package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/SnickeyX/wasmfxtime"
)

var log = logrus.New()

func main() {
	root := &cobra.Command{
		Use:           "fxlower",
		Short:         "Lower relaxed SIMD opcodes to native instruction sequences",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log rule selection at debug level")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	}

	root.AddCommand(checkCmd(), lowerCmd())

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <fixture>...",
		Short: "Verify golden fixtures against lowered output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				src, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				fx, err := wasmfxtime.ParseFixture(string(src))
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := wasmfxtime.CheckFixture(fx, wasmfxtime.Options{Logger: log}); err != nil {
					log.WithField("fixture", path).Error(err)
					failed++
					continue
				}
				log.WithFields(logrus.Fields{
					"fixture": path,
					"target":  fx.Target,
					"funcs":   len(fx.Funcs),
				}).Info("ok")
			}
			if failed > 0 {
				return fmt.Errorf("%d fixture(s) failed", failed)
			}
			return nil
		},
	}
}

func lowerCmd() *cobra.Command {
	var triple, flags string
	cmd := &cobra.Command{
		Use:   "lower <fixture>",
		Short: "Print lowered instruction listings for a fixture's functions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fx, err := wasmfxtime.ParseFixture(string(src))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if triple == "" {
				triple = fx.Target
			}
			if flags == "" {
				flags = fx.Flags
			}
			target, err := wasmfxtime.Resolve(triple, flags)
			if err != nil {
				return err
			}
			sess, err := wasmfxtime.NewSession(target, wasmfxtime.Options{Logger: log})
			if err != nil {
				return err
			}
			for _, fn := range fx.Funcs {
				seq, err := sess.LowerFunc(&wasmfxtime.Func{Name: fn.Name, Nodes: fn.Nodes})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "function %%%s:\n", fn.Name)
				for _, line := range wasmfxtime.Listing(seq) {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
				}
				for _, name := range seq.Pool.Names() {
					v, _ := seq.Pool.Value(name)
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %x\n", name, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&triple, "target", "", "target triple (defaults to fixture directive)")
	cmd.Flags().StringVar(&flags, "flags", "", "feature flags, e.g. \"+avx\" (defaults to fixture directive)")
	return cmd
}
