// Command qflrasolver reads a single SMT-LIB v2 script naming a
// quantifier-free linear real arithmetic problem and reports sat, unsat, or
// an error, in the conventional way: the verdict on its own line on
// standard output, with the model printed beneath it when satisfiable and
// -m was given.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"github.com/qflra/cdclt/formula"
	"github.com/qflra/cdclt/options"
	"github.com/qflra/cdclt/smtlib"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringP("sat-solver", "s", "dpll22", "SAT backend to drive the refinement loop")
	rootCmd.Flags().BoolP("dump-models", "m", false, "print the satisfying model alongside a sat verdict")
	rootCmd.Flags().IntP("verbose", "v", 0, "diagnostic logging level: 0 warnings only, 1 info, 2 or more debug")
}

// rootCmd represents qflrasolver's single command: there are no
// subcommands, only a file argument and the flags above.
var rootCmd = &cobra.Command{
	Use:   "qflrasolver [input.smt2]",
	Short: "A toy CDCL(T) solver for quantifier-free linear real arithmetic.",
	Long: `qflrasolver reads a single problem specification in the SMT-LIB v2
format restricted to QF_LRA: declare-const/declare-fun over Bool and Real,
assert, check-sat, set-info :status, and exit.

If no input file is given, qflrasolver reads from standard input.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options.Options{
			SATBackend: GetString(cmd, "sat-solver"),
			DumpModels: GetFlag(cmd, "dump-models"),
			Verbosity:  GetInt(cmd, "verbose"),
		}

		var script *smtlib.Script
		var err error
		if len(args) == 1 {
			script, err = smtlib.CompileFile(args[0])
		} else {
			script, err = compileStdin()
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: reading input as SMT-LIB:", err)
			return err
		}

		res, err := options.Solve(context.Background(), script, opts)

		// ErrStatusUnknown and ErrExpectedMismatch still carry a verdict
		// worth printing on stdout (S6's bare "unknown", S5's produced
		// verdict ahead of the mismatch report); every other error means
		// no verdict was ever decided.
		switch {
		case errors.Is(err, options.ErrStatusUnknown):
			fmt.Println(res.Verdict)
			fmt.Fprintln(os.Stderr, "error: status declared unknown")
			return err
		case errors.Is(err, options.ErrExpectedMismatch):
			fmt.Println(res.Verdict)
			if res.Verdict == options.Sat && opts.DumpModels {
				printModel(formula.RealVars(script.Formula()), res.Model)
			}
			fmt.Fprintf(os.Stderr, "error: expected result was %s\n", script.Status)
			return err
		case err != nil:
			fmt.Fprintln(os.Stderr, "error:", err)
			return err
		}

		fmt.Println(res.Verdict)
		if res.Verdict == options.Sat && opts.DumpModels {
			printModel(formula.RealVars(script.Formula()), res.Model)
		}
		return nil
	},
}

func compileStdin() (*smtlib.Script, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, err
	}
	return smtlib.Compile(string(data))
}

// printModel renders a satisfying model on stdout, one variable per line,
// in the order vars names them (formula.RealVars' sorted, de-duplicated
// traversal of the original formula's atoms) rather than map iteration
// order. This is separate from the diagnostic logging options.Solve does
// at Info level: -m is a user-facing request for output, not a verbosity
// knob.
func printModel(vars []string, model map[string]*big.Rat) {
	for _, name := range vars {
		if v, ok := model[name]; ok {
			fmt.Printf("  %s = %s\n", name, v.RatString())
		}
	}
}
