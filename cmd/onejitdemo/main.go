// Command onejitdemo is a runnable smoke test over the onejit pipeline:
// build a small sample function, push it through optimize, x64 lowering,
// register allocation, and the assembler, then print what came out. It
// gives the library a CLI entry point for manual inspection without
// turning onejit itself into a source-language frontend.
package main

import (
	"fmt"
	"os"

	"github.com/onejit/onejit"
	"github.com/onejit/onejit/arch/x64"
	"github.com/onejit/onejit/diag"
	"github.com/onejit/onejit/ir"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "onejitdemo",
		Short: "Drive the onejit pipeline over a small built-in sample function",
	}

	var fold, simplify, canon bool
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sample function and print its root statement count and flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, body := sampleFunc()
			flags := flagsFrom(fold, simplify, canon)
			sink := f.Diagnostics()
			for _, n := range body {
				_ = n
			}
			fmt.Printf("sample function: %d root statement(s), flags=%#x\n", len(body), uint32(flags))
			return reportDiagnostics(sink)
		},
	}
	buildCmd.Flags().BoolVar(&fold, "fold", true, "enable constant folding")
	buildCmd.Flags().BoolVar(&simplify, "simplify", true, "enable algebraic simplification")
	buildCmd.Flags().BoolVar(&canon, "canon", true, "enable canonicalization")

	var dumpHex bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Compile the sample function for x86_64 and print the resulting bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, body := sampleFunc()
			flags := flagsFrom(fold, simplify, canon)

			compiler := onejit.NewCompiler(x64.NewMachine(), flags)
			code := compiler.Compile(f, body, f.Diagnostics())

			if dumpHex {
				fmt.Printf("% x\n", code)
			} else {
				fmt.Printf("%d byte(s) of x86_64 machine code\n", len(code))
			}
			return reportDiagnostics(f.Diagnostics())
		},
	}
	runCmd.Flags().BoolVar(&fold, "fold", true, "enable constant folding")
	runCmd.Flags().BoolVar(&simplify, "simplify", true, "enable algebraic simplification")
	runCmd.Flags().BoolVar(&canon, "canon", true, "enable canonicalization")
	runCmd.Flags().BoolVar(&dumpHex, "hex", false, "print the assembled bytes as hex instead of a count")

	rootCmd.AddCommand(buildCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func flagsFrom(fold, simplify, canon bool) onejit.Flag {
	var flags onejit.Flag
	if fold {
		flags |= onejit.ConstantFolding
	}
	if simplify {
		flags |= onejit.AlgebraicSimplification
	}
	if canon {
		flags |= onejit.Canonicalization
	}
	return flags
}

// sampleFunc builds `v := (a + 1) + 2; return v`, enough to exercise
// binary reassociation/constant folding and the x64 assignment lowering
// in one body.
func sampleFunc() (*ir.Func, []ir.Node) {
	f := onejit.NewFunc()
	a := f.NewVar(ir.Int32)
	v := f.NewVar(ir.Int32)

	sum := f.Binary(ir.Int32, ir.Add2,
		f.Binary(ir.Int32, ir.Add2, f.VarNode(a), f.ConstInt(ir.Int32, 1)),
		f.ConstInt(ir.Int32, 2))
	assign := f.Assign(f.VarNode(v), sum)
	ret := f.Return(f.VarNode(v))

	body := []ir.Node{assign, ret}
	for _, n := range body {
		f.AddRoot(n)
	}
	return f, body
}

func reportDiagnostics(sink *diag.Sink) error {
	if !sink.HasErrors() {
		return nil
	}
	for _, e := range sink.Errors() {
		fmt.Fprintf(os.Stderr, "diagnostic: %s\n", e.Msg)
	}
	return fmt.Errorf("%d diagnostic(s) recorded", len(sink.Errors()))
}
