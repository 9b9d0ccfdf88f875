// Tendril — structural pattern matching and transformation for JSON-like
// values.
//
// Usage:
//
//	tendril compile <file.tdr>                           Validate a pattern file
//	tendril match   <file.tdr> --input <file.json>        Find matches against an input
//	tendril scan    <file.tdr> --input <file.json>        Find matches anywhere under an input
//	tendril apply   <file.tdr> --input <file.json> --set name=value ...
//	tendril version                                       Show version
//	tendril help                                          Show this message
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/tendril-lang/tendril"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compile":
		cmdCompile(os.Args[2:])
	case "match":
		cmdMatch(os.Args[2:])
	case "scan":
		cmdScan(os.Args[2:])
	case "apply":
		cmdApply(os.Args[2:])
	case "version":
		fmt.Printf("tendril v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tendril — structural pattern matching and transformation for JSON-like values

Usage:
  tendril compile <file.tdr>                         Validate a pattern file
  tendril match   <file.tdr> --input <file.json>     Find matches against an input
  tendril scan    <file.tdr> --input <file.json>     Find matches anywhere under an input
  tendril apply   <file.tdr> --input <file.json> --set name=value [--set ...] [--output <file>] [--write|-w]
  tendril version                                    Show version
  tendril help                                       Show this message

Examples:
  tendril compile testdata/adult.tdr
  tendril match testdata/adult.tdr --input testdata/adult.json
  tendril scan testdata/email.tdr --input testdata/users.json
  tendril apply testdata/bump.tdr --input testdata/bump.json --set x=99`)
}

func cmdCompile(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "error: compile requires a .tdr file path")
		os.Exit(1)
	}
	for _, path := range args {
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if _, err := tendril.Compile(string(src)); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s\n  %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("✓ %s\n", path)
	}
}

func cmdMatch(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "error: match requires <file.tdr> --input <file.json>")
		os.Exit(1)
	}
	patPath := args[0]
	inputPath := flagValue(args[1:], "--input")
	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "error: --input flag required")
		os.Exit(1)
	}

	pat, root := loadPatternAndInput(patPath, inputPath)
	solutions, err := pat.Match(root, tendril.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(solutions) == 0 {
		fmt.Println("No matches found.")
		return
	}
	for i, sol := range solutions {
		fmt.Printf("[%d]\n", i+1)
		printBindings(sol)
	}
	fmt.Printf("\nTotal: %d match(es)\n", len(solutions))
}

func cmdScan(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "error: scan requires <file.tdr> --input <file.json>")
		os.Exit(1)
	}
	patPath := args[0]
	inputPath := flagValue(args[1:], "--input")
	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "error: --input flag required")
		os.Exit(1)
	}

	pat, root := loadPatternAndInput(patPath, inputPath)
	results, err := pat.Scan(root, tendril.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("No matches found.")
		return
	}
	for i, r := range results {
		fmt.Printf("[%d] %s\n", i+1, pathString(r.Path))
		printBindings(r.Solution)
	}
	fmt.Printf("\nTotal: %d match(es)\n", len(results))
}

func cmdApply(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "error: apply requires <file.tdr> --input <file.json> --set name=value")
		os.Exit(1)
	}
	patPath := args[0]
	rest := args[1:]

	var inputPath, outputPath string
	writeInPlace := false
	plan := map[string]tendril.Value{}

	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--input":
			if i+1 < len(rest) {
				inputPath = rest[i+1]
				i++
			}
		case "--output", "-o":
			if i+1 < len(rest) {
				outputPath = rest[i+1]
				i++
			}
		case "--write", "-w":
			writeInPlace = true
		case "--set":
			if i+1 < len(rest) {
				k, v, ok := strings.Cut(rest[i+1], "=")
				if ok {
					plan[k] = tendril.String(v)
				}
				i++
			}
		}
	}

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "error: --input flag required")
		os.Exit(1)
	}
	if len(plan) == 0 {
		fmt.Fprintln(os.Stderr, "error: at least one --set name=value is required")
		os.Exit(1)
	}

	pat, root := loadPatternAndInput(patPath, inputPath)
	result, failures, casFailures, err := pat.ApplyEdits(root, plan, tendril.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", f.Name, f.Reason)
	}
	for _, f := range casFailures {
		fmt.Fprintf(os.Stderr, "warning: edit to %s skipped: %s\n", f.Name, f.Reason)
	}

	out, err := tendril.ToJSON(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case writeInPlace:
		if err := os.WriteFile(inputPath, out, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
		fmt.Printf("→ wrote %s\n", inputPath)
	case outputPath != "":
		if err := os.WriteFile(outputPath, out, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "error writing %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("→ wrote %s\n", outputPath)
	default:
		fmt.Println(string(out))
	}
}

func loadPatternAndInput(patPath, inputPath string) (*tendril.Pattern, tendril.Value) {
	patSrc, err := os.ReadFile(patPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	pat, err := tendril.Compile(string(patSrc))
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %s\n  %v\n", patPath, err)
		os.Exit(1)
	}
	inputData, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	root, err := tendril.FromJSON(inputData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return pat, root
}

func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func printBindings(sol *tendril.Solution) {
	for name, v := range sol.Bindings() {
		out, err := tendril.ToJSON(v)
		if err != nil {
			continue
		}
		fmt.Printf("    $%s = %s\n", name, strings.ReplaceAll(string(out), "\n", ""))
	}
}

func pathString(p tendril.Path) string {
	if len(p) == 0 {
		return "$0"
	}
	var b strings.Builder
	b.WriteString("$0")
	for _, e := range p {
		if e.IsIndex {
			fmt.Fprintf(&b, "[%d]", e.Index)
		} else {
			fmt.Fprintf(&b, ".%s", e.Key)
		}
	}
	return b.String()
}
