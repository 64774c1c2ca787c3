package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/msbrefactor/internal/types"
)

// LoadKDL attempts to load configuration from the .msbrefactor.kdl file in projectRoot
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil // No KDL config found
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KDLFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// Relative roots resolve against the directory holding the config file
	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := Default("")

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "project":
			for _, cn := range n.Children { // project { root "." property_sheet "Common.props" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "property_sheet", func(v string) { cfg.Project.PropertySheet = v })
			}
		case "scan":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "extensions":
					if exts := collectStringArgs(cn); len(exts) > 0 {
						cfg.Scan.Extensions = exts
					}
				case "ignore":
					// ignore "obsolete,backup" or ignore "obsolete" "backup"
					var ignore []string
					for _, s := range collectStringArgs(cn) {
						ignore = append(ignore, ParseIgnoreList(s)...)
					}
					cfg.Scan.Ignore = ignore
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Scan.FollowSymlinks = b
					}
				case "max_file_size_kb":
					if v, ok := firstIntArg(cn); ok {
						cfg.Scan.MaxFileSizeKB = int64(v)
					}
				}
			}
		case "global":
			// global { Configuration "Release"; Platform "x86" }
			g := types.GlobalContext{}
			for _, cn := range n.Children {
				if v, ok := firstScalarArg(cn); ok {
					g = g.With(nodeName(cn), v)
				}
			}
			if g.Len() > 0 {
				merged := cfg.GlobalContext()
				for _, p := range g.Properties() {
					merged = merged.With(p.Name, p.Value)
				}
				cfg.Global = merged.Properties()
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "parallel_file_workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.ParallelFileWorkers = v
					}
				}
			}
		case "build":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "output_dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Build.OutputDir = s
					}
				case "verify_artifacts":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Build.VerifyArtifacts = b
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				if nodeName(cn) == "debounce_ms" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "include":
			cfg.Include = collectStringArgs(n)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		default:
			log.Printf("WARN: unknown section '%s' in %s", nodeName(n), KDLFileName)
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// firstScalarArg renders the first argument as a string whatever its KDL type,
// so `WarningLevel 4` and `WarningLevel "4"` are the same global.
func firstScalarArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	switch v := n.Arguments[0].Value.(type) {
	case string:
		return v, true
	case int64, float64, bool:
		return fmt.Sprint(v), true
	default:
		return "", false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// First try to collect from arguments (for inline format)
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format like exclude { "pattern" }: the node name is the string value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// GenerateKDL renders cfg in the layout LoadKDL reads.
func GenerateKDL(cfg *Config, minimal bool) string {
	var b strings.Builder
	b.WriteString("// msbrefactor configuration\n")
	b.WriteString("version 1\n\n")

	b.WriteString("project {\n")
	b.WriteString("    root \".\"\n")
	fmt.Fprintf(&b, "    property_sheet %q\n", cfg.Project.PropertySheet)
	b.WriteString("}\n\n")

	b.WriteString("global {\n")
	for _, p := range cfg.Global {
		fmt.Fprintf(&b, "    %s %q\n", p.Name, p.Value)
	}
	b.WriteString("}\n")
	if minimal {
		return b.String()
	}

	b.WriteString("\nscan {\n")
	b.WriteString("    extensions")
	for _, ext := range cfg.Scan.Extensions {
		fmt.Fprintf(&b, " %q", ext)
	}
	b.WriteString("\n")
	if len(cfg.Scan.Ignore) > 0 {
		fmt.Fprintf(&b, "    ignore %q\n", strings.Join(cfg.Scan.Ignore, ","))
	}
	fmt.Fprintf(&b, "    follow_symlinks %t\n", cfg.Scan.FollowSymlinks)
	fmt.Fprintf(&b, "    max_file_size_kb %d // 0 = no limit\n", cfg.Scan.MaxFileSizeKB)
	b.WriteString("}\n\n")

	b.WriteString("performance {\n")
	fmt.Fprintf(&b, "    parallel_file_workers %d // 0 = NumCPU\n", cfg.Performance.ParallelFileWorkers)
	b.WriteString("}\n\n")

	b.WriteString("build {\n")
	fmt.Fprintf(&b, "    output_dir %q\n", cfg.Build.OutputDir)
	fmt.Fprintf(&b, "    verify_artifacts %t\n", cfg.Build.VerifyArtifacts)
	b.WriteString("}\n\n")

	b.WriteString("watch {\n")
	fmt.Fprintf(&b, "    debounce_ms %d\n", cfg.Watch.DebounceMs)
	b.WriteString("}\n\n")

	if len(cfg.Include) > 0 {
		b.WriteString("include {\n")
		for _, p := range cfg.Include {
			fmt.Fprintf(&b, "    %q\n", p)
		}
		b.WriteString("}\n\n")
	}

	b.WriteString("exclude {\n")
	for _, p := range cfg.Exclude {
		fmt.Fprintf(&b, "    %q\n", p)
	}
	b.WriteString("}\n")

	return b.String()
}
