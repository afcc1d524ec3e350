package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"yqhp/hookrunner/internal/discovery"
	"yqhp/hookrunner/pkg/outline"
	"yqhp/hookrunner/pkg/types"
)

type listOptions struct {
	*globalOptions
	root   string
	asJSON bool
}

func newListCommand(g *globalOptions) *cobra.Command {
	o := &listOptions{globalOptions: g}
	c := &cobra.Command{
		Use:   "list [paths...]",
		Short: "Print the groups, tests and hooks declared in test files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	c.Flags().StringVar(&o.root, "root", ".", "project root that relative paths are resolved against")
	c.Flags().BoolVar(&o.asJSON, "json", false, "print outlines as JSON")
	return c
}

func (o *listOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.loadConfig(map[string]string{})
	if err != nil {
		return err
	}
	root, err := filepath.Abs(o.root)
	if err != nil {
		return err
	}
	files, err := discovery.Resolve(cmd.Context(), root, args, discovery.Options{
		Patterns: cfg.Run.Patterns,
		Excludes: cfg.Run.Excludes,
	})
	if err != nil && files == nil {
		return err
	}

	out := cmd.OutOrStdout()
	var outlines []*types.Outline
	for _, rel := range files {
		source, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return err
		}
		ol, err := outline.Parse(cmd.Context(), rel, source)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", rel, err)
			continue
		}
		if o.asJSON {
			outlines = append(outlines, ol)
			continue
		}
		fmt.Fprintf(out, "%s (%d tests)\n", rel, ol.CountTests())
		printOutline(out, &ol.Root, 1)
	}

	if o.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(outlines)
	}
	return nil
}

func printOutline(w io.Writer, n *types.OutlineNode, depth int) {
	pad := strings.Repeat("  ", depth)
	for _, h := range n.Hooks {
		fmt.Fprintf(w, "%s%s :%d\n", pad, h.Kind, h.Location.StartLine)
	}
	for i := range n.Children {
		c := &n.Children[i]
		kind := "test"
		if c.Kind == types.NodeGroup {
			kind = "describe"
		}
		mode := ""
		if c.Mode != types.ModeNormal {
			mode = " [" + string(c.Mode) + "]"
		}
		fmt.Fprintf(w, "%s%s %s%s :%d\n", pad, kind, c.Name, mode, c.Location.StartLine)
		if c.Kind == types.NodeGroup {
			printOutline(w, c, depth+1)
		}
	}
}
