// Package openapi holds the "openapi" command, which writes the data
// service contract the dashboard expects.
package openapi

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/nimburion/providerdesk/pkg/sandbox"
)

// CommandOptions configures the OpenAPI command tree.
type CommandOptions struct {
	// Resources defaults to sandbox.DashboardResources.
	Resources      func() []sandbox.Resource
	ServiceVersion string
	Stdout         io.Writer
}

// NewCommand creates the "openapi" command and its subcommands.
func NewCommand(opts CommandOptions) *cobra.Command {
	if opts.Resources == nil {
		opts.Resources = sandbox.DashboardResources
	}

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "OpenAPI specification commands",
	}

	var outputPath, scope string
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the data service OpenAPI specification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts, outputPath, scope)
		},
	}
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "openapi.generated.yaml", "output file path (.yaml or .json)")
	generateCmd.Flags().StringVar(&scope, "scope", "{scope}", "path prefix of every resource")
	cmd.AddCommand(generateCmd)

	return cmd
}

func runGenerate(cmd *cobra.Command, opts CommandOptions, outputPath, scope string) error {
	resources := opts.Resources()
	if len(resources) == 0 {
		return fmt.Errorf("no resources to describe, cannot generate OpenAPI specification")
	}
	doc, err := sandbox.BuildOpenAPI(strings.Trim(scope, "/"), strings.TrimSpace(opts.ServiceVersion), resources)
	if err != nil {
		return err
	}
	if err := writeSpec(outputPath, doc); err != nil {
		return err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = cmd.OutOrStdout()
	}
	_, _ = fmt.Fprintf(stdout, "OpenAPI spec generated at %s (%d resources)\n", outputPath, len(resources))
	return nil
}

func writeSpec(path string, doc *openapi3.T) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
	case ".yaml", ".yml":
		var tree any
		if tree, err = doc.MarshalYAML(); err == nil {
			data, err = yaml.Marshal(tree)
		}
	default:
		return fmt.Errorf("unsupported output extension %q (use .yaml, .yml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("encode openapi spec: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write openapi spec: %w", err)
	}
	return nil
}
