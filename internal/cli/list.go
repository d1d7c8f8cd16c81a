package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/qdbcompat/internal/release"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Count      int
	CatalogURL string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent installable releases",
		Long: `List the most recent QuestDB releases that carry an installable
binary distribution, newest first.

Examples:
  qdbcompat list
  qdbcompat list -n 5
  qdbcompat list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 30, "number of releases")
	cmd.Flags().StringVar(&opts.CatalogURL, "catalog-url", release.DefaultCatalogURL, "release catalog endpoint")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	catalog := release.NewCatalog(release.WithCatalogURL(opts.CatalogURL))
	releases, err := catalog.Releases(cmd.Context(), opts.Count)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list releases", err)
	}

	if opts.Format == "json" {
		versions := make([]string, len(releases))
		for i, rel := range releases {
			versions[i] = rel.Version.String()
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(versions)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "List of releases:")
	for _, rel := range releases {
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", rel.Version)
	}
	return nil
}
