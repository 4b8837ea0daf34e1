package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"skillbadge/internal/badge/catalog"
	"skillbadge/internal/badge/contentaddr"
	"skillbadge/internal/badge/models"
)

var (
	catalogFile    string
	catalogGateway string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate and print the badge catalog",
	Long: `Loads the catalog from --file (or the built-in catalog), validates every
entry and prints it as YAML with each asset's gateway URL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := catalog.Default()
		if catalogFile != "" {
			var err error
			if c, err = catalog.Load(catalogFile); err != nil {
				return err
			}
		}
		resolver := contentaddr.NewResolver(catalogGateway)

		type entry struct {
			models.BadgeMetadata `yaml:",inline"`
			ImageURL             string `yaml:"image_url"`
		}
		out := struct {
			Badges []entry `yaml:"badges"`
		}{}
		for _, e := range c.Entries() {
			out.Badges = append(out.Badges, entry{BadgeMetadata: e, ImageURL: resolver.ImageURL(e.ContentURI)})
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	},
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <file>...",
	Short: "Print the content fingerprint used to deduplicate certificate uploads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			fp, err := contentaddr.Fingerprint(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", fp, path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(fingerprintCmd)

	catalogCmd.Flags().StringVar(&catalogFile, "file", os.Getenv("BADGE_CATALOG_FILE"), "YAML catalog file (built-in catalog when empty)")
	catalogCmd.Flags().StringVar(&catalogGateway, "gateway", os.Getenv("IPFS_GATEWAY"), "Content gateway used for image URLs")
}
