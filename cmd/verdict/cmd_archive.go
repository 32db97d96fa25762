package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/funnelworks/verdict/internal/archive"
)

var (
	archiveServiceURL string
	archiveContainer  string
	archiveBlob       string
)

func newArchiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive <results-dir>",
		Short: "Bundle a results directory for retention",
		Long: `Bundle a results directory into a compressed tarball (` + archive.BundleSuffix + `)
written next to it.

With --service-url and --container the bundle is also uploaded to Azure Blob
Storage. A SAS token in the service URL is used as-is; otherwise credentials
come from the default Azure chain (environment, workload identity, managed
identity, CLI).`,
		Args: cobra.ExactArgs(1),
		RunE: archiveCommandE,
	}

	cmd.Flags().StringVar(&archiveServiceURL, "service-url", "", "Azure Blob service URL (enables upload)")
	cmd.Flags().StringVar(&archiveContainer, "container", "", "Blob container name")
	cmd.Flags().StringVar(&archiveBlob, "blob", "", "Blob name (default: the bundle file name)")

	return cmd
}

func archiveCommandE(cmd *cobra.Command, args []string) error {
	bundlePath, count, err := archive.BundleFile(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Bundled %d file(s) into %s\n", count, bundlePath)

	if archiveServiceURL == "" {
		if archiveContainer != "" || archiveBlob != "" {
			return fmt.Errorf("--container and --blob require --service-url")
		}
		return nil
	}

	blob := archiveBlob
	if blob == "" {
		blob = filepath.Base(bundlePath)
	}

	f, err := os.Open(bundlePath)
	if err != nil {
		return fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	url, err := archive.Upload(cmd.Context(), archive.UploadConfig{
		ServiceURL: archiveServiceURL,
		Container:  archiveContainer,
		Blob:       blob,
	}, f)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded to: %s\n", url)
	return nil
}
