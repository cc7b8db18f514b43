package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gopreparse/preparser/internal/config"
	"github.com/gopreparse/preparser/internal/item"
	"github.com/gopreparse/preparser/internal/worker"
	"github.com/gopreparse/preparser/pkg/preparser"
)

var (
	cfgFile string
	verbose bool
	domains string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "preparserdemo",
		Short: "preparserdemo — smoke-test harness for the media-item preparse engine",
		Long: `preparserdemo wires up a real preparse engine against its configured
domain workers and runs one request to completion, printing the result.`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(preparseCmd())
	rootCmd.AddCommand(thumbnailCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func preparseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preparse [key]",
		Short: "Run a parse-family request for one item to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreparse,
	}
	cmd.Flags().StringVar(&domains, "domains", "parse,fetch_meta_local,fetch_meta_net", "comma-separated domains to dispatch")
	return cmd
}

func runPreparse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := preparser.New(cfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Destroy()

	mask, err := parseMask(domains)
	if err != nil {
		return err
	}

	it := item.New(args[0])
	defer it.Release()

	cbs, done := preparser.SyncParseCallbacks()
	cbs.OnSubitemsAdded = func(_ item.Handle, subitems []item.Handle, _ any) {
		fmt.Printf("  + %d subitem(s) discovered\n", len(subitems))
	}
	cbs.OnAttachmentsAdded = func(item.Handle, any) {
		fmt.Println("  + attachments discovered")
	}

	id := eng.EnqueueParse(it, mask, worker.Options{}, cbs)
	if id == 0 {
		return fmt.Errorf("request rejected")
	}

	result := <-done
	fmt.Printf("request %d finished: %s\n", id, result.Status)
	for field, value := range result.Item.Meta() {
		fmt.Printf("  %s = %s\n", field, value)
	}
	if art := result.Item.ArtURL(); art != "" {
		fmt.Printf("  art_url = %s\n", art)
	}
	return nil
}

func thumbnailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumbnail [key] [art-url]",
		Short: "Run a thumbnail-family request for one item to completion",
		Args:  cobra.ExactArgs(2),
		RunE:  runThumbnail,
	}
	return cmd
}

func runThumbnail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := preparser.New(cfg)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	defer eng.Destroy()

	it := item.New(args[0])
	it.SetArtURL(args[1])
	defer it.Release()

	cb, done := preparser.SyncThumbnailCallback()
	id := eng.EnqueueThumbnail(it, nil, 0, cb)
	if id == 0 {
		return fmt.Errorf("request rejected")
	}

	result := <-done
	fmt.Printf("request %d finished: %s\n", id, result.Status)
	if result.Picture != nil {
		fmt.Printf("  %dx%d %s, hash=%016x\n", result.Picture.Width, result.Picture.Height, result.Picture.Format, result.Picture.Hash)
		result.Picture.Release()
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("preparserdemo %s\n", config.Version)
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Types:                %v\n", cfg.Types)
			fmt.Printf("MaxParserThreads:     %d\n", cfg.MaxParserThreads)
			fmt.Printf("MaxFetchLocalThreads: %d\n", cfg.MaxFetchLocalThreads)
			fmt.Printf("MaxFetchNetThreads:   %d\n", cfg.MaxFetchNetThreads)
			fmt.Printf("MaxThumbnailerThreads:%d\n", cfg.MaxThumbnailerThreads)
			fmt.Printf("Timeout:              %s\n", cfg.Timeout)
			fmt.Printf("FetchMetaNet.Backend: %s\n", cfg.FetchMetaNet.Backend)
			fmt.Printf("MediaStore.URI:       %s\n", cfg.MediaStore.URI)
			fmt.Printf("Artwork.OutputDir:    %s\n", cfg.Artwork.OutputDir)
			fmt.Printf("Metrics.Enabled:      %v\n", cfg.Metrics.Enabled)
			return nil
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func parseMask(spec string) (worker.Mask, error) {
	var mask worker.Mask
	start := 0
	for i := 0; i <= len(spec); i++ {
		if i == len(spec) || spec[i] == ',' {
			switch spec[start:i] {
			case "parse":
				mask |= worker.MaskParse
			case "fetch_meta_local":
				mask |= worker.MaskFetchMetaLocal
			case "fetch_meta_net":
				mask |= worker.MaskFetchMetaNet
			case "thumbnail":
				mask |= worker.MaskThumbnail
			case "":
			default:
				return 0, fmt.Errorf("unknown domain %q", spec[start:i])
			}
			start = i + 1
		}
	}
	if mask == 0 {
		return 0, fmt.Errorf("no valid domains selected from %q", spec)
	}
	return mask, nil
}
