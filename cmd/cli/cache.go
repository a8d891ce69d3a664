package cli

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/ipscannr/internal/cache"
	"github.com/anstrom/ipscannr/internal/config"
	"github.com/anstrom/ipscannr/internal/errors"
	"github.com/anstrom/ipscannr/internal/logging"
	"github.com/anstrom/ipscannr/internal/models"
)

var (
	cacheJSON bool
	cacheAll  bool
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache [range]",
	Short: "Inspect cached scan results",
	Long: `The cache keeps the hosts found by the last completed scan of every range,
keyed by the range exactly as it was typed. Without a range the cached ranges
are listed.`,
	Example: `  ipscannr cache
  ipscannr cache 192.168.1.0/24 --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return runCacheShow(cmd, args)
		}
		return runCacheList(cmd, args)
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached ranges, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheShowCmd = &cobra.Command{
	Use:     "show <range>",
	Short:   "Show the cached hosts of a range",
	Example: `  ipscannr cache show 192.168.1.0/24 --all`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCacheShow,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.Cache.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheShowCmd, cachePathCmd)

	cacheCmd.PersistentFlags().BoolVar(&cacheJSON, "json", false, "print as JSON")
	cacheCmd.PersistentFlags().BoolVar(&cacheAll, "all", false, "include offline hosts")
}

func openCache() (*cache.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openCacheFrom(cfg)
}

func openCacheFrom(cfg *config.Config) (*cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, errors.NewScanError(errors.CodeConfiguration, "result cache is disabled")
	}
	return cache.New(cfg.Cache.Path, cache.WithLogger(logging.Default())), nil
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	store, err := openCache()
	if err != nil {
		return err
	}
	summaries := store.Summaries()

	out := cmd.OutOrStdout()
	if cacheJSON {
		return writeJSON(out, summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintf(out, "No cached scans in %s\n", store.Path())
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Range", "Hosts", "Online", "Scanned")
	for _, s := range summaries {
		_ = table.Append([]string{
			s.Range,
			strconv.Itoa(s.Hosts),
			strconv.Itoa(s.Alive),
			store.FormatAge(s.ScannedAt),
		})
	}
	_ = table.Render()
	return nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	store, err := openCache()
	if err != nil {
		return err
	}
	hosts := store.Load(args[0])
	if len(hosts) == 0 {
		return errors.NewScanErrorWithTarget(errors.CodeHostNotFound, "no cached scan for range", args[0])
	}
	models.SortByIP(hosts)

	out := cmd.OutOrStdout()
	if cacheJSON {
		return writeJSON(out, hosts)
	}
	renderHosts(out, hosts, cacheAll)
	fmt.Fprintf(out, "%s: %s, scanned %s\n", args[0], summarize(hosts), store.FormatAge(*hosts[0].CachedAt))
	return nil
}
