package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"sonora/config"
	"sonora/services"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot library scan and print the results",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		cfg.LogLevel = "warn" // keep the bar readable
		initLogger(cfg)

		library := services.NewLibraryManager(cfg.MusicRoot, cfg.FFmpegPath)

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("scanning"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionShowCount(),
		)
		library.SetScanProgress(func(p services.ScanProgress) {
			bar.Set(p.FilesFound)
			if p.Done {
				bar.Finish()
			}
		})

		library.ScanSync()

		snap := library.Snapshot()
		fmt.Printf("\n%d songs, %d albums (%d standalone tracks)\n",
			snap.SongCount, snap.AlbumCount, len(snap.Songs))
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
