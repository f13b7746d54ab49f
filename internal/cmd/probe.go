package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robolink/robosock/internal/probe"
)

var probeCmd = &cobra.Command{
	Use:   "probe [path...]",
	Short: "Report what occupies socket paths",
	Long: `Report what occupies each path: nothing, a non-socket file, a live socket
that answers datagram connects, or a stale socket left by a crashed process.

Without arguments the configured socket path is probed. Probing never
modifies the file.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{viper.GetString("socket.path")}
	}
	printReports(cmd.OutOrStdout(), probe.InspectAll(paths))
	return nil
}

func printReports(w io.Writer, reports []probe.Report) {
	width := 0
	for _, r := range reports {
		width = max(width, len(r.Path))
	}

	fmt.Fprintln(w, titleStyle.Render("Socket paths"))
	for _, r := range reports {
		line := fmt.Sprintf("  %s  %s",
			pathStyle.Render(r.Path+strings.Repeat(" ", width-len(r.Path))),
			stateStyle(r.State).Render(string(r.State)),
		)
		var extra []string
		if r.State != probe.StateAbsent {
			extra = append(extra, r.Mode.String(), "inode "+r.Identity.String())
		}
		if r.Detail != "" {
			extra = append(extra, r.Detail)
		}
		if len(extra) > 0 {
			line += "  " + mutedStyle.Render(strings.Join(extra, ", "))
		}
		fmt.Fprintln(w, line)
	}
}
