package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, set with -ldflags "-X .../internal/cli.Version=..."
var (
	Version     = "0.1.0"
	BuildDate   = "unknown"
	BuildCommit = "dev"
)

// VersionInfo contains version and build information
type VersionInfo struct {
	ProjectName  string `json:"project_name"`
	Version      string `json:"version"`
	BuildDate    string `json:"build_date"`
	BuildCommit  string `json:"build_commit"`
	GoVersion    string `json:"go_version"`
	Architecture string `json:"architecture"`
}

// GetVersionInfo returns complete version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		ProjectName:  "trend-engine",
		Version:      Version,
		BuildDate:    BuildDate,
		BuildCommit:  BuildCommit,
		GoVersion:    runtime.Version(),
		Architecture: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			info := GetVersionInfo()
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(a.out, "%s v%s\n", info.ProjectName, info.Version)
			fmt.Fprintf(a.out, "Build: %s (%s)\n", info.BuildCommit, info.BuildDate)
			fmt.Fprintf(a.out, "Go: %s (%s)\n", info.GoVersion, info.Architecture)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
