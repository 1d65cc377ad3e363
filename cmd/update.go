package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	hcversion "github.com/hashicorp/go-version"
	"github.com/spf13/cobra"
)

// currentVersion is the build's own semver, compared against whatever
// --check discovers as the latest release.
const currentVersion = "1.0.0"

// updateManifestURL points at a static JSON file of the form {"version":"x.y.z"}.
// Overridable via VTCODE_UPDATE_URL for testing against a local fixture.
const updateManifestURL = "https://vtcode.invalid/releases/latest.json"

var updateCheckFlag bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for a newer release",
	Run:   runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckFlag, "check", false, "Report whether a newer version is available, without installing it")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	if !updateCheckFlag {
		fmt.Println("update: pass --check to compare against the latest release; in-place install is not supported")
		return
	}

	latest, err := fetchLatestVersion()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error checking for updates: %v\n", err)
		os.Exit(exitOtherFailure)
	}

	cur, err := hcversion.NewVersion(currentVersion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing current version %q: %v\n", currentVersion, err)
		os.Exit(exitOtherFailure)
	}
	lat, err := hcversion.NewVersion(latest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing latest version %q: %v\n", latest, err)
		os.Exit(exitOtherFailure)
	}

	if lat.GreaterThan(cur) {
		fmt.Printf("A new version is available: %s (current: %s)\n", lat, cur)
	} else {
		fmt.Printf("Up to date (current: %s)\n", cur)
	}
}

func fetchLatestVersion() (string, error) {
	if v := os.Getenv("VTCODE_LATEST_VERSION"); v != "" {
		return v, nil
	}

	url := updateManifestURL
	if u := os.Getenv("VTCODE_UPDATE_URL"); u != "" {
		url = u
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}

	var manifest struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return "", fmt.Errorf("decode release manifest: %w", err)
	}
	if manifest.Version == "" {
		return "", fmt.Errorf("release manifest missing version field")
	}
	return manifest.Version, nil
}
