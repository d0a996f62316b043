// Package commands implements the feigctl CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient is the shared HTTP client used by every subcommand.
	httpClient = &http.Client{Timeout: 15 * time.Second}

	// serverAddr is the feig-rfid-bridge base URL.
	serverAddr string
)

// rootCmd is the top-level cobra command for feigctl.
var rootCmd = &cobra.Command{
	Use:   "feigctl",
	Short: "CLI client for the feig-rfid-bridge service",
	Long:  "feigctl drives the feig-rfid-bridge JSON API to manage readers and tags from the command line.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:8080",
		"feig-rfid-bridge base URL")

	rootCmd.AddCommand(readersCmd())
	rootCmd.AddCommand(inventoryCmd())
	rootCmd.AddCommand(initializeCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(secureCmd())
	rootCmd.AddCommand(unsecureCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------
// HTTP helpers
// -----------------------------------------------------------------------

// envelope mirrors the bridge's JSON response envelope.
// Callers decode into a concrete struct embedding envelope for the
// success/error discriminator plus whatever payload fields they expect.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// errAPI is returned when the bridge responds with success=false.
type errAPI struct {
	status int
	msg    string
}

func (e *errAPI) Error() string {
	return fmt.Sprintf("bridge returned %d: %s", e.status, e.msg)
}

// apiGet issues a GET request against path (with optional query values)
// and decodes the JSON response body into out.
func apiGet(path string, query url.Values, out any) error {
	return apiDo(http.MethodGet, path, query, out)
}

// apiPost issues a POST request against path with query values and
// decodes the JSON response body into out.
func apiPost(path string, query url.Values, out any) error {
	return apiDo(http.MethodPost, path, query, out)
}

func apiDo(method, path string, query url.Values, out any) error {
	u, err := url.Parse(serverAddr + path)
	if err != nil {
		return fmt.Errorf("parse server address: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequest(method, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, u.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		return &errAPI{status: resp.StatusCode, msg: env.Error}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}

	return nil
}
