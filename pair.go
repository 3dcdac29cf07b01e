package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/azaanlabs/kioskd/internal/api"
	"github.com/azaanlabs/kioskd/internal/config"
	"github.com/azaanlabs/kioskd/internal/tokenfile"
)

func newPairCmd() *cobra.Command {
	var deviceName string

	cmd := &cobra.Command{
		Use:   "pair <code>",
		Short: "Pair this device with the backend",
		Long: `Exchange a short pairing code for a device token.

The code is shown in the management console when registering a new display.
The resulting token is stored on disk with owner-only permissions and used
for every subsequent request. Re-pairing overwrites the previous token.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPair(cmd, args[0], deviceName)
		},
	}

	cmd.Flags().StringVar(&deviceName, "name", "", "device name shown in the management console")

	return cmd
}

func runPair(cmd *cobra.Command, code, deviceName string) error {
	cfg, err := config.LoadOrDefault(resolveConfigPath())
	if err != nil {
		return err
	}

	if deviceName == "" {
		deviceName = cfg.Server.DeviceName
	}

	token, err := api.PairDevice(cmd.Context(), defaultHTTPClient(), cfg.Server.BaseURL, code, deviceName)
	if err != nil {
		return fmt.Errorf("pairing failed: %w", err)
	}

	tokenPath := config.DefaultTokenPath()
	meta := map[string]string{
		"device_name": deviceName,
		"paired_at":   time.Now().UTC().Format(time.RFC3339),
	}

	if err := tokenfile.Save(tokenPath, &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, meta); err != nil {
		return err
	}

	fmt.Printf("Device paired as %q. Token saved to %s\n", deviceName, tokenPath)
	fmt.Println("Start syncing with 'kioskd run'.")

	return nil
}
