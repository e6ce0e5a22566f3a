package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/vmlab-project/vmlab/recording"
	"github.com/vmlab-project/vmlab/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server.",
	Long: "`serve` answers the JSON API on --port (falling back to " +
		"VMLAB_PORT, then 8080), optionally recording every simulator " +
		"access to a SQLite trace database.",
	Run: func(cmd *cobra.Command, args []string) {
		loadEnv(cmd)

		port := resolvePort(cmd)

		var recorder *recording.Writer
		record, _ := cmd.Flags().GetBool("record")
		dbPath := os.Getenv("VMLAB_DB")
		if record || dbPath != "" {
			var err error
			recorder, err = recording.NewWriter(dbPath)
			if err != nil {
				log.Fatalf("Error opening trace database: %v", err)
			}
		}

		s, err := server.New(recorder)
		if err != nil {
			log.Fatalf("Error building server: %v", err)
		}

		if raw := os.Getenv("VMLAB_SEED"); raw != "" {
			seed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				log.Fatalf("Error: bad VMLAB_SEED %q", raw)
			}
			s.SetDefaultSeed(seed)
		}

		url, err := s.Listen(fmt.Sprintf(":%d", port))
		if err != nil {
			log.Fatalf("Error binding port %d: %v", port, err)
		}

		if open, _ := cmd.Flags().GetBool("open"); open {
			if err := browser.OpenURL(url); err != nil {
				fmt.Fprintf(os.Stderr,
					"Could not open a browser: %v\n", err)
			}
		}

		err = s.Serve()
		if err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0,
		"Port to listen on (default VMLAB_PORT, then 8080)")
	serveCmd.Flags().String("env", "",
		"Env file to load before reading settings")
	serveCmd.Flags().Bool("record", false,
		"Record accesses to a SQLite trace database")
	serveCmd.Flags().Bool("open", false,
		"Open the served URL in a browser")
}

func loadEnv(cmd *cobra.Command) {
	envFile, _ := cmd.Flags().GetString("env")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Fatalf("Error loading env file %s: %v", envFile, err)
		}
		return
	}

	_ = godotenv.Load()
}

func resolvePort(cmd *cobra.Command) int {
	port, _ := cmd.Flags().GetInt("port")
	if port != 0 {
		return port
	}

	if raw := os.Getenv("VMLAB_PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("Error: bad VMLAB_PORT %q", raw)
		}
		return p
	}

	return 8080
}
