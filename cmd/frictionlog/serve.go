package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/FrictionLog/internal/database"
	"github.com/TobiSchelling/FrictionLog/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local FrictionLog backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cli.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		db, err := database.Open(cli.cfg.DBPath(), cli.logger)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("Starting server at http://localhost:%d (data: %s)\n", port, db.Path())
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port, cli.logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}
