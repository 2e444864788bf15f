package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/bonprosoft/pysen-ls/internal/server"
)

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

func main() {
	var (
		useIO  bool
		useTCP bool
		host   string
		port   int
	)

	rootCmd := &cobra.Command{
		Use:     "pysen-ls",
		Short:   "Language server exposing pysen lint and format results",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if useIO == useTCP {
				return fmt.Errorf("exactly one of --io or --tcp is required")
			}
			return run(useTCP, host, port)
		},
	}

	rootCmd.Flags().BoolVar(&useIO, "io", false, "use stdio to communicate with the client")
	rootCmd.Flags().BoolVar(&useTCP, "tcp", false, "use tcp to communicate with the client")
	rootCmd.Flags().StringVar(&host, "host", "127.0.0.1", "hostname for the tcp server, only with --tcp")
	rootCmd.Flags().IntVar(&port, "port", 3746, "port number for the tcp server, only with --tcp")
	rootCmd.MarkFlagsMutuallyExclusive("io", "tcp")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(useTCP bool, host string, port int) error {
	// Set up logging
	logsDir := filepath.Join(os.TempDir(), "pysen-ls")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	logPath := filepath.Join(logsDir, "pysen-ls.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	commonlog.Configure(1, &logPath)

	multiWriter := io.MultiWriter(os.Stderr, logFile)
	log.SetOutput(multiWriter)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	log.Println("starting pysen-ls...")

	ls, err := server.NewServer()
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if useTCP {
		address := fmt.Sprintf("%s:%d", host, port)
		log.Printf("listening on %s", address)
		return ls.RunTCP(address)
	}
	log.Println("using stdio for the communication")
	return ls.RunStdio()
}
