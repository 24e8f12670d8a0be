package main

import (
	"log"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/junkd0g/bubbleflow/internal/generate"
	"github.com/junkd0g/bubbleflow/internal/logging"
	"github.com/junkd0g/bubbleflow/internal/tools"
)

func main() {
	// stdout carries the MCP protocol, so logs go to stderr.
	logger, err := logging.New(os.Getenv("BUBBLEFLOW_LOG_LEVEL"), os.Stderr, false)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}

	s := server.NewMCPServer(
		"bubbleflow",
		"1.0.0",
	)

	tools.Register(s, generate.New(0, logger), logger)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
