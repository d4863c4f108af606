package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	blocklib "github.com/AnishMulay/blockfs/clients/library"
	"github.com/AnishMulay/blockfs/internal/config"
	"github.com/AnishMulay/blockfs/internal/mcp_server"
	"github.com/AnishMulay/blockfs/servers/simple"
)

// Serves the tools against the server at server.address, or against an in
// process filesystem with -local. Logs never go to stdout, which carries the
// protocol.
func main() {
	var (
		configPath = flag.String("config", config.DefaultPath(), "Config file")
		local      = flag.Bool("local", false, "Open the filesystem in process instead of dialing server.address")
	)
	flag.Parse()

	if err := run(*configPath, *local); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, local bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if local {
		l, err := simple.OpenLocal(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer l.Close()
		return mcp_server.ServeStdio(l.FS, l.Logs)
	}

	ls, closer, err := simple.OpenLog(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	comm, err := simple.NewCommunicator(cfg, "", ls)
	if err != nil {
		return err
	}
	defer comm.Stop()
	client := blocklib.NewBlockfsClient(cfg.Server.Address, comm)
	client.From = "mcp-server"
	return mcp_server.ServeStdio(client, ls)
}
