package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	blocklib "github.com/AnishMulay/blockfs/clients/library"
	"github.com/AnishMulay/blockfs/internal/config"
	pfs "github.com/AnishMulay/blockfs/internal/file_service"
	"github.com/AnishMulay/blockfs/internal/log_service"
	"github.com/AnishMulay/blockfs/internal/mcp_server"
	"github.com/AnishMulay/blockfs/servers/simple"
)

type action func(ctx context.Context, svc pfs.FileService, c *cli.Context) error

func newApp() *cli.App {
	return &cli.App{
		Name:  "blockfs",
		Usage: "simulate contiguous, linked, indexed and unix block allocation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file, created with defaults when missing",
				Value:   config.DefaultPath(),
				EnvVars: []string{config.EnvPrefix + "_CONFIG_FILE"},
			},
			&cli.StringFlag{
				Name:    "remote",
				Aliases: []string{"r"},
				Usage:   "address of a running blockfs server; operate locally when empty",
				EnvVars: []string{config.EnvPrefix + "_REMOTE"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log at the configured level instead of warnings only",
			},
		},
		Commands: []*cli.Command{{
			Name:      "touch",
			Usage:     "create a file of SIZE_KB kilobytes",
			ArgsUsage: "PATH SIZE_KB",
			Action:    withService(2, touch),
		}, {
			Name:      "mkdir",
			Usage:     "create a directory",
			ArgsUsage: "PATH",
			Action:    withService(1, mkdir),
		}, {
			Name:      "mv",
			Usage:     "rename an entry within its directory",
			ArgsUsage: "PATH NEW_NAME",
			Action:    withService(2, rename),
		}, {
			Name:      "rm",
			Usage:     "delete a file or an empty directory",
			ArgsUsage: "PATH",
			Action:    withService(1, remove),
		}, {
			Name:      "chmod",
			Usage:     `set permissions, e.g. "r-x"`,
			ArgsUsage: "PATH PERMISSIONS",
			Action:    withService(2, chmod),
		}, {
			Name:      "strategy",
			Usage:     "show the allocation strategy, or switch it for new files",
			ArgsUsage: "[contiguous|linked|indexed|unix]",
			Action:    withService(0, strategy),
		}, {
			Name:      "ls",
			Usage:     "list a directory",
			ArgsUsage: "[PATH]",
			Action:    withService(0, list),
		}, {
			Name:      "tree",
			Usage:     "print the directory tree",
			ArgsUsage: "[PATH]",
			Action:    withService(0, tree),
		}, {
			Name:      "stat",
			Usage:     "show an inode, its pointers and its block chain",
			ArgsUsage: "PATH",
			Action:    withService(1, stat),
		}, {
			Name:      "resolve",
			Usage:     "show every step of a path lookup",
			ArgsUsage: "PATH",
			Action:    withService(1, resolve),
		}, {
			Name:   "stats",
			Usage:  "show disk usage and fragmentation",
			Action: withService(0, stats),
		}, {
			Name:  "layout",
			Usage: "draw the disk block map",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "width", Aliases: []string{"w"}, Value: 64, Usage: "blocks per row"},
			},
			Action: withService(0, layout),
		}, {
			Name:   "reset",
			Usage:  "discard everything and start from a fresh filesystem",
			Action: withService(0, reset),
		}, {
			Name:   "serve",
			Usage:  "serve the filesystem over gRPC on server.address",
			Action: serve,
		}, {
			Name:   "mcp",
			Usage:  "serve the filesystem as MCP tools over stdio",
			Action: withService(0, serveMCP),
		}},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if !c.Bool("verbose") && c.Command.Name != "serve" {
		cfg.Log.Level = log_service.WarnLevel
	}
	return cfg, nil
}

// withService opens the filesystem, locally or through --remote, and runs fn
// once at least minArgs positional arguments are present.
func withService(minArgs int, fn action) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < minArgs {
			return fmt.Errorf("usage: blockfs %s %s", c.Command.Name, c.Command.ArgsUsage)
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		ctx := c.Context
		if ctx == nil {
			ctx = context.Background()
		}

		if addr := c.String("remote"); addr != "" {
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
			client := blocklib.NewBlockfsClient(addr, comm)
			client.From = "blockfs-cli"
			return fn(ctx, client, c)
		}

		local, err := simple.OpenLocal(ctx, cfg)
		if err != nil {
			return err
		}
		defer local.Close()
		return fn(ctx, local.FS, c)
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	node, err := simple.Build(c.Context, cfg)
	if err != nil {
		return err
	}
	node.Logs.Info(log_service.LogEvent{
		Message:  "Serving blockfs",
		Metadata: map[string]any{"address": cfg.Server.Address, "store": cfg.Store.Type},
	})
	return node.Run()
}

func serveMCP(_ context.Context, svc pfs.FileService, c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ls, closer, err := simple.OpenLog(cfg)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return mcp_server.ServeStdio(svc, ls)
}

func parseKB(s string) (int64, error) {
	kb, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return blocklib.KBToBytes(kb)
}
