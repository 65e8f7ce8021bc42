package config

import "github.com/urfave/cli"

// Flags are the CLI overrides layered on top of the TOML file.
var Flags = []cli.Flag{
	cli.StringFlag{Name: "config", Value: "libre.toml", Usage: "path to the node's TOML configuration file"},
	cli.IntFlag{Name: "port", Usage: "override the gossip listen port"},
	cli.StringFlag{Name: "node-id", Usage: "override the node id"},
	cli.IntFlag{Name: "signature-wait-seconds", Usage: "override the signature collection timeout"},
	cli.StringFlag{Name: "database-dsn", Usage: "override the MySQL data source name"},
}

// ApplyFlags layers CLI flag overrides from ctx on top of cfg.
func ApplyFlags(cfg Config, ctx *cli.Context) Config {
	if ctx.IsSet("port") {
		cfg.Port = ctx.Int("port")
	}
	if ctx.IsSet("node-id") {
		cfg.NodeID = ctx.String("node-id")
	}
	if ctx.IsSet("signature-wait-seconds") {
		cfg.SignatureWaitSeconds = ctx.Int("signature-wait-seconds")
	}
	if ctx.IsSet("database-dsn") {
		cfg.DatabaseDSN = ctx.String("database-dsn")
	}
	return cfg
}
