package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"pfolio-api/internal/cli"
	"pfolio-api/internal/config"
	"pfolio-api/internal/svc"
)

var (
	configFile = flag.String("f", "etc/pfolio.yaml", "path to the main configuration file")
	listTools  = flag.Bool("list", false, "print the tool catalog and exit")
	toolName   = flag.String("tool", "", "tool to invoke")
	toolParams = flag.String("params", "{}", "JSON parameters for the tool")
	pretty     = flag.Bool("pretty", false, "indent JSON output")
)

func main() {
	flag.Parse()
	logx.MustSetup(logx.LogConf{})
	logx.DisableStat()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)

	env := svc.NewServiceContext(cfg)

	switch {
	case *listTools:
		emit(env.Registry.List())
	case *toolName != "":
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		result := env.Registry.Dispatch(ctx, *toolName, json.RawMessage(*toolParams))
		emit(result)
		if !result.OK {
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "nothing to do: pass -list or -tool <name> [-params '<json>']")
		flag.Usage()
		os.Exit(2)
	}
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		logx.Errorf("encode output: %v", err)
		os.Exit(1)
	}
}
