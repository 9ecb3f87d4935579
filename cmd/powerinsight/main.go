package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/KevinKickass/PowerInsight/internal/config"
	"github.com/KevinKickass/PowerInsight/internal/types"
	"github.com/KevinKickass/PowerInsight/pidev"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	flags := pflag.NewFlagSet("powerinsight", pflag.ContinueOnError)
	usage := flags.BoolP("usage", "u", false, "print usage and exit")
	verbose := flags.CountP("verbose", "v", "increase verbosity")
	quiet := flags.BoolP("quiet", "q", false, "only report errors")
	debug := flags.StringArrayP("debug", "d", nil, "OR a debug bitmask (0x10 config, 0x20 spi, 0x40 wait)")
	flags.StringP("config", "c", "", "user board file")
	flags.StringP("libexec", "D", "", "directory of board files applied at startup")
	settings := flags.String("settings", "", "YAML settings file")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: powerinsight [-u] [-v]... [-q] [-d flags] [-c file] [-D directory] [chan ...]\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil || *usage {
		flags.Usage()
		os.Exit(1)
	}

	debugFlags, err := parseDebug(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "powerinsight: %v\n", err)
		os.Exit(1)
	}

	v := viper.New()
	if err := v.BindPFlag("paths.config_file", flags.Lookup("config")); err != nil {
		log.Fatalf("Failed to bind flags: %v", err)
	}
	if err := v.BindPFlag("paths.libexec_dir", flags.Lookup("libexec")); err != nil {
		log.Fatalf("Failed to bind flags: %v", err)
	}

	cfg, err := config.Load(v, *settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "powerinsight: %v\n", err)
		os.Exit(1)
	}
	cfg.Debug.Flags |= debugFlags
	cfg.Debug.Verbose += *verbose
	if *quiet {
		cfg.Debug.Quiet = true
		cfg.Debug.Verbose = -1
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	session := pidev.NewSession(cfg, logger)

	ctx := context.Background()
	session.MustOpen(ctx)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error("Close failed", zap.Error(err))
		}
	}()

	names := flags.Args()
	if len(names) == 0 {
		for _, name := range session.Names() {
			fmt.Println(name)
		}
		return
	}

	for _, name := range names {
		var sample pidev.Sample
		st := session.ReadByName(ctx, name, &sample)
		if st != pidev.Success {
			fmt.Printf("%s => %s\n", name, describe(st))
			continue
		}
		if sample.Kind == types.KindPower {
			fmt.Printf("%s => %.3f W (%.3f V, %.3f A)\n", name, sample.Value, sample.Volt, sample.Amp)
			continue
		}
		fmt.Printf("%s => %.3f\n", name, sample.Value)
	}
}

func describe(st pidev.Status) string {
	if st == pidev.NotFound {
		return "NOT FOUND"
	}
	return st.String()
}

// parseDebug ORs every -d value; 0x and 0 prefixes select the base.
func parseDebug(values []string) (int, error) {
	flags := 0
	for _, s := range values {
		n, err := strconv.ParseInt(s, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("bad debug flags %q: %w", s, err)
		}
		flags |= int(n)
	}
	return flags, nil
}

func newLogger(d config.DebugFlags) (*zap.Logger, error) {
	switch {
	case d.Quiet:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
		return cfg.Build()
	case d.Verbose >= 2 || d.Flags != 0:
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}
