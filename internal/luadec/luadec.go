// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package luadec provides a Cobra command that decodes Lua 5.4 binary chunks
// and prints their contents.
// Its listing output is roughly the same as [luac(1)] -l.
//
// [luac(1)]: https://www.lua.org/manual/5.4/luac.html
package luadec

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"sync"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"zb.256lights.llc/luachunk"
	"zb.256lights.llc/luachunk/internal/disasm"
	"zombiezen.com/go/log"
)

type options struct {
	files       []string
	configPaths []string
	list        int
	rawPC       bool
	headerOnly  bool
	json        bool
	debug       bool
	limits      luachunk.DecodeOptions

	stdin io.Reader
	// indentJSON is resolved from the configuration and the output.
	indentJSON bool
}

// New returns a new luadec command.
// initLogging is called with whether debug logging was requested
// after flags and configuration files have been read.
// initLogging may be nil.
func New(initLogging func(showDebug bool)) *cobra.Command {
	c := &cobra.Command{
		Use:                   "luadec [options] FILE [...]",
		Short:                 "decode Lua 5.4 binary chunks",
		Args:                  cobra.MinimumNArgs(1),
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(options)
	c.Flags().CountVarP(&opts.list, "list", "l", "list constants, locals, and upvalues (when given twice)")
	c.Flags().BoolVarP(&opts.rawPC, "raw-pc", "0", false, "show literal PC values")
	c.Flags().BoolVar(&opts.headerOnly, "header", false, "only show a summary of each chunk's header")
	c.Flags().BoolVar(&opts.json, "json", false, "print the decoded chunks as JSON")
	c.Flags().StringArrayVar(&opts.configPaths, "config", nil, "read configuration from `path` (can be passed multiple times)")
	c.Flags().BoolVar(&opts.debug, "debug", false, "show debugging output")
	c.Flags().AddFlagSet(limitFlags(&opts.limits))
	c.MarkFlagsMutuallyExclusive("header", "json")

	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.files = args
		cfg, err := loadConfig(opts.configPaths)
		if err != nil {
			return err
		}
		if initLogging != nil {
			initLogging(opts.debug || cfg.Debug)
		}
		opts.mergeConfig(cmd.Flags(), cfg)
		opts.stdin = cmd.InOrStdin()
		out := cmd.OutOrStdout()
		opts.indentJSON = cfg.IndentJSON.Or(isTerminal(out))
		return run(cmd.Context(), out, opts)
	}
	return c
}

// limitFlags returns a flag set for the resource limits of the decoder.
func limitFlags(limits *luachunk.DecodeOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("limits", pflag.ContinueOnError)
	fs.IntVar(&limits.MaxDepth, "max-depth", luachunk.DefaultMaxDepth, "maximum nesting `depth` of functions")
	fs.IntVar(&limits.MaxCount, "max-count", luachunk.DefaultMaxCount, "maximum `number` of elements in any table of a function")
	fs.BoolVar(&limits.StrictPlatform, "strict-platform", false, "reject chunks whose float sample is not 370.5")
	return fs
}

func loadConfig(explicitPaths []string) (*config, error) {
	cfg := new(config)
	paths := defaultConfigPaths()
	if len(explicitPaths) > 0 {
		for _, path := range explicitPaths {
			if _, err := os.Stat(path); err != nil {
				return nil, err
			}
		}
		paths = slices.Values(explicitPaths)
	}
	if err := cfg.mergeFiles(paths); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeConfig applies the configuration to options
// that were not set on the command line.
func (opts *options) mergeConfig(flags *pflag.FlagSet, cfg *config) {
	if cfg.MaxDepth.Valid && !flags.Changed("max-depth") {
		opts.limits.MaxDepth = cfg.MaxDepth.X
	}
	if cfg.MaxCount.Valid && !flags.Changed("max-count") {
		opts.limits.MaxCount = cfg.MaxCount.X
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type decodeResult struct {
	chunk *luachunk.Chunk
	size  int
	err   error
}

func run(ctx context.Context, out io.Writer, opts *options) error {
	results := make([]decodeResult, len(opts.files))
	// Standard input can only be read once, even if named several times.
	readStdin := sync.OnceValues(func() ([]byte, error) {
		return io.ReadAll(opts.stdin)
	})
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range opts.files {
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			data, err := readInput(name, readStdin)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].size = len(data)
			results[i].chunk, results[i].err = opts.limits.Decode(data)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}

	for i, name := range opts.files {
		r := results[i]
		if r.err != nil {
			return fmt.Errorf("%s: %w", displayName(name), r.err)
		}
		log.Debugf(ctx, "%s: decoded %d bytes (%d functions)", displayName(name), r.size, countFunctions(r.chunk.Main))
		if !r.chunk.Header.NumberSampleMatches() {
			log.Warnf(ctx, "%s: float sample is %v instead of 370.5; floats may be misread", displayName(name), r.chunk.Header.NumberSample)
		}
		if r.chunk.TrailingBytes > 0 {
			log.Warnf(ctx, "%s: %d trailing bytes after main function", displayName(name), r.chunk.TrailingBytes)
		}
		if err := write(out, displayName(name), r.chunk, opts); err != nil {
			return err
		}
	}
	return nil
}

// fileChunk is the JSON form of a decoded file.
type fileChunk struct {
	File  string          `json:"file"`
	Chunk *luachunk.Chunk `json:"chunk"`
}

func write(out io.Writer, name string, c *luachunk.Chunk, opts *options) error {
	switch {
	case opts.json:
		var jsonOpts []jsonv2.Options
		if opts.indentJSON {
			jsonOpts = append(jsonOpts, jsontext.WithIndent("\t"))
		}
		data, err := jsonv2.Marshal(&fileChunk{File: name, Chunk: c}, jsonOpts...)
		if err != nil {
			return fmt.Errorf("%s: %v", name, err)
		}
		data = append(data, '\n')
		_, err = out.Write(data)
		return err
	case opts.headerOnly:
		return disasm.WriteHeader(out, name, c)
	default:
		return disasm.WriteListing(out, c, &disasm.Options{
			Full:  opts.list > 1,
			RawPC: opts.rawPC,
		})
	}
}

func countFunctions(f *luachunk.Prototype) int {
	n := 1
	for _, child := range f.Functions {
		n += countFunctions(child)
	}
	return n
}

func displayName(name string) string {
	if name == stdinName {
		return "stdin"
	}
	return name
}
