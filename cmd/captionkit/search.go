package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/example/captionkit/internal/search"
)

type searchCmd struct {
	*root
	fs      *flag.FlagSet
	perPage int
	query   string
}

func (s *searchCmd) FlagSet() *flag.FlagSet {
	return s.fs
}

func (s *searchCmd) Program() string {
	return s.root.subcommand("search")
}

func parseSearchCmd(args []string, r *root) (*searchCmd, error) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c := &searchCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.IntVar(&c.perPage, "per-page", r.config.Search.PerPage, "number of photos to request")
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{of: c}
	}
	c.query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if c.query == "" {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (s *searchCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := *s.config
	cfg.Search.PerPage = s.perPage
	results, err := s.newSearcher(&cfg).Search(ctx, s.query)
	if err != nil {
		return fmt.Errorf("%s: %w", search.Message(err), err)
	}
	printResults(s.stdout, results)
	return nil
}

func printResults(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, search.MsgNoResults)
		return
	}
	for i, res := range results {
		label := res.Alt
		if label == "" {
			label = fmt.Sprintf("photo %d", res.ID)
		}
		if res.Photographer != "" {
			label += " by " + res.Photographer
		}
		fmt.Fprintf(w, "%d. %s\n", i+1, label)
		fmt.Fprintf(w, "   medium: %s\n", res.Medium)
		fmt.Fprintf(w, "   large:  %s\n", res.Large)
	}
}
