package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/layercache/internal/util"
)

func getCmd(g *globals) *cobra.Command {
	var def string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key through the layers, populating faster ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(cmd.Context(), func(s *session) error {
				v, ok, err := s.cache.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					if !cmd.Flags().Changed("default") {
						return fmt.Errorf("%s: %w", args[0], errNotFound)
					}
					v = def
				}
				fmt.Fprintln(g.out, v)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&def, "default", "d", "", "value printed on a miss instead of failing")
	return cmd
}

func mgetCmd(g *globals) *cobra.Command {
	var def string
	cmd := &cobra.Command{
		Use:   "mget <key>...",
		Short: "Read several keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(cmd.Context(), func(s *session) error {
				got, err := s.cache.GetMultiple(cmd.Context(), args, def)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(g.out, 0, 0, 2, ' ', 0)
				for _, k := range args {
					fmt.Fprintf(w, "%s\t%s\n", k, got[k])
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&def, "default", "d", "", "value shown for misses")
	return cmd
}

func setCmd(g *globals) *cobra.Command {
	var ttlFlag string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key to every layer",
		Long:  "Write a key to every layer. --ttl 0 uses the configured default; a negative ttl never expires.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, err := parseTTL(ttlFlag)
			if err != nil {
				return err
			}
			return g.withCache(cmd.Context(), func(s *session) error {
				ok, err := s.cache.Set(cmd.Context(), args[0], args[1], ttl)
				if err != nil {
					return err
				}
				return report(g, ok, "set")
			})
		},
	}
	cmd.Flags().StringVar(&ttlFlag, "ttl", "0", "time to live: integer seconds or a duration such as 1h30m")
	return cmd
}

func delCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "del <key>...",
		Aliases: []string{"delete"},
		Short:   "Delete keys from every layer",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(cmd.Context(), func(s *session) error {
				ok, err := s.cache.DeleteMultiple(cmd.Context(), args)
				if err != nil {
					return err
				}
				return report(g, ok, "del")
			})
		},
	}
}

func hasCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "has <key>",
		Short: "Report whether any layer holds a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(cmd.Context(), func(s *session) error {
				ok, err := s.cache.Has(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(g.out, strconv.FormatBool(ok))
				return nil
			})
		},
	}
}

func clearCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from every layer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withCache(cmd.Context(), func(s *session) error {
				return report(g, s.cache.Clear(cmd.Context()), "clear")
			})
		},
	}
}

func layersCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "layers",
		Short: "List the configured layers, fastest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withCache(cmd.Context(), func(s *session) error {
				w := tabwriter.NewWriter(g.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "INDEX\tNAME\tTYPE")
				for i, l := range s.cfg.Layers {
					name := l.Name
					if name == "" {
						name = "-"
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", i, name, l.Type)
				}
				return w.Flush()
			})
		},
	}
}

func layerGetCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "layer-get <layer> <key>",
		Short: "Read the raw stored bytes of a key from one named layer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withCache(cmd.Context(), func(s *session) error {
				p, err := s.cache.Layer(args[0])
				if err != nil {
					return err
				}
				k, err := s.cache.StorageKey(args[1])
				if err != nil {
					return err
				}
				e, ok, err := p.Get(cmd.Context(), k)
				if err != nil {
					return fmt.Errorf("layer %s: %w", args[0], err)
				}
				if !ok {
					return fmt.Errorf("%s in layer %s: %w", args[1], args[0], errNotFound)
				}
				exp := "never"
				if !e.ExpiresAt.IsZero() {
					exp = e.ExpiresAt.UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(g.out, "key:     %s\nexpires: %s\nbytes:   %d\nraw:     %q\n", k, exp, len(e.Value), e.Value)
				return nil
			})
		},
	}
}

// parseTTL accepts whole seconds ("30", "-1") or a Go duration ("90s").
func parseTTL(s string) (time.Duration, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return util.Seconds(n), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("--ttl: %q is neither seconds nor a duration", s)
	}
	return d, nil
}

// report prints OK, or PARTIAL when at least one layer failed or refused.
func report(g *globals, ok bool, op string) error {
	if ok {
		fmt.Fprintln(g.out, "OK")
		return nil
	}
	fmt.Fprintf(g.out, "PARTIAL: %s did not succeed on every layer\n", op)
	return nil
}
