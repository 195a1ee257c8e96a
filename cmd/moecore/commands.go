package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/moecore/internal/domain/expert"
	"github.com/Strob0t/moecore/internal/service"
)

// withApp assembles the engine for a one-shot command and releases it afterwards.
func (c *cli) withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app, p *printer) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, c.cfg, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a, newPrinter(cmd.OutOrStdout(), c.jsonOut))
}

func newRouteCmd(c *cli) *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "route <query>",
		Short: "Rank registered experts against a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, appOptions{}, func(ctx context.Context, a *app, p *printer) error {
				var rc *expert.RouteContext
				if domain != "" {
					rc = &expert.RouteContext{Domain: domain}
				}
				sels, err := a.engine.Route(ctx, strings.Join(args, " "), rc)
				if err != nil {
					return err
				}
				sums := expert.Summarize(sels)
				rows := make([][]string, 0, len(sums))
				for _, s := range sums {
					rows = append(rows, []string{s.ExpertID, s.Name, score(s.Score), s.Reasoning})
				}
				return p.print(sums, []string{"EXPERT", "NAME", "SCORE", "REASONING"}, rows)
			})
		},
	}
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "restrict routing to one domain")
	return cmd
}

func newSuggestCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <task description>",
		Short: "Suggest experts for a task description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, appOptions{}, func(ctx context.Context, a *app, p *printer) error {
				sugs, err := a.engine.Suggestions(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(sugs))
				for _, s := range sugs {
					rows = append(rows, []string{s.ExpertID, s.Domain, score(s.Score), s.Expertise})
				}
				return p.print(sugs, []string{"EXPERT", "DOMAIN", "SCORE", "EXPERTISE"}, rows)
			})
		},
	}
}

func newQueryCmd(c *cli) *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Route a query and collect an analysis from every selected expert",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, appOptions{}, func(ctx context.Context, a *app, p *printer) error {
				var rc *expert.RouteContext
				if domain != "" {
					rc = &expert.RouteContext{Domain: domain}
				}
				resp, err := a.engine.QueryExperts(ctx, strings.Join(args, " "), rc)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(resp.Analyses))
				for _, an := range resp.Analyses {
					rows = append(rows, []string{an.ExpertID, score(an.Score), analysisText(an.Analysis)})
				}
				return p.print(resp, []string{"EXPERT", "SCORE", "ANALYSIS"}, rows)
			})
		},
	}
	cmd.Flags().StringVarP(&domain, "domain", "d", "", "restrict routing to one domain")
	return cmd
}

// analysisText picks the human-readable part of an analysis.
func analysisText(m map[string]any) string {
	for _, k := range []string{"answer", "message"} {
		if v, ok := m[k].(string); ok {
			return v
		}
	}
	return fmt.Sprint(m)
}

func newRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run <prompt>",
		Short: "Dispatch a prompt across the expert pool and record the interaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, appOptions{orchestrator: true}, func(ctx context.Context, a *app, p *printer) error {
				rep, err := a.orch.Run(ctx, strings.Join(args, " "), nil)
				if err != nil {
					return err
				}
				rows := [][]string{
					{"run_id", rep.RunID},
					{"scrubbed", rep.Scrubbed},
					{"experts", strconv.Itoa(len(rep.PerExpert))},
					{"dataset_size", strconv.Itoa(rep.DatasetSize)},
					{"decision", strings.ReplaceAll(rep.Decision, "\n", " | ")},
				}
				return p.print(rep, []string{"FIELD", "VALUE"}, rows)
			})
		},
	}
}

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the expert registry to a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, appOptions{}, func(ctx context.Context, a *app, _ *printer) error {
				if err := a.engine.ExportRegistry(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d experts to %s\n", len(a.engine.Experts()), args[0])
				return nil
			})
		},
	}
}

func newDomainsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "domains",
		Short: "List expertise domains and their expert counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, appOptions{}, func(_ context.Context, a *app, p *printer) error {
				infos := a.engine.ListDomains()
				rows := make([][]string, 0, len(infos))
				for _, d := range infos {
					rows = append(rows, []string{d.Domain, d.DisplayName, strconv.Itoa(d.ExpertCount)})
				}
				return p.print(infos, []string{"DOMAIN", "NAME", "EXPERTS"}, rows)
			})
		},
	}
}

func newExamplesCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Show the most recently recorded interactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, appOptions{orchestrator: true}, func(ctx context.Context, a *app, p *printer) error {
				exs, err := a.orch.Examples(ctx, limit)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(exs))
				for _, e := range exs {
					rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.CreatedAt.Format(time.RFC3339), e.Scrubbed})
				}
				return p.print(exs, []string{"ID", "RECORDED", "PROMPT"}, rows)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultExampleLimit, "number of examples")
	return cmd
}

type backendStatus struct {
	Backends []string `json:"backends"`
	LiteLLM  struct {
		Healthy   int    `json:"healthy"`
		Unhealthy int    `json:"unhealthy"`
		Error     string `json:"error,omitempty"`
	} `json:"litellm"`
}

func newBackendsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List expert backends and check the LiteLLM proxy health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, appOptions{}, func(ctx context.Context, a *app, p *printer) error {
				var st backendStatus
				st.Backends = a.backends.Available()

				hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				defer cancel()
				if rep, err := a.llm.HealthDetailed(hctx); err != nil {
					st.LiteLLM.Error = err.Error()
				} else {
					st.LiteLLM.Healthy = rep.HealthyCount
					st.LiteLLM.Unhealthy = rep.UnhealthyCount
				}

				rows := make([][]string, 0, len(st.Backends)+1)
				for _, b := range st.Backends {
					rows = append(rows, []string{b, "registered"})
				}
				status := fmt.Sprintf("%d healthy, %d unhealthy", st.LiteLLM.Healthy, st.LiteLLM.Unhealthy)
				if st.LiteLLM.Error != "" {
					status = "unreachable: " + st.LiteLLM.Error
				}
				rows = append(rows, []string{"litellm proxy", status})
				return p.print(st, []string{"BACKEND", "STATUS"}, rows)
			})
		},
	}
}
