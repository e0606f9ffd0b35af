package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/villain/internal/errors"
	"github.com/vango-dev/villain/internal/project"
	"github.com/vango-dev/villain/pkg/render"
	"github.com/vango-dev/villain/pkg/scheduler"
	"github.com/vango-dev/villain/pkg/vdom"
)

type renderOptions struct {
	statePath  string
	dispatches []string
	ops        bool
	html       bool
	pretty     bool
}

func renderCmd() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render <component>",
		Short: "Mount a component and print its ops and HTML",
		Long: `Mount a component, print the ops that build it and the resulting HTML.

--state reads a YAML mapping of values passed to the component as props;
they shadow state of the same name. Each --dispatch delivers an event to
a node of the mounted tree and prints the ops of the update.

Examples:
  villain render App
  villain render TodoList --state fixtures/todos.yaml
  villain render Counter --dispatch 2:click --dispatch 2:click
  villain render Search --dispatch '3:input=hello' --html=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.statePath, "state", "", "YAML file of values passed as props")
	cmd.Flags().StringArrayVarP(&opts.dispatches, "dispatch", "d", nil, "Deliver an event: <node>:<event>[=<yaml payload>]")
	cmd.Flags().BoolVar(&opts.ops, "ops", true, "Print ops")
	cmd.Flags().BoolVar(&opts.html, "html", true, "Print HTML")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Indent the HTML")
	cmd.Flags().Int("max-renders", 0, "Renders per tick (0 for no limit)")
	return cmd
}

type dispatch struct {
	node    vdom.NodeID
	event   string
	payload any
}

func parseDispatch(s string) (dispatch, error) {
	var d dispatch
	target, payload, hasPayload := strings.Cut(s, "=")
	node, event, ok := strings.Cut(target, ":")
	if !ok || event == "" {
		return d, errors.New("V081").WithDetail(fmt.Sprintf("--dispatch %q: want <node>:<event>[=<payload>]", s))
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(node, "#"), 10, 64)
	if err != nil {
		return d, errors.New("V081").WithDetail(fmt.Sprintf("--dispatch %q: bad node id", s))
	}
	d.node, d.event = vdom.NodeID(id), event
	if hasPayload {
		if err := yaml.Unmarshal([]byte(payload), &d.payload); err != nil {
			return d, errors.New("V081").WithDetail(fmt.Sprintf("--dispatch %q: %v", s, err))
		}
	}
	return d, nil
}

func runRender(cmd *cobra.Command, name string, opts renderOptions) error {
	dispatches := make([]dispatch, 0, len(opts.dispatches))
	for _, s := range opts.dispatches {
		d, err := parseDispatch(s)
		if err != nil {
			return err
		}
		dispatches = append(dispatches, d)
	}

	var props map[string]any
	if opts.statePath != "" {
		var err error
		if props, err = project.ReadValuesFile(opts.statePath); err != nil {
			return err
		}
	}

	ws, err := openWorkspace(cmd)
	if err != nil {
		return err
	}
	for _, e := range ws.report.Errors {
		errors.Fprint(cmd.ErrOrStderr(), e)
	}
	reg := ws.project.Registry()
	def, err := reg.Lookup(name)
	if err != nil {
		return errors.FromError(err, "V022")
	}

	out := cmd.OutOrStdout()
	var batch []vdom.Op
	sink := scheduler.SinkFunc(func(ops []vdom.Op) error {
		batch = append(batch, ops...)
		return nil
	})
	sched := scheduler.New(reg, sink,
		scheduler.WithLogger(ws.logger),
		scheduler.WithMaxRendersPerTick(ws.cfg.Scheduler.MaxRendersPerTick),
	)

	ctx := cmdContext(cmd)
	if _, err := sched.Mount(ctx, def, props); err != nil {
		return errors.FromError(err, "V025")
	}
	defer func() { _ = sched.Unmount() }()
	// a bounded tick may leave renders behind
	if err := settle(ctx, sched); err != nil {
		return err
	}
	if opts.ops {
		printOps(out, "mount "+def.Name, batch)
	}

	for _, d := range dispatches {
		batch = nil
		if err := sched.Dispatch(d.node, d.event, d.payload); err != nil {
			return errors.FromError(err, "V024")
		}
		if err := settle(ctx, sched); err != nil {
			return err
		}
		if opts.ops {
			printOps(out, fmt.Sprintf("%s on #%d", d.event, d.node), batch)
		}
	}

	if opts.html {
		html, err := render.NewRenderer(render.RendererConfig{Pretty: opts.pretty}).
			RenderToString(sched.Snapshot()...)
		if err != nil {
			return err
		}
		if opts.ops {
			fmt.Fprintln(out, "# html")
		}
		fmt.Fprintln(out, strings.TrimRight(html, "\n"))
	}
	return nil
}

// settle ticks until nothing is pending.
func settle(ctx context.Context, sched *scheduler.Scheduler) error {
	for sched.Pending() > 0 {
		if err := sched.Tick(ctx); err != nil {
			return errors.FromError(err, "V020")
		}
	}
	return nil
}

func printOps(w io.Writer, title string, ops []vdom.Op) {
	fmt.Fprintf(w, "# %s\n", title)
	if len(ops) == 0 {
		fmt.Fprintln(w, "(no changes)")
		return
	}
	fmt.Fprint(w, vdom.FormatOps(ops))
}
