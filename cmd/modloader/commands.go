package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	dom "modloader/internal/services/loader/domain"
	"modloader/internal/services/loader/manifest"
	"modloader/internal/services/loader/service"

	"github.com/urfave/cli/v3"
)

// opener returns a loader and a func releasing whatever it opened
type opener func(ctx context.Context) (*service.Loader, func(), error)

type app struct {
	out     io.Writer
	open    opener
	loader  *service.Loader
	closeFn func()
}

func newApp(out io.Writer, open opener) *cli.Command {
	a := &app{out: out, open: open}

	return &cli.Command{
		Name:  "modloader",
		Usage: "inspect and edit the module cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "seed",
				Usage:   "apply a YAML manifest before running the command",
				Sources: cli.NewValueSourceChain(cli.EnvVar("LOADER_SEED")),
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print results as JSON",
				HideDefault: true,
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:   "keys",
				Usage:  "list cached specifiers in insertion order",
				Action: a.keys,
			},
			{
				Name:   "entries",
				Usage:  "list cached specifiers with their module ids",
				Action: a.entries,
			},
			{
				Name:      "get",
				Usage:     "show the module reference for a specifier",
				ArgsUsage: "<specifier>",
				Action:    a.get,
			},
			{
				Name:      "set",
				Usage:     "bind a specifier to a module id or to another specifier's module",
				ArgsUsage: "<specifier>",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "id", Usage: "module id to bind"},
					&cli.StringFlag{Name: "from", Usage: "bind to the module this specifier resolves to"},
				},
				Action: a.set,
			},
			{
				Name:      "drop",
				Usage:     "remove the binding for a specifier",
				ArgsUsage: "<specifier>",
				Action:    a.drop,
			},
			{
				Name:      "resolve",
				Usage:     "resolve a specifier against an optional referrer",
				ArgsUsage: "<specifier> [referrer]",
				Action:    a.resolve,
			},
			{
				Name:      "exports",
				Usage:     "print the namespace of an evaluated module",
				ArgsUsage: "<specifier>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "gjson path within the namespace"},
				},
				Action: a.exports,
			},
			{
				Name:      "requests",
				Usage:     "list the specifiers a module imports",
				ArgsUsage: "<specifier>",
				Action:    a.requests,
			},
			{
				Name:      "seed",
				Usage:     "apply a YAML manifest of records, aliases, and bindings",
				ArgsUsage: "<manifest.yaml>",
				Action:    a.seed,
			},
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	l, closeFn, err := a.open(ctx)
	if err != nil {
		return ctx, err
	}
	a.loader, a.closeFn = l, closeFn

	if path := cmd.String("seed"); path != "" {
		if _, err := a.applyManifest(ctx, path); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

func (a *app) after(context.Context, *cli.Command) error {
	if a.closeFn != nil {
		a.closeFn()
	}
	return nil
}

func (a *app) applyManifest(ctx context.Context, path string) (manifest.Result, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return manifest.Result{}, err
	}
	return manifest.Apply(ctx, a.loader, m)
}

func argSpecifier(cmd *cli.Command) (dom.Specifier, error) {
	s := cmd.Args().First()
	if s == "" {
		return "", fmt.Errorf("%s: missing <specifier>", cmd.Name)
	}
	return dom.Specifier(s), nil
}

// print writes v as JSON when --json is set, else the text lines
func (a *app) print(cmd *cli.Command, v any, lines ...string) error {
	if cmd.Root().Bool("json") {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	for _, ln := range lines {
		if _, err := fmt.Fprintln(a.out, ln); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) keys(ctx context.Context, cmd *cli.Command) error {
	ks, err := a.loader.Keys(ctx)
	if err != nil {
		return err
	}
	lines := make([]string, len(ks))
	for i, k := range ks {
		lines[i] = string(k)
	}
	return a.print(cmd, lines, lines...)
}

type entryJSON struct {
	Specifier string `json:"specifier"`
	ID        int64  `json:"id"`
}

func (a *app) entries(ctx context.Context, cmd *cli.Command) error {
	es, err := a.loader.Entries(ctx)
	if err != nil {
		return err
	}
	rows := make([]entryJSON, 0, len(es))
	lines := make([]string, 0, len(es))
	for _, e := range es {
		id, _ := e.Ref.Cached()
		rows = append(rows, entryJSON{Specifier: string(e.Specifier), ID: int64(id)})
		lines = append(lines, fmt.Sprintf("%s\t%d", e.Specifier, id))
	}
	return a.print(cmd, rows, lines...)
}

func (a *app) get(ctx context.Context, cmd *cli.Command) error {
	s, err := argSpecifier(cmd)
	if err != nil {
		return err
	}
	ref, err := a.loader.Get(ctx, s)
	if err != nil {
		return err
	}
	out := struct {
		Specifier string `json:"specifier"`
		ID        *int64 `json:"id"`
	}{Specifier: string(s)}
	if id, ok := ref.Cached(); ok {
		n := int64(id)
		out.ID = &n
	}
	return a.print(cmd, out, ref.String())
}

func (a *app) set(ctx context.Context, cmd *cli.Command) error {
	s, err := argSpecifier(cmd)
	if err != nil {
		return err
	}
	hasID, from := cmd.IsSet("id"), cmd.String("from")
	if hasID == (from != "") {
		return errors.New("set: exactly one of --id or --from is required")
	}

	var ref *service.Ref
	if hasID {
		ref = service.NewResolvedRef(a.loader.Backend(), s, dom.ID(cmd.Int64("id")))
	} else {
		ref = a.loader.Ref(dom.Specifier(from))
	}
	if err := a.loader.Set(ctx, s, ref); err != nil {
		return err
	}
	id, _ := ref.Cached()
	return a.print(cmd, entryJSON{Specifier: string(s), ID: int64(id)}, fmt.Sprintf("%s\t%d", s, id))
}

func (a *app) drop(ctx context.Context, cmd *cli.Command) error {
	s, err := argSpecifier(cmd)
	if err != nil {
		return err
	}
	removed, err := a.loader.Drop(ctx, s)
	if err != nil {
		return err
	}
	return a.print(cmd, map[string]any{"specifier": string(s), "removed": removed}, fmt.Sprint(removed))
}

func (a *app) resolve(ctx context.Context, cmd *cli.Command) error {
	s, err := argSpecifier(cmd)
	if err != nil {
		return err
	}
	referrer := dom.Specifier(cmd.Args().Get(1))
	out, err := a.loader.Resolve(ctx, s, referrer)
	if err != nil {
		return err
	}
	return a.print(cmd, map[string]string{"resolved": string(out)}, string(out))
}

func (a *app) exports(ctx context.Context, cmd *cli.Command) error {
	s, err := argSpecifier(cmd)
	if err != nil {
		return err
	}
	e, err := a.loader.Ref(s).Exports(ctx)
	if err != nil {
		return err
	}
	path := cmd.String("path")
	v, ok := e.Lookup(path)
	if !ok {
		return fmt.Errorf("exports: path %q not found in %s", path, s)
	}
	// the namespace is already JSON, so both modes print it as is
	_, err = fmt.Fprintln(a.out, string(v))
	return err
}

func (a *app) requests(ctx context.Context, cmd *cli.Command) error {
	s, err := argSpecifier(cmd)
	if err != nil {
		return err
	}
	xs, err := a.loader.Ref(s).Requests(ctx)
	if err != nil {
		return err
	}
	lines := make([]string, len(xs))
	for i, x := range xs {
		lines[i] = string(x)
	}
	return a.print(cmd, lines, lines...)
}

func (a *app) seed(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("seed: missing <manifest.yaml>")
	}
	res, err := a.applyManifest(ctx, path)
	if err != nil {
		return err
	}
	return a.print(cmd,
		map[string]int{"records": len(res.Registered), "aliases": res.Aliases, "bindings": res.Bindings},
		fmt.Sprintf("records=%d aliases=%d bindings=%d", len(res.Registered), res.Aliases, res.Bindings),
	)
}
