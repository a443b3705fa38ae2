package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlassist/pkg/metadata"
)

type catalogEntryJSON struct {
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Type        string `json:"type,omitempty"`
	Signature   string `json:"signature,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand() *cobra.Command {
	var columns bool

	cmd := &cobra.Command{
		Use:   "catalog [path]",
		Short: "Print the metadata catalog",
		Long: `Print the catalogs, schemas, tables and procedures of the configured
metadata catalog. An optional dotted path such as "shop.public" limits the
output to one container.`,
		Example: `  sqlassist catalog
  sqlassist catalog shop.public --columns`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := openProvider(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			exec := p.Exec()
			if exec == nil || exec.Root == nil {
				return metadata.ErrNotConnected
			}
			var start metadata.Container = exec.Root
			if len(args) == 1 {
				obj, err := metadata.Find(ctx, exec.Root, strings.Split(args[0], "."))
				if err != nil {
					return err
				}
				c, ok := obj.(metadata.Container)
				if !ok {
					return fmt.Errorf("%s is a %s, not a container", args[0], obj.Kind())
				}
				start = c
			}

			var entries []catalogEntryJSON
			add := func(obj metadata.Object) {
				entry := catalogEntryJSON{
					Path:        strings.Join(metadata.QualifiedName(obj), "."),
					Kind:        obj.Kind().String(),
					Description: obj.Description(),
				}
				switch o := obj.(type) {
				case metadata.Attribute:
					entry.Type = o.DataType().Name
				case metadata.Procedure:
					entry.Signature = o.Signature()
				}
				entries = append(entries, entry)
			}
			err = metadata.Walk(ctx, start, func(obj metadata.Object) error {
				add(obj)
				table, ok := obj.(metadata.Table)
				if !ok || !columns {
					return nil
				}
				attrs, err := table.Attributes(ctx)
				if err != nil {
					return fmt.Errorf("failed to list columns of %s: %w", obj.Name(), err)
				}
				for _, a := range attrs {
					add(a)
				}
				return nil
			})
			if err != nil && !errors.Is(err, metadata.ErrSkip) {
				return err
			}

			return printCatalog(newPrinter(cmd), len(metadata.QualifiedName(start)), entries)
		},
	}

	cmd.Flags().BoolVar(&columns, "columns", false, "include table columns")
	return cmd
}

func printCatalog(p *printer, base int, entries []catalogEntryJSON) error {
	if p.json {
		if entries == nil {
			entries = []catalogEntryJSON{}
		}
		return p.encode(entries)
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(p.w, p.styles.muted.Render("catalog is empty"))
		return nil
	}
	for _, e := range entries {
		parts := strings.Split(e.Path, ".")
		depth := max(len(parts)-base-1, 0)
		name := parts[len(parts)-1]

		line := strings.Repeat("  ", depth)
		switch e.Kind {
		case metadata.KindCatalog.String(), metadata.KindSchema.String():
			line += p.styles.heading.Render(name)
		default:
			line += name
		}
		detail := e.Kind
		switch {
		case e.Type != "":
			detail = e.Type
		case e.Signature != "":
			detail = e.Signature
		}
		line += " " + p.styles.muted.Render(detail)
		_, _ = fmt.Fprintln(p.w, line)
	}
	return nil
}
