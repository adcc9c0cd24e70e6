package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "list the defined types",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, database.ReadOnly, func(ctx context.Context, a *app) error {
			names, err := a.node.GetTypeNames(ctx)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		})
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <type>...",
	Short: "print type definitions and their references as YAML",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, database.ReadOnly, func(ctx context.Context, a *app) error {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			for _, name := range args {
				t, err := a.node.GetType(ctx, name)
				if err != nil {
					return err
				}
				up, err := a.node.GetUpTypeReferences(ctx, name)
				if err != nil {
					return err
				}
				down, err := a.node.GetDownTypeReferences(ctx, name)
				if err != nil {
					return err
				}
				if err := enc.Encode(describe(t, up, down)); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

// describe renders a type as a YAML node so fields and indexes keep their order.
func describe(t *models.Type, up, down []models.TypeReference) *yaml.Node {
	doc := mapping()
	addScalar(doc, "name", t.Name)
	addScalar(doc, "create", t.Create.Format(time.RFC3339))
	addScalar(doc, "alter", t.Alter.Format(time.RFC3339))

	fields := mapping()
	for _, name := range t.FieldNames() {
		f, _ := t.Field(name)
		fields.Content = append(fields.Content, scalar(name), scalar(fieldSpec(f)))
	}
	doc.Content = append(doc.Content, scalar("fields"), fields)

	if names := t.IndexNames(); len(names) > 0 {
		indexes := mapping()
		for _, name := range names {
			idx, _ := t.Index(name)
			indexes.Content = append(indexes.Content, scalar(name),
				scalar(fmt.Sprintf("%s(%s)", idx.Mode, strings.Join(idx.Fields, ", "))))
		}
		doc.Content = append(doc.Content, scalar("indexes"), indexes)
	}
	if len(up) > 0 {
		refs := &yaml.Node{Kind: yaml.SequenceNode}
		for _, r := range up {
			refs.Content = append(refs.Content, scalar(r.ReferencingField+" -> "+r.ReferencedType))
		}
		doc.Content = append(doc.Content, scalar("references"), refs)
	}
	if len(down) > 0 {
		refs := &yaml.Node{Kind: yaml.SequenceNode}
		for _, r := range down {
			refs.Content = append(refs.Content, scalar(r.ReferencingType+"."+r.ReferencingField))
		}
		doc.Content = append(doc.Content, scalar("referenced_by"), refs)
	}
	return doc
}

func fieldSpec(f models.TypeField) string {
	var b strings.Builder
	b.WriteString(f.Type)
	switch {
	case f.Length != nil:
		fmt.Fprintf(&b, "(%d)", *f.Length)
	case f.Precision != nil && f.Scale != nil:
		fmt.Fprintf(&b, "(%d,%d)", *f.Precision, *f.Scale)
	case f.Precision != nil:
		fmt.Fprintf(&b, "(%d)", *f.Precision)
	}
	if f.NotNull {
		b.WriteString(" not null")
	}
	if f.Min != nil {
		fmt.Fprintf(&b, " min %s", *f.Min)
	}
	if f.Max != nil {
		fmt.Fprintf(&b, " max %s", *f.Max)
	}
	return b.String()
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func addScalar(n *yaml.Node, key, value string) {
	n.Content = append(n.Content, scalar(key), scalar(value))
}

func init() {
	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(describeCmd)
}
