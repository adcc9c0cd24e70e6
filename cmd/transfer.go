package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/transfer"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "write types and optionally their objects to an export file",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, _ := cmd.Flags().GetStringSlice("types")
		withObjects, _ := cmd.Flags().GetBool("objects")
		out, _ := cmd.Flags().GetString("out")

		var w io.Writer = cmd.OutOrStdout()
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		bw := bufio.NewWriter(w)

		return run(cmd, database.ReadOnly, func(ctx context.Context, a *app) error {
			stream, err := a.node.ExportTypes(ctx, names, withObjects)
			if err != nil {
				return err
			}
			defer stream.Close()
			tw, err := transfer.NewWriter(bw)
			if err != nil {
				return err
			}
			types, objects, err := tw.CopyTypes(stream)
			if err != nil {
				return err
			}
			if err := tw.Close(); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
			a.logger.Info("Export finished", zap.Int64("types", types), zap.Int64("objects", objects))
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "create types and objects from an export file",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, _ := cmd.Flags().GetString("in")
		tp, _ := cmd.Flags().GetString("type-policy")
		op, _ := cmd.Flags().GetString("object-policy")
		typePolicy, ok := models.ParseTypePolicy(tp)
		if !ok {
			return fmt.Errorf("unknown type policy %q", tp)
		}
		objectPolicy, ok := models.ParseObjectPolicy(op)
		if !ok {
			return fmt.Errorf("unknown object policy %q", op)
		}

		var r io.Reader = cmd.InOrStdin()
		if in != "" && in != "-" {
			f, err := os.Open(in)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}
		tr, err := transfer.NewReader(bufio.NewReader(r))
		if err != nil {
			return err
		}

		return run(cmd, database.ReadWrite, func(ctx context.Context, a *app) error {
			result, err := a.node.ImportTypes(ctx, tr, typePolicy, objectPolicy)
			if err != nil {
				return err
			}
			a.logger.Info("Import finished",
				zap.Strings("created", result.CreatedTypes),
				zap.Strings("altered", result.AlteredTypes),
				zap.Strings("ignored", result.IgnoredTypes),
				zap.Int64("inserted", result.InsertedCount),
				zap.Int64("updated", result.UpdatedCount),
				zap.Int64("ignored_objects", result.IgnoredCount))
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringSlice("types", nil, "types to export; all types when empty")
	exportCmd.Flags().Bool("objects", false, "include the objects of every exported type")
	exportCmd.Flags().String("out", "-", "output file, - for stdout")
	rootCmd.AddCommand(exportCmd)

	importCmd.Flags().String("in", "-", "input file, - for stdin")
	importCmd.Flags().String("type-policy", "abort", "what to do with types that already exist: abort, ignore or alter")
	importCmd.Flags().String("object-policy", "abort", "what to do with objects that already exist: abort, ignore or update")
	rootCmd.AddCommand(importCmd)
}
