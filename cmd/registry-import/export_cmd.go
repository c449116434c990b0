package main

import (
	"bytes"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

func newExportCmd(g *globalOptions) *cobra.Command {
	var kindFlag, output string
	var containerID int64

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored records as CSV in the import layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindFlag(kindFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := g.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			var buf bytes.Buffer
			if err := core.Export(ctx, s, kind, containerID, &buf); err != nil {
				return withCode(exitStore, err)
			}
			return writeOutput(cmd, output, buf.Bytes())
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", kindUsage())
	cmd.Flags().Int64Var(&containerID, "container-id", 0, "Only records of this file or folder")
	cmd.Flags().StringVar(&output, "output", "", "Output path (default: stdout)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	var kindFlag, format, output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty import template",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindFlag(kindFlag)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			switch strings.ToLower(format) {
			case "csv":
				err = core.WriteTemplateCSV(&buf, kind)
			case "xlsx":
				err = core.WriteTemplateXLSX(&buf, kind)
			default:
				return withCode(exitRequest, errors.Newf("unsupported format %q", format))
			}
			if err != nil {
				return withCode(exitRequest, err)
			}
			return writeOutput(cmd, output, buf.Bytes())
		},
	}
	cmd.Flags().StringVar(&kindFlag, "kind", "", kindUsage())
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&output, "output", "", "Output path (default: stdout)")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	w, closeFn, err := outputFile(cmd, path)
	if err != nil {
		return withCode(exitStore, errors.Wrap(err, "open output"))
	}
	if _, err := w.Write(data); err != nil {
		closeFn()
		return withCode(exitStore, errors.Wrap(err, "write output"))
	}
	return closeFn()
}
