package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

type importOptions struct {
	kind      string
	input     string
	fileID    int64
	folderID  int64
	apply     bool
	policies  []string
	errorsOut string
}

// importSummary is the JSON line printed after an import.
type importSummary struct {
	Kind        core.RecordKind `json:"kind"`
	Mode        string          `json:"mode"`
	OK          int             `json:"ok"`
	Errors      int             `json:"errors"`
	Skipped     int             `json:"skipped"`
	UnknownUIDs []string        `json:"unknownUids"`
	RowErrors   []core.RowError `json:"rowErrors,omitempty"`
}

func newImportCmd(g *globalOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a CSV or XLSX file (dry run unless --apply)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", "", kindUsage())
	cmd.Flags().StringVar(&opts.input, "input", "", "CSV or XLSX file (required)")
	cmd.Flags().Int64Var(&opts.fileID, "file-id", 0, "Target entity or incident file")
	cmd.Flags().Int64Var(&opts.folderID, "folder-id", 0, "Target affiliation folder")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Write to the store (default is dry-run)")
	cmd.Flags().StringArrayVar(&opts.policies, "policy", nil, "Unknown identifier policy: uid=create[:type]|unknown|skip (repeatable)")
	cmd.Flags().StringVar(&opts.errorsOut, "errors-out", "", "Write the row,error report CSV to this path")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runImport(cmd *cobra.Command, g *globalOptions, opts importOptions) error {
	kind, err := parseKindFlag(opts.kind)
	if err != nil {
		return err
	}
	policies, err := parsePolicyFlags(opts.policies)
	if err != nil {
		return withCode(exitRequest, err)
	}
	data, err := os.ReadFile(opts.input)
	if err != nil {
		return withCode(exitRequest, errors.Wrap(err, "read input"))
	}

	req := core.ImportRequest{
		Kind:     kind,
		Data:     data,
		Format:   core.FormatCSV,
		FileID:   opts.fileID,
		FolderID: opts.folderID,
		DryRun:   !opts.apply,
	}
	if strings.EqualFold(filepath.Ext(opts.input), ".xlsx") {
		req.Format = core.FormatXLSX
	}
	if opts.apply {
		req.Policies = policies
	}

	ctx := cmd.Context()
	s, err := g.openStore(ctx, false)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx = core.ContextWithClient(ctx, core.ClientInfo{UserAgent: "registry-import"})
	res, err := core.NewImporter(s).Import(ctx, req)
	if res == nil {
		return classify(err)
	}
	stopped := err

	if opts.errorsOut != "" {
		if err := writeErrorsFile(opts.errorsOut, res); err != nil {
			return withCode(exitStore, err)
		}
	}

	mode := "dry_run"
	if opts.apply {
		mode = "commit"
	}
	summary := importSummary{
		Kind:        kind,
		Mode:        mode,
		OK:          res.OK,
		Errors:      len(res.Errors),
		Skipped:     res.Skipped,
		UnknownUIDs: res.UnknownUIDs,
	}
	if opts.errorsOut == "" {
		summary.RowErrors = res.Errors
	}
	if err := writeJSONLine(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	if stopped != nil {
		return classify(stopped)
	}

	if opts.apply && len(res.Errors) > 0 {
		return withCode(exitRowErrors, errors.Newf("%d rows failed; the rest were written", len(res.Errors)))
	}
	return nil
}

func writeErrorsFile(path string, res *core.ImportResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create errors file")
	}
	if err := core.WriteErrorsCSV(f, res); err != nil {
		f.Close()
		return errors.Wrap(err, "write errors file")
	}
	return f.Close()
}

// parsePolicyFlags reads uid=action[:entity_type] values.
func parsePolicyFlags(values []string) (map[string]core.Policy, error) {
	actions := make(map[string]core.UnknownAction, len(values))
	for _, v := range values {
		uid, spec, ok := strings.Cut(v, "=")
		uid = strings.TrimSpace(uid)
		if !ok || uid == "" {
			return nil, errors.Newf("invalid --policy %q: want uid=create[:type]|unknown|skip", v)
		}
		action, entityType, _ := strings.Cut(spec, ":")
		actions[uid] = core.UnknownAction{Action: action, EntityTypeCode: entityType}
	}
	return core.ParsePolicies(actions)
}
