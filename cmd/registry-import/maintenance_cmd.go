package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

func newMigrateCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.openStore(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer s.Close()
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"migrated": true})
		},
	}
}

func newSeedCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default dictionary codes; existing codes are kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := g.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SeedDictionaries(ctx, core.DefaultDictionaries()); err != nil {
				return withCode(exitStore, err)
			}
			counts := make(map[core.Dictionary]int, len(core.Dictionaries))
			for _, dict := range core.Dictionaries {
				entries, err := s.ListDictionary(ctx, dict)
				if err != nil {
					return withCode(exitStore, err)
				}
				counts[dict] = len(entries)
			}
			return writeJSONLine(cmd.OutOrStdout(), counts)
		},
	}
}

func newFolderCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage affiliation folders",
	}

	var name, network string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an affiliation folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := g.openStore(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.CreateFolder(ctx, name, network)
			if err != nil {
				return withCode(exitStore, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"folder_id": id})
		},
	}
	create.Flags().StringVar(&name, "name", "", "Folder name (required)")
	create.Flags().StringVar(&network, "network", "", "Network code of the folder")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

func newFileCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Manage entity and incident files",
	}

	var kindFlag, name, description, month string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an entity or incident file",
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

			var id int64
			switch kind {
			case core.KindEntities:
				id, err = s.CreateEntityFile(ctx, name, description)
			case core.KindIncidents:
				id, err = s.CreateIncidentFile(ctx, name, month)
			default:
				return withCode(exitRequest, core.ErrUnknownKind)
			}
			if err != nil {
				return withCode(exitStore, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]any{"file_id": id, "kind": kind})
		},
	}
	create.Flags().StringVar(&kindFlag, "kind", "", "entities or incidents (required)")
	create.Flags().StringVar(&name, "name", "", "File name (required)")
	create.Flags().StringVar(&description, "description", "", "Entity file description")
	create.Flags().StringVar(&month, "month", "", "Incident file month, YYYY-MM")
	_ = create.MarkFlagRequired("kind")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}
