package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"storedesk/services/console/internal/app"
)

func newStoresCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "List, create and delete document stores",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stores with their document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.app().RefreshStores(cmd.Context()); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDOCUMENTS")
			for _, s := range rt.app().Snapshot().Stores {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.Store.ID, s.Store.Name, countColumn(s))
			}
			return w.Flush()
		},
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.app().CreateStore(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created store %s\n", args[0])
			return nil
		},
	}

	var confirm string
	del := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an empty store; --confirm must repeat its display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm == "" {
				return errors.New("--confirm must repeat the store's display name")
			}
			if err := rt.app().RefreshStores(cmd.Context()); err != nil {
				return err
			}
			if err := rt.app().DeleteStore(cmd.Context(), args[0], confirm); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted store %s\n", args[0])
			return nil
		},
	}
	del.Flags().StringVar(&confirm, "confirm", "", "display name of the store, typed exactly")

	cmd.AddCommand(list, create, del)
	return cmd
}

func countColumn(s app.StoreSummary) string {
	if s.DocumentCount == nil {
		return "?"
	}
	return strconv.Itoa(*s.DocumentCount)
}

func newDocsCommand(rt *runtime) *cobra.Command {
	var storeID string
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List, upload and delete the documents of one store",
	}
	cmd.PersistentFlags().StringVar(&storeID, "store", "", "store id, e.g. fileSearchStores/abc")
	_ = cmd.MarkPersistentFlagRequired("store")

	// selectStore opens the store the way the UI does, loading its documents.
	selectStore := func(cmd *cobra.Command) error {
		if err := rt.app().RefreshStores(cmd.Context()); err != nil {
			return err
		}
		return rt.app().SelectStore(cmd.Context(), storeID)
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := selectStore(cmd); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE")
			for _, d := range rt.app().Snapshot().Documents {
				size := ""
				if d.Size != nil {
					size = strconv.FormatInt(*d.Size, 10)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, d.MimeType, size)
			}
			return w.Flush()
		},
	}

	upload := &cobra.Command{
		Use:   "upload [path]",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if err := selectStore(cmd); err != nil {
				return err
			}
			name := filepath.Base(args[0])
			if err := rt.app().UploadDocument(cmd.Context(), name, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d documents in store)\n", name, len(rt.app().Snapshot().Documents))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete [document-id]",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := selectStore(cmd); err != nil {
				return err
			}
			if err := rt.app().DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, upload, del)
	return cmd
}
