package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jun/gophnote/internal/app"
	"github.com/jun/gophnote/internal/credential"
	"github.com/jun/gophnote/internal/enml"
	"github.com/jun/gophnote/internal/model"
	"github.com/jun/gophnote/internal/notes"
	"github.com/jun/gophnote/internal/store"
)

type appFunc func() *app.App

func wait[R any](ctx context.Context, start func(store.Callback[R])) (R, error) {
	cb, c := store.Blocking[R]()
	start(cb)
	return store.Await(ctx, c)
}

func loginCmd(env appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := env().Session
			if s.IsAuthenticated() {
				fmt.Fprintf(cmd.OutOrStdout(), "Already signed in as %s\n", s.UserDisplayName())
				return nil
			}
			_, err := wait(cmd.Context(), func(cb store.Callback[*credential.Credential]) {
				s.Authenticate(cmd.Context(), cb)
			})
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", s.UserDisplayName())
			if s.IsBusinessUser() {
				fmt.Fprintf(cmd.OutOrStdout(), "Business: %s\n", s.BusinessDisplayName())
			}
			return nil
		},
	}
}

func logoutCmd(env appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env().Session.Unauthenticate()
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func notebooksCmd(env appFunc) *cobra.Command {
	var writable bool
	cmd := &cobra.Command{
		Use:   "notebooks",
		Short: "List notebooks across personal, shared and business stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := env().Notes
			list := svc.ListNotebooks
			if writable {
				list = svc.ListWritableNotebooks
			}
			nbs, err := wait(cmd.Context(), func(cb store.Callback[[]*model.Notebook]) {
				list(cmd.Context(), cb)
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tOWNER\tTYPE\tWRITABLE")
			for _, nb := range nbs {
				name := nb.Name
				if nb.IsDefault {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", name, nb.OwnerDisplayName, nb.NoteType(), nb.AllowsWriting)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&writable, "writable", "w", false, "only notebooks that allow creating notes")
	return cmd
}

func uploadCmd(env appFunc) *cobra.Command {
	var (
		title    string
		tags     []string
		notebook string
		attach   []string
		replace  string
		policy   string
	)
	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a text, Markdown or HTML file as a note",
		Long: `Upload a note. The file extension selects the conversion:
.md and .markdown are rendered as Markdown, .html and .htm are cleaned into
note markup and anything else is treated as plain text.

Examples:
  gophnote upload todo.md --tag work
  gophnote upload report.txt --notebook Reports --attach chart.png
  gophnote upload todo.md --replace <ref> --policy replace-or-create`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := env()
			content, err := readContent(args[0])
			if err != nil {
				return err
			}
			note := &model.Note{Title: title, TagNames: tags}
			if note.Title == "" {
				note.Title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			for _, path := range attach {
				res, err := readResource(path)
				if err != nil {
					return err
				}
				note.Resources = append(note.Resources, res)
			}
			if note.Content, err = enml.AppendMedia(content, note.Resources...); err != nil {
				return err
			}

			p, err := parsePolicy(policy)
			if err != nil {
				return err
			}
			var target *model.NoteRef
			if replace != "" {
				if target, err = decodeRef(replace); err != nil {
					return err
				}
			}
			var nb *model.Notebook
			if notebook != "" {
				if nb, err = findNotebook(cmd.Context(), a.Notes, notebook); err != nil {
					return err
				}
			}

			ref, err := wait(cmd.Context(), func(cb store.Callback[*model.NoteRef]) {
				a.Notes.UploadNote(cmd.Context(), note, p, nb, target, cb)
			})
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}
			out, err := encodeRef(ref)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "note title (defaults to the file name)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag names")
	cmd.Flags().StringVarP(&notebook, "notebook", "n", "", "notebook name (defaults to the default notebook)")
	cmd.Flags().StringSliceVarP(&attach, "attach", "a", nil, "files to attach")
	cmd.Flags().StringVar(&replace, "replace", "", "reference of the note to replace")
	cmd.Flags().StringVar(&policy, "policy", "create", "create, replace or replace-or-create")
	return cmd
}

func findCmd(env appFunc) *cobra.Command {
	var (
		notebook string
		scope    []string
		order    string
		reverse  bool
		limit    int
		mine     bool
	)
	cmd := &cobra.Command{
		Use:   "find [query]",
		Short: "Search notes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := env()
			search := notes.NewSearch(strings.Join(args, " "))
			if mine {
				search = a.Notes.CreatedByThisApplication()
				if len(args) > 0 {
					search.Query += " " + args[0]
				}
			}
			sc, err := parseScope(scope)
			if err != nil {
				return err
			}
			so, err := parseOrder(order, reverse)
			if err != nil {
				return err
			}
			var nb *model.Notebook
			if notebook != "" {
				if nb, err = findNotebook(cmd.Context(), a.Notes, notebook); err != nil {
					return err
				}
			}

			results, err := wait(cmd.Context(), func(cb store.Callback[[]*model.FindNotesResult]) {
				a.Notes.FindNotes(cmd.Context(), search, nb, sc, so, limit, cb)
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TITLE\tNOTEBOOK\tUPDATED\tREF")
			for _, r := range results {
				ref, err := encodeRef(r.NoteRef)
				if err != nil {
					return err
				}
				nbName := ""
				if r.Notebook != nil {
					nbName = r.Notebook.Name
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Title, nbName, r.Updated.Format("2006-01-02 15:04"), ref)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&notebook, "notebook", "n", "", "search a single notebook")
	cmd.Flags().StringSliceVarP(&scope, "scope", "s", []string{"personal"}, "personal, linked, business, app or all")
	cmd.Flags().StringVarP(&order, "sort", "o", "title", "title, created, updated or relevance")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "reverse the sort order")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum results, 0 for all")
	cmd.Flags().BoolVar(&mine, "mine", false, "only notes created by this application")
	return cmd
}

func downloadCmd(env appFunc) *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "download [ref]",
		Short: "Print a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := decodeRef(args[0])
			if err != nil {
				return err
			}
			note, err := wait(cmd.Context(), func(cb store.Callback[*model.Note]) {
				env().Notes.DownloadNote(cmd.Context(), ref, cb)
			})
			if err != nil {
				return err
			}
			out := note.Content
			if asHTML {
				if out, err = enml.ToHTML(note.Content, note.Resources); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", note.Title)
			if len(note.TagNames) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "tags: %s\n", strings.Join(note.TagNames, ", "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "render the note as HTML")
	return cmd
}

func shareCmd(env appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "share [ref]",
		Short: "Share a note and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := decodeRef(args[0])
			if err != nil {
				return err
			}
			url, err := wait(cmd.Context(), func(cb store.Callback[string]) {
				env().Notes.ShareNote(cmd.Context(), ref, cb)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

func deleteCmd(env appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [ref]",
		Short: "Move a note to the trash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := decodeRef(args[0])
			if err != nil {
				return err
			}
			done := make(chan error, 1)
			env().Notes.DeleteNote(cmd.Context(), ref, func(err error) { done <- err })
			select {
			case err = <-done:
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
			return err
		},
	}
}

func findNotebook(ctx context.Context, svc *notes.Service, name string) (*model.Notebook, error) {
	nbs, err := wait(ctx, func(cb store.Callback[[]*model.Notebook]) {
		svc.ListNotebooks(ctx, cb)
	})
	if err != nil {
		return nil, err
	}
	for _, nb := range nbs {
		if strings.EqualFold(nb.Name, name) {
			return nb, nil
		}
	}
	return nil, fmt.Errorf("notebook %q not found", name)
}

func readContent(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return enml.FromMarkdown(b)
	case ".html", ".htm":
		return enml.FromHTML(string(b))
	}
	return enml.FromPlainText(string(b)), nil
}

func readResource(path string) (*model.Resource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return model.NewResource(b, mimeType, filepath.Base(path)), nil
}

func encodeRef(ref *model.NoteRef) (string, error) {
	b, err := ref.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decodeRef(s string) (*model.NoteRef, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad note reference: %w", err)
	}
	return model.NoteRefFromBytes(b)
}

func parsePolicy(s string) (notes.UploadPolicy, error) {
	switch s {
	case "create", "":
		return notes.Create, nil
	case "replace":
		return notes.Replace, nil
	case "replace-or-create":
		return notes.ReplaceOrCreate, nil
	}
	return 0, fmt.Errorf("unknown policy %q", s)
}

func parseScope(names []string) (notes.Scope, error) {
	var sc notes.Scope
	for _, n := range names {
		switch n {
		case "personal":
			sc |= notes.ScopePersonal
		case "linked":
			sc |= notes.ScopePersonalLinked
		case "business":
			sc |= notes.ScopeBusiness
		case "app":
			sc |= notes.ScopeAppNotebook
		case "all":
			sc |= notes.ScopeAll
		default:
			return 0, fmt.Errorf("unknown scope %q", n)
		}
	}
	if sc == 0 {
		sc = notes.ScopeDefault
	}
	return sc, nil
}

func parseOrder(s string, reverse bool) (notes.SortOrder, error) {
	var o notes.SortOrder
	switch s {
	case "title", "":
		o = notes.SortTitle
	case "created":
		o = notes.SortRecentlyCreated
	case "updated":
		o = notes.SortRecentlyUpdated
	case "relevance":
		o = notes.SortRelevance
	default:
		return 0, fmt.Errorf("unknown sort order %q", s)
	}
	if reverse {
		o |= notes.SortReverse
	}
	return o, nil
}
