package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nimburion/providerdesk/pkg/collection"
	"github.com/nimburion/providerdesk/pkg/dashboard"
	"github.com/nimburion/providerdesk/pkg/i18n"
	"github.com/nimburion/providerdesk/pkg/mutation"
)

type starter func(cmd *cobra.Command) (*app, error)

// userError carries a localized message while keeping the cause for
// errors.Is and errors.As.
type userError struct {
	msg   string
	cause error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.cause }

func newListCommand(start starter) *cobra.Command {
	var (
		search   string
		filters  []string
		sortSpec string
		page     int
		pageSize int
		output   string
		images   bool
		check    bool
	)
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List one page of an entity collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := dashboard.Lookup(args[0])
			if err != nil {
				return err
			}
			parsed, err := parsePairs(filters, "--filter")
			if err != nil {
				return err
			}
			f := collection.Filters(parsed)
			if search != "" {
				f["search"] = search
			}

			a, err := start(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if pageSize <= 0 {
				pageSize = a.cfg.View.PageSize
			}
			rows, err := entry.LoadRows(cmd.Context(), a.queries, a.client, dashboard.ListRequest{
				Filters:  f,
				Sort:     collection.ParseSort(sortSpec),
				Page:     page,
				PageSize: pageSize,
			})
			notice := rows.Notice(entry.Name()).Localize(a.tr)
			if err != nil {
				return &userError{msg: notice, cause: err}
			}
			if output == "json" {
				return writeJSON(a, rows)
			}
			failures := collection.NewImageFailures(a.images)
			if check {
				checkImages(cmd.Context(), a, entry, rows, failures)
			}
			return writeTable(a, entry, rows, images || check, failures, notice)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive text search")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "filter as name=value, repeatable")
	cmd.Flags().StringVar(&sortSpec, "sort", "", "sort as key:asc or key:desc")
	cmd.Flags().IntVar(&page, "page", 1, "page number, 1-based")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "rows per page (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table or json")
	cmd.Flags().BoolVar(&images, "images", false, "include the resolved image url")
	cmd.Flags().BoolVar(&check, "check-images", false, "request each image and show a placeholder for those that keep failing")
	return cmd
}

func writeJSON(a *app, rows dashboard.Rows) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"data":   rows.Records,
		"window": rows.Window,
		"stale":  rows.Stale,
	})
}

// columns picks the label fields shown in the table.
var columns = []string{"name", "title", "reference", "guest_name", "status"}

// checkImages loads every row image with HEAD requests, retrying a failing
// image until failures falls back to the placeholder for it.
func checkImages(ctx context.Context, a *app, entry dashboard.Entry, rows dashboard.Rows, failures *collection.ImageFailures) {
	for i, rec := range rows.Records {
		id := rows.IDs[i]
		for !failures.ShouldFallback(id) {
			u := entry.RowImage(rec, a.media, failures)
			if !absoluteURL(u) {
				break
			}
			err := a.client.CheckImage(ctx, u)
			if err == nil || ctx.Err() != nil {
				break
			}
			n := failures.MarkFailed(id)
			a.log.Debug("image load failed", "entity", entry.Name(), "id", id, "failures", n, "error", err)
		}
	}
}

func absoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

func writeTable(a *app, entry dashboard.Entry, rows dashboard.Rows, images bool, failures *collection.ImageFailures, notice string) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	header := []string{"ID", "LABEL", "CREATED"}
	if images {
		header = append(header, "IMAGE")
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for i, rec := range rows.Records {
		fields, err := recordFields(rec)
		if err != nil {
			return err
		}
		line := []string{rows.IDs[i], label(fields), created(fields)}
		if images {
			line = append(line, entry.RowImage(rec, a.media, failures))
		}
		fmt.Fprintln(w, strings.Join(line, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if rows.Window.TotalPages > 1 {
		fmt.Fprintf(a.out, "page %d/%d\n", rows.Window.PageIndex, rows.Window.TotalPages)
	}
	fmt.Fprintln(a.out, notice)
	return nil
}

func recordFields(rec any) (map[string]any, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	return fields, json.Unmarshal(raw, &fields)
}

func label(fields map[string]any) string {
	for _, c := range columns {
		if v, ok := fields[c].(string); ok && v != "" {
			return v
		}
	}
	return "-"
}

func created(fields map[string]any) string {
	raw, _ := fields["created_at"].(string)
	if raw == "" {
		return "-"
	}
	ts, err := dashboard.ParseTimestamp(raw)
	if err != nil {
		return raw
	}
	return ts.String()
}

// mutationFlags are shared by create and update.
type mutationFlags struct {
	fields  []string
	files   []string
	removes []string
}

func (m *mutationFlags) register(cmd *cobra.Command, withRemove bool) {
	cmd.Flags().StringArrayVarP(&m.fields, "field", "f", nil, "form field as name=value, repeatable")
	cmd.Flags().StringArrayVar(&m.files, "file", nil, "attachment as name=path, repeatable")
	if withRemove {
		cmd.Flags().StringArrayVar(&m.removes, "remove", nil, "attachment field to clear, repeatable")
	}
}

func (m *mutationFlags) request(entry dashboard.Entry) (mutation.Request, error) {
	raw, err := parsePairs(m.fields, "--field")
	if err != nil {
		return mutation.Request{}, err
	}
	fields, err := dashboard.CoerceFields(entry.FormSchema(), raw)
	if err != nil {
		return mutation.Request{}, err
	}
	files, err := parsePairs(m.files, "--file")
	if err != nil {
		return mutation.Request{}, err
	}

	var attachments []mutation.Attachment
	for _, name := range sortedKeys(files) {
		f, err := readAttachment(files[name])
		if err != nil {
			return mutation.Request{}, err
		}
		attachments = append(attachments, mutation.Replace(name, f))
	}
	for _, name := range m.removes {
		if _, replaced := files[name]; replaced {
			return mutation.Request{}, fmt.Errorf("attachment %q is both replaced and removed", name)
		}
		attachments = append(attachments, mutation.Remove(name))
	}
	return entry.NewRequest(fields, attachments), nil
}

func readAttachment(path string) (mutation.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mutation.File{}, fmt.Errorf("read attachment: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	return mutation.File{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

func newCreateCommand(start starter) *cobra.Command {
	var flags mutationFlags
	cmd := &cobra.Command{
		Use:   "create <entity>",
		Short: "Create a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := dashboard.Lookup(args[0])
			if err != nil {
				return err
			}
			req, err := flags.request(entry)
			if err != nil {
				return err
			}
			a, err := start(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.coord.SubmitCreate(cmd.Context(), req)
			return a.report(err, req.Entity, "")
		},
	}
	flags.register(cmd, false)
	return cmd
}

func newUpdateCommand(start starter) *cobra.Command {
	var flags mutationFlags
	cmd := &cobra.Command{
		Use:   "update <entity> <id>",
		Short: "Update a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := dashboard.Lookup(args[0])
			if err != nil {
				return err
			}
			req, err := flags.request(entry)
			if err != nil {
				return err
			}
			a, err := start(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			_, err = a.coord.SubmitUpdate(cmd.Context(), args[1], req)
			return a.report(err, req.Entity, args[1])
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newDeleteCommand(start starter) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete a record (requires --yes)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := dashboard.Lookup(args[0])
			if err != nil {
				return err
			}
			a, err := start(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			req := entry.NewRequest(nil, nil)
			req.Confirmed = yes
			_, err = a.coord.SubmitDelete(cmd.Context(), args[1], req)
			return a.report(err, req.Entity, args[1])
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

// report localizes a mutation failure. Field errors are listed one per
// line on stderr.
func (a *app) report(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	var verr *mutation.ValidationError
	if errors.As(err, &verr) && !errors.Is(err, mutation.ErrConfirmationRequired) {
		for _, field := range verr.FieldNames() {
			msg := i18n.NewMessage(i18n.CodeFieldInvalid, i18n.Params{"field": field, "reason": verr.Fields[field]})
			fmt.Fprintln(a.errOut, "  "+msg.Localize(a.tr))
		}
	}
	return &userError{msg: mutation.ToAppError(err, entity, id).Localize(a.tr), cause: err}
}

func newEntitiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List the known entities with their filters and sort keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ENTITY\tFILTERS\tSORT KEYS")
			for _, name := range dashboard.Names() {
				entry, err := dashboard.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name,
					strings.Join(entry.FilterNames(), ","),
					strings.Join(entry.SortKeys(), ","))
			}
			return w.Flush()
		},
	}
}

func parsePairs(values []string, flag string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%s expects name=value, got %q", flag, v)
		}
		out[name] = value
	}
	return out, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
