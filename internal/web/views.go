package web

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/entityregistry/internal/core"
)

// ErrorAlert is the HTMX fragment for a failed request.
func ErrorAlert(e ErrorResponse) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(e.Error))
		if e.Action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(e.Action))
		}
		fmt.Fprintf(&b, `<span class="alert-code">%s</span></div>`, templ.EscapeString(e.Code))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ImportSummary is the HTMX fragment shown after an import. A dry run with
// unknown identifiers lists them so the caller can pick a policy for each.
func ImportSummary(kind core.RecordKind, dryRun bool, res *core.ImportResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		mode := "Committed"
		if dryRun {
			mode = "Dry run"
		}

		var b strings.Builder
		fmt.Fprintf(&b, `<section class="import-summary" data-kind="%s">`, templ.EscapeString(string(kind)))
		fmt.Fprintf(&b, `<h3>%s: %s</h3>`, mode, templ.EscapeString(string(kind)))
		fmt.Fprintf(&b, `<ul class="counts"><li>ok: %d</li><li>errors: %d</li><li>skipped: %d</li></ul>`,
			res.OK, len(res.Errors), res.Skipped)

		if len(res.UnknownUIDs) > 0 {
			b.WriteString(`<div class="unknown-uids"><h4>Unknown entity identifiers</h4><ul>`)
			for _, uid := range res.UnknownUIDs {
				fmt.Fprintf(&b, `<li data-uid="%[1]s">%[1]s</li>`, templ.EscapeString(uid))
			}
			b.WriteString(`</ul></div>`)
		}

		if len(res.Errors) > 0 {
			b.WriteString(`<table class="row-errors"><thead><tr><th>Row</th><th>Error</th></tr></thead><tbody>`)
			for _, e := range res.Errors {
				fmt.Fprintf(&b, `<tr><td>%d</td><td>%s</td></tr>`, e.Row, templ.EscapeString(e.Error))
			}
			b.WriteString(`</tbody></table>`)
		}
		b.WriteString(`</section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
