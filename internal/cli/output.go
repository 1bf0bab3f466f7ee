package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/weiawesome/sync-party/internal/domain"
)

// printResult writes v as indented JSON or the text line.
func printResult(w io.Writer, opts *RootOptions, v any, text string) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func describeParty(p *domain.Party) string {
	state := "active"
	if !p.Active {
		state = "inactive"
	}
	return fmt.Sprintf("%s  %-24s  owner=%s  %s  members=%s",
		p.ID, p.Name, p.OwnerID, state, strings.Join(p.Members, ","))
}
