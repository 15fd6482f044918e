// Package roster formats the group's membership and archive listings for the
// CLI.
package roster

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dyluth/parliament/pkg/parliament"
)

const maxKeysWidth = 48

// Member is one durable observer registration.
type Member struct {
	Name string           `json:"name"`
	Keys []parliament.Key `json:"keys"`
}

// Members flattens the durable membership hash into name order.
func Members(m map[string][]parliament.Key) []Member {
	out := make([]Member, 0, len(m))
	for name, keys := range m {
		out = append(out, Member{Name: name, Keys: keys})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FormatMembers writes observers as a table with NAME, KEYS and SUBSCRIPTIONS
// columns. Returns the number of rows written.
func FormatMembers(w io.Writer, members []Member, group string) int {
	if len(members) == 0 {
		fmt.Fprintf(w, "No observers registered in group '%s'\n", group)
		return 0
	}

	fmt.Fprintf(w, "Observers in group '%s':\n\n", group)
	fmt.Fprintf(w, "%-36s %-5s %s\n", "NAME", "KEYS", "SUBSCRIPTIONS")
	fmt.Fprintf(w, "%-36s %-5s %s\n", strings.Repeat("-", 36), "-----", strings.Repeat("-", maxKeysWidth))

	for _, m := range members {
		fmt.Fprintf(w, "%-36s %-5d %s\n", m.Name, len(m.Keys), formatKeys(m.Keys))
	}

	fmt.Fprintf(w, "\n%d %s\n", len(members), plural(len(members), "observer", "observers"))
	return len(members)
}

// FormatArchives writes archive keys as a table grouped by class.
func FormatArchives(w io.Writer, keys []parliament.Key, peer string) int {
	if len(keys) == 0 {
		fmt.Fprintf(w, "No archives tracked by '%s'\n", peer)
		return 0
	}

	fmt.Fprintf(w, "Archives tracked by '%s':\n\n", peer)
	fmt.Fprintf(w, "%-16s %-12s %s\n", "CLASS", "ATTR", "VALUE")
	fmt.Fprintf(w, "%-16s %-12s %s\n", strings.Repeat("-", 16), strings.Repeat("-", 12), strings.Repeat("-", 24))

	for _, k := range keys {
		fmt.Fprintf(w, "%-16s %-12s %s\n", k.Class, k.Attr, k.Value)
	}

	fmt.Fprintf(w, "\n%d %s\n", len(keys), plural(len(keys), "archive", "archives"))
	return len(keys)
}

// FormatJSONL writes each item as one compact JSON object per line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// formatKeys joins keys with commas, truncated for table display.
func formatKeys(keys []parliament.Key) string {
	if len(keys) == 0 {
		return "-"
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String()
	}
	s := strings.Join(parts, ",")
	if len(s) > maxKeysWidth {
		return s[:maxKeysWidth-3] + "..."
	}
	return s
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
