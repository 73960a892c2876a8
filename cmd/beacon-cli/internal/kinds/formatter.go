package kinds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dwhitmore/beacon/message"
)

// KindDisplay represents a message kind for display purposes
type KindDisplay struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Fields      []string `json:"fields,omitempty"`
}

func toDisplay(k message.Kind) KindDisplay {
	typeName := ""
	if k.Type != nil {
		typeName = k.Type.String()
	}
	return KindDisplay{
		Name:        k.Name,
		Category:    k.Category.String(),
		Type:        typeName,
		Description: k.Description,
		Fields:      k.Fields,
	}
}

// DisplayKindsTable displays kinds in a formatted table
func DisplayKindsTable(kinds []message.Kind) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tCATEGORY\tTYPE\tDESCRIPTION")
	fmt.Fprintln(w, "----\t--------\t----\t-----------")

	if len(kinds) == 0 {
		fmt.Fprintln(w, "No kinds found")
		return
	}
	for _, k := range kinds {
		d := toDisplay(k)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.Name,
			d.Category,
			d.Type,
			truncateString(d.Description, 50))
	}
}

// DisplayKindsJSON displays kinds in JSON format
func DisplayKindsJSON(kinds []message.Kind) error {
	displays := make([]KindDisplay, len(kinds))
	for i, k := range kinds {
		displays[i] = toDisplay(k)
	}

	output := struct {
		Kinds []KindDisplay `json:"kinds"`
		Count int           `json:"count"`
	}{
		Kinds: displays,
		Count: len(displays),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// DisplayKindDetails displays detailed information for a specific kind
func DisplayKindDetails(k message.Kind, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(toDisplay(k))
	}

	d := toDisplay(k)
	fmt.Printf("Name:        %s\n", d.Name)
	fmt.Printf("Category:    %s\n", d.Category)
	fmt.Printf("Type:        %s\n", d.Type)
	fmt.Printf("Description: %s\n", d.Description)
	if len(d.Fields) > 0 {
		fmt.Printf("Fields:      %s\n", strings.Join(d.Fields, ", "))
	}
	return nil
}

// ParseCategory converts a flag value to a message category. The boolean
// reports whether the value named a valid category.
func ParseCategory(s string) (message.Category, bool) {
	switch strings.ToLower(s) {
	case "untargeted":
		return message.CategoryUntargeted, true
	case "targeted":
		return message.CategoryTargeted, true
	case "broadcast":
		return message.CategoryBroadcast, true
	default:
		return 0, false
	}
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
