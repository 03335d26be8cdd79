package config

import (
	"fmt"
	"sort"
	"strings"
)

// Variant is one deployment of the copilot webhook. The backends behind
// each variant disagree on the reply field, so they are kept apart rather
// than merged into a single lookup.
type Variant struct {
	Name        string
	WebhookURL  string
	ReplyFields []string
}

const DefaultVariant = "production"

var Variants = map[string]Variant{
	"production": {
		Name:        "production",
		WebhookURL:  "https://n8n.gocashly.io/webhook/cashly-copilot",
		ReplyFields: []string{"response"},
	},
	"legacy": {
		Name:        "legacy",
		WebhookURL:  "https://n8n.gocashly.io/webhook/cashly-copilot",
		ReplyFields: []string{"Output"},
	},
	"test": {
		Name:        "test",
		WebhookURL:  "https://n8n.gocashly.io/webhook-test/cashly-copilot",
		ReplyFields: []string{"response"},
	},
}

func LookupVariant(name string) (Variant, error) {
	if name == "" {
		name = DefaultVariant
	}
	v, ok := Variants[strings.ToLower(name)]
	if !ok {
		return Variant{}, fmt.Errorf("unknown webhook variant %q (known: %s)", name, strings.Join(VariantNames(), ", "))
	}
	return v, nil
}

func VariantNames() []string {
	names := make([]string, 0, len(Variants))
	for n := range Variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
