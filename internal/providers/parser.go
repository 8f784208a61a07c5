package providers

import "strings"

// ProviderRef is one entry of a pipe separated provider list such as
// LIBRAG_LLM_PROVIDERS="openai:key1|mock". The part after ":" names the key
// alias the provider resolves its API key under.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList splits a configured provider list into refs, skipping
// blank entries. An empty list yields the mock provider so the service always
// starts with something that answers.
func ParseProviderList(raw string) []ProviderRef {
	out := make([]ProviderRef, 0, 2)
	for _, entry := range strings.Split(raw, "|") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ref := ProviderRef{Raw: entry, Name: entry}
		if name, alias, ok := strings.Cut(entry, ":"); ok {
			ref.Name = strings.TrimSpace(name)
			ref.KeyAlias = strings.TrimSpace(alias)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
