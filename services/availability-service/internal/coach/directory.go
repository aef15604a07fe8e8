package coach

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/md-rashed-zaman/clubcal/libs/config"
)

// Identity ties a display alias to the email used on calendar events.
type Identity struct {
	Email        string
	Alias        string
	FallbackText string
}

// Directory maps coach aliases to emails. It is built once and never mutated.
type Directory struct {
	byAlias map[string]string
	byFold  map[string]string
}

// ParseDirectory accepts either a JSON object ({"Enzo":"enzo@club.mx"}) or
// comma separated Alias=email pairs. An empty string yields an empty directory.
func ParseDirectory(raw string) (*Directory, error) {
	d := &Directory{byAlias: map[string]string{}, byFold: map[string]string{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return d, nil
	}

	if strings.HasPrefix(raw, "{") {
		var m map[string]string
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("parse coach map json: %w", err)
		}
		for alias, email := range m {
			d.add(alias, email)
		}
		return d, nil
	}

	for _, pair := range config.List(raw) {
		alias, email, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("coach map entry %q must be Alias=email", pair)
		}
		d.add(alias, email)
	}
	return d, nil
}

func (d *Directory) add(alias, email string) {
	alias, email = strings.TrimSpace(alias), strings.TrimSpace(email)
	if alias == "" || email == "" {
		return
	}
	d.byAlias[alias] = email
	d.byFold[strings.ToLower(alias)] = email
}

// Resolve looks up alias exactly, then case-insensitively. The alias itself
// becomes the fallback text matched against event summaries.
func (d *Directory) Resolve(alias string) (Identity, bool) {
	alias = strings.TrimSpace(alias)
	if d == nil || alias == "" {
		return Identity{}, false
	}
	email, ok := d.byAlias[alias]
	if !ok {
		email, ok = d.byFold[strings.ToLower(alias)]
	}
	if !ok {
		return Identity{}, false
	}
	return Identity{Email: email, Alias: alias, FallbackText: alias}, true
}

func (d *Directory) Aliases() []string {
	out := make([]string, 0, len(d.byAlias))
	for a := range d.byAlias {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// IsPersonal reports whether calendarID is the coach's own calendar.
func IsPersonal(calendarID string, id Identity) bool {
	return id.Email != "" && strings.EqualFold(strings.TrimSpace(calendarID), id.Email)
}
