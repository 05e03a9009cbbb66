package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/models"
)

// Voice is a provider voice.
type Voice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Lister returns the voices available to an account.
type Lister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}

// KnownVoices are the voice names a conversation may select, with the
// provider ids used when the account does not list them.
var KnownVoices = map[string]string{
	"adam":    "pNInz6obpgDQGcFmaJgB",
	"antoni":  "ErXwobaYiN019PkySvjV",
	"jessica": "cgSgspJ2msm6clMCkdW9",
	"brian":   "nPczCjzI2devNBz1zQrb",
	"laura":   "FGY2WhTYpPnrIDTdsKH5",
}

// Aliases map generic selections to known voice names.
var Aliases = map[string]string{
	"male":   "adam",
	"female": "jessica",
}

// ListVoices fetches the account's voices.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch voices: status %d: %s", resp.StatusCode, truncate(body))
	}

	var payload struct {
		Voices []struct {
			VoiceID string `json:"voice_id"`
			Name    string `json:"name"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}

	voices := make([]Voice, 0, len(payload.Voices))
	for _, v := range payload.Voices {
		voices = append(voices, Voice{ID: v.VoiceID, Name: v.Name})
	}
	return voices, nil
}

// ValidateKey checks that the client's API key is accepted.
func (c *Client) ValidateKey(ctx context.Context) error {
	if c.apiKey == "" {
		return failure.New(failure.KindConfig, "validate key", "API key is required")
	}
	if _, err := c.ListVoices(ctx); err != nil {
		return failure.Wrap(failure.KindConfig, "validate key", err)
	}
	return nil
}

// Assignment maps each speaking role to a provider voice id.
type Assignment map[models.Role]string

// VoiceFor returns the voice id for role.
func (a Assignment) VoiceFor(role models.Role) (string, error) {
	id, ok := a[role]
	if !ok || id == "" {
		return "", failure.New(failure.KindConfig, "voice assignment", "no voice assigned to role %q", role)
	}
	return id, nil
}

// Catalog builds the name -> id table for an account: the known voices,
// overridden by account voices whose first name matches exactly.
func Catalog(voices []Voice) map[string]string {
	table := make(map[string]string, len(KnownVoices))
	for name, id := range KnownVoices {
		table[name] = id
	}
	for _, v := range voices {
		first := strings.ToLower(strings.Fields(v.Name + " ")[0])
		if _, known := KnownVoices[first]; known {
			table[first] = v.ID
		}
	}
	return table
}

// ResolveAssignment resolves the sender and receiver voices once for a
// composition. Each selection may be an alias, a known voice name or a raw
// voice id listed by the account. Any unresolved role is a configuration
// error.
func ResolveAssignment(ctx context.Context, lister Lister, settings models.VoiceSettings) (Assignment, error) {
	voices, err := lister.ListVoices(ctx)
	if err != nil {
		return nil, failure.Wrap(failure.KindConfig, "resolve voices", err)
	}

	table := Catalog(voices)
	ids := make(map[string]bool, len(voices))
	for _, v := range voices {
		ids[v.ID] = true
	}

	selections := map[models.Role]string{
		models.RoleSender:   settings.Sender,
		models.RoleReceiver: settings.Receiver,
	}

	assignment := make(Assignment, len(selections))
	var unresolved []string
	for role, selection := range selections {
		id, ok := lookup(table, ids, selection)
		if !ok {
			unresolved = append(unresolved, fmt.Sprintf("%s (%q)", role, selection))
			continue
		}
		assignment[role] = id
	}

	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return nil, failure.New(failure.KindConfig, "resolve voices",
			"could not resolve voices for %s; available: %s", strings.Join(unresolved, ", "), names(table))
	}
	return assignment, nil
}

func lookup(table map[string]string, ids map[string]bool, selection string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(selection))
	if key == "" {
		return "", false
	}
	if alias, ok := Aliases[key]; ok {
		key = alias
	}
	if id, ok := table[key]; ok {
		return id, true
	}
	raw := strings.TrimSpace(selection)
	if ids[raw] {
		return raw, true
	}
	return "", false
}

func names(table map[string]string) string {
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

// Directory answers voice queries made with a caller's own API key.
type Directory struct {
	Client *Client
}

func (d Directory) ListVoices(ctx context.Context, apiKey string) ([]Voice, error) {
	return d.Client.WithAPIKey(apiKey).ListVoices(ctx)
}

func (d Directory) ValidateKey(ctx context.Context, apiKey string) error {
	return d.Client.WithAPIKey(apiKey).ValidateKey(ctx)
}
