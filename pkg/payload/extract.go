package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/narration-engine/pkg/state"
)

// Separator is the strict marker the model is instructed to emit between
// the narrative and the JSON payload.
const Separator = "--- [JSON_DATA] ---"

// Method names the strategy that matched a response.
type Method string

const (
	MethodStrict Method = "strict"
	MethodLoose  Method = "loose"
	MethodFenced Method = "fenced"
	MethodNone   Method = "none"
)

var (
	// JSON_DATA with optional brackets and dashes, immediately followed by an opening brace.
	looseSeparator = regexp.MustCompile(`(?i)-*[ \t]*\[?[ \t]*JSON[_ ]?DATA[ \t]*\]?[ \t]*-*\s*\{`)
	fencedBlock    = regexp.MustCompile("(?s)```(?:json_data|JSON_DATA|json|JSON)[ \\t]*\\r?\\n?(.*?)```")
)

// ErrNoPayload is returned by ParsePayload for empty or null candidates.
var ErrNoPayload = errors.New("no payload")

// Extraction is the result of splitting one model response.
type Extraction struct {
	Narrative string
	Payload   *Payload
	Method    Method
	// ParseErr is set when a strategy matched but its payload did not parse.
	ParseErr error
}

// Extractor splits raw model output into narrative and payload.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor. A nil logger uses slog.Default.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract runs with the default logger.
func Extract(raw string) Extraction {
	return NewExtractor(nil).Extract(raw)
}

// Extract never fails. The first strategy whose marker is present decides
// the result; a payload that does not parse leaves Payload nil but keeps
// that strategy's narrative.
func (x *Extractor) Extract(raw string) Extraction {
	// 1. strict separator
	if idx := strings.Index(raw, Separator); idx >= 0 {
		res := Extraction{
			Narrative: strings.TrimSpace(raw[:idx]),
			Method:    MethodStrict,
		}
		res.Payload, res.ParseErr = x.parse(raw[idx+len(Separator):], MethodStrict)
		return res
	}

	// 2. loose separator followed by a brace
	if loc := looseSeparator.FindStringIndex(raw); loc != nil {
		res := Extraction{
			Narrative: strings.TrimSpace(raw[:loc[0]]),
			Method:    MethodLoose,
		}
		res.Payload, res.ParseErr = x.parse("{"+raw[loc[1]:], MethodLoose)
		return res
	}

	// 3. fenced data block
	if m := fencedBlock.FindStringSubmatchIndex(raw); m != nil {
		res := Extraction{Method: MethodFenced}
		res.Payload, res.ParseErr = x.parse(raw[m[2]:m[3]], MethodFenced)
		if res.Payload != nil {
			res.Narrative = strings.TrimSpace(raw[:m[0]] + raw[m[1]:])
		} else {
			res.Narrative = strings.TrimSpace(raw)
		}
		return res
	}

	// 4. no structured payload at all
	return Extraction{Narrative: strings.TrimSpace(raw), Method: MethodNone}
}

func (x *Extractor) parse(candidate string, method Method) (*Payload, error) {
	p, dropped, err := ParsePayload(candidate)
	if err != nil {
		x.logger.Warn("Failed to parse response payload",
			"method", method,
			"error", err,
			"candidate_length", len(candidate))
		return nil, err
	}
	if len(dropped) > 0 {
		x.logger.Warn("Dropped malformed payload keys",
			"method", method,
			"keys", dropped)
	}
	return p, nil
}

// ParsePayload decodes a JSON candidate on a best-effort basis. Stray code
// fences are stripped, and if the candidate is not valid JSON the slice
// between its first '{' and last '}' is tried. Keys are decoded one at a
// time: a key whose value has the wrong shape is dropped and reported,
// the rest of the payload survives.
func ParsePayload(candidate string) (*Payload, []string, error) {
	data := []byte(cleanCandidate(candidate))
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil, ErrNoPayload
	}

	var fields map[string]json.RawMessage
	err := json.Unmarshal(data, &fields)
	if err != nil {
		start := bytes.IndexByte(data, '{')
		end := bytes.LastIndexByte(data, '}')
		if start < 0 || end <= start {
			return nil, nil, fmt.Errorf("invalid payload json: %w", err)
		}
		if err2 := json.Unmarshal(data[start:end+1], &fields); err2 != nil {
			return nil, nil, fmt.Errorf("invalid payload json: %w", err)
		}
	}
	if fields == nil {
		return nil, nil, ErrNoPayload
	}

	p := &Payload{}
	var dropped []string
	decode := func(key string, dst any) bool {
		raw, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return false
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			dropped = append(dropped, key)
			return false
		}
		return true
	}

	decode("narrative", &p.Narrative)

	var su state.StatusUpdate
	if decode("status_update", &su) {
		p.StatusUpdate = &su
	}
	var cs state.CombatSnapshot
	if decode("combat_state", &cs) {
		p.CombatState = &cs
	}
	var ev GameEvent
	if decode("game_event", &ev) {
		p.GameEvent = &ev
	}
	var qa []string
	if decode("quick_actions", &qa) {
		p.QuickActions = qa
	}
	var sc SceneUpdate
	if decode("update_scene", &sc) {
		p.UpdateScene = &sc
	}
	var av AvatarUpdate
	if decode("update_avatar", &av) {
		p.UpdateAvatar = &av
	}
	var dir Directive
	if decode("interface", &dir) {
		p.Interface = &dir
	}

	sort.Strings(dropped)
	return p, dropped, nil
}

func cleanCandidate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
