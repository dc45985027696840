package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/jwebster45206/narration-engine/pkg/actor"
	"github.com/jwebster45206/narration-engine/pkg/mode"
	"github.com/jwebster45206/narration-engine/pkg/payload"
	"github.com/jwebster45206/narration-engine/pkg/state"
	"github.com/jwebster45206/narration-engine/pkg/textfilter"
)

func main() {
	rosterPath := flag.String("roster", "", "pregen roster to validate, or to resolve pregen_select against")
	rating := flag.String("rating", "PG13", "content rating applied to the narrative")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-roster pregens.json] [-rating PG13] [response.txt | -]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	roster, err := actor.LoadRoster(*rosterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	if flag.NArg() == 0 {
		if *rosterPath == "" {
			flag.Usage()
			os.Exit(1)
		}
		v := &ResponseValidator{}
		if err := v.validateRoster(roster); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Roster is valid! (%d pregens)\n", len(roster.All()))
		return
	}

	data, err := readInput(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	v := &ResponseValidator{roster: roster, filter: textfilter.NewContentFilter(*rating)}
	report, err := v.validateResponse(string(data))
	fmt.Print(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Response is valid!")
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", name, err)
	}
	return data, nil
}

var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ResponseValidator runs a raw narrator response through the same
// extraction, sanitizing and resolution steps a live turn uses.
type ResponseValidator struct {
	roster   *actor.Roster
	filter   *textfilter.ContentFilter
	errors   []string
	warnings []string
}

func (v *ResponseValidator) validateResponse(raw string) (string, error) {
	v.errors, v.warnings = nil, nil
	var b strings.Builder

	ex := payload.Extract(raw)
	narrative := textfilter.Sanitize(ex.Narrative)
	fmt.Fprintf(&b, "method:     %s\n", ex.Method)
	fmt.Fprintf(&b, "narrative:  %d chars\n", len([]rune(narrative)))

	if narrative == "" {
		v.errors = append(v.errors, "narrative is empty after sanitizing")
	}
	if v.filter != nil && v.filter.Contains(narrative) {
		v.warnings = append(v.warnings, "narrative contains words the content filter will replace")
	}
	if ex.ParseErr != nil {
		v.errors = append(v.errors, fmt.Sprintf("payload did not parse: %v", ex.ParseErr))
	}
	if ex.Method == payload.MethodNone {
		v.warnings = append(v.warnings, "no payload marker found")
	}
	if ex.Method != payload.MethodNone && ex.Method != payload.MethodStrict {
		v.warnings = append(v.warnings, fmt.Sprintf("payload matched the %s fallback, not the strict separator", ex.Method))
	}

	if p := ex.Payload; p != nil {
		v.validatePayload(&b, p)
	}

	for _, w := range v.warnings {
		fmt.Fprintf(&b, "warning:    %s\n", w)
	}
	if len(v.errors) > 0 {
		return b.String(), fmt.Errorf("validation errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return b.String(), nil
}

func (v *ResponseValidator) validatePayload(b *strings.Builder, p *payload.Payload) {
	status := state.Reconcile(state.DefaultStatus(), p.StatusUpdate, p.CombatState)
	fmt.Fprintf(b, "status:     %s hp %d/%d, %d items\n", status.Name, status.HP, status.MaxHP, len(status.Inventory))

	if p.GameEvent != nil {
		fmt.Fprintf(b, "event:      %s\n", p.GameEvent.Type)
	}
	if p.UpdateScene != nil && p.UpdateScene.Trigger && strings.TrimSpace(p.UpdateScene.VisualPrompt) == "" {
		v.warnings = append(v.warnings, "update_scene triggered without a visual_prompt")
	}
	if p.UpdateAvatar != nil && p.UpdateAvatar.Trigger && strings.TrimSpace(p.UpdateAvatar.VisualPrompt) == "" {
		v.warnings = append(v.warnings, "update_avatar triggered without a visual_prompt; no portrait will be generated")
	}

	if p.Interface == nil {
		v.warnings = append(v.warnings, "no interface directive, client falls back to free_text")
		return
	}
	if _, ok := mode.Parse(p.Interface.Mode); !ok {
		v.warnings = append(v.warnings, fmt.Sprintf("unknown interface mode %q", p.Interface.Mode))
	}

	res := mode.NewResolver(rosterOptions(v.roster)).ResolvePayload(p)
	fmt.Fprintf(b, "mode:       %s (free input %t, %d options)\n", res.Mode, res.AllowFreeInput, len(res.Options))
	if len(res.QuickActions) > 0 {
		fmt.Fprintf(b, "quick:      %s\n", strings.Join(res.QuickActions, " | "))
	}
	if len(p.QuickActions) > mode.MaxQuickActions {
		v.warnings = append(v.warnings, fmt.Sprintf("%d quick actions sent, only %d are shown", len(p.QuickActions), mode.MaxQuickActions))
	}
	if res.Form != nil {
		fmt.Fprintf(b, "form:       %d fields\n", len(res.Form.Fields))
	}
	if res.Err != nil {
		v.errors = append(v.errors, fmt.Sprintf("interface directive: %v", res.Err))
	}
}

func (v *ResponseValidator) validateRoster(r *actor.Roster) error {
	v.errors = nil
	for _, pc := range r.All() {
		v.validateIDFormat("pregen ID", pc.Spec.ID)
		if strings.TrimSpace(pc.Spec.Name) == "" {
			v.errors = append(v.errors, fmt.Sprintf("pregen %q has no name", pc.Spec.ID))
		}
		if pc.Spec.ID == mode.ManualValue {
			v.errors = append(v.errors, fmt.Sprintf("pregen ID %q is reserved for manual creation", pc.Spec.ID))
		}
	}
	if len(v.errors) > 0 {
		return fmt.Errorf("roster errors:\n%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *ResponseValidator) validateIDFormat(fieldType, id string) {
	if !idPattern.MatchString(id) {
		v.errors = append(v.errors, fmt.Sprintf("%s '%s' must be lowercase snake_case", fieldType, id))
	}
}

func rosterOptions(r *actor.Roster) []mode.Option {
	if r == nil {
		return nil
	}
	opts := make([]mode.Option, 0, len(r.All()))
	for _, pc := range r.All() {
		opts = append(opts, mode.Option{Label: pc.Spec.Name, Value: pc.Spec.ID, Description: pc.Headline()})
	}
	return opts
}
