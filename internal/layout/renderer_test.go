package layout

import "testing"

func TestTemplateRendererSubstitutesKnownTokens(t *testing.T) {
	r := TemplateRenderer{}
	ctx := Context{Title: "My Video", UploaderName: "Someone", SeasonNumber: 2, EpisodeNumber: 5}

	got, err := r.Render("{{uploader}}/{{title}} S{{season}}E{{episode}}", ctx)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "Someone/My Video S2E5"
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
}

func TestTemplateRendererUnknownTokenIsEmpty(t *testing.T) {
	r := TemplateRenderer{}
	got, err := r.Render("{{nope}}x", Context{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "x" {
		t.Fatalf("Render() = %q, want %q", got, "x")
	}
}

func TestTemplateRendererNoPlaceholders(t *testing.T) {
	r := TemplateRenderer{}
	got, err := r.Render("plain", Context{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "plain" {
		t.Fatalf("Render() = %q, want %q", got, "plain")
	}
}
