package docai

import "testing"

func TestNewOpenAIProviderDefaults(t *testing.T) {
	p := NewOpenAIProvider("key", "", "")
	if p.model != "gpt-4o" {
		t.Errorf("default model = %q, want gpt-4o", p.model)
	}
	if p.Name() != "openai" {
		t.Errorf("Name() = %q, want openai", p.Name())
	}

	p = NewOpenAIProvider("key", "", "gpt-4o-mini")
	if p.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want configured override", p.model)
	}
}

func TestNewGeminiProviderDefaults(t *testing.T) {
	p := NewGeminiProvider("key", "")
	if p.model != "gemini-1.5-flash" {
		t.Errorf("default model = %q, want gemini-1.5-flash", p.model)
	}
	if p.Name() != "gemini" {
		t.Errorf("Name() = %q, want gemini", p.Name())
	}
}
