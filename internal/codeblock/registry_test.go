package codeblock

import "testing"

func TestParseJSONValid(t *testing.T) {
	v, err := ParseJSON(`{"cmd":"ls"}`, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected map[string]any, got %T", v)
	}
	if m["cmd"] != "ls" {
		t.Errorf("expected cmd=ls, got %v", m["cmd"])
	}
}

func TestParseJSONInvalidReturnsError(t *testing.T) {
	if _, err := ParseJSON(`{not json`, nil); err == nil {
		t.Fatal("expected an error for invalid json")
	}
}

func TestRegistryDefaultHasJSON(t *testing.T) {
	r := NewDefaultRegistry()
	if _, ok := r.Get("JSON"); !ok {
		t.Fatal("expected case-insensitive lookup of json parser")
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	calls := 0
	r.Register("lua", func(code string, ctx EvalContext) (any, error) {
		calls++
		return code, nil
	})
	r.Register("lua", func(code string, ctx EvalContext) (any, error) {
		calls += 10
		return code, nil
	})
	if _, err := r.Parse("LUA", "x", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 10 {
		t.Errorf("expected replacement parser to run, got calls=%d", calls)
	}
}

func TestRegistryParseMissingLanguage(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Parse("unknown", "x", nil); err == nil {
		t.Fatal("expected an error for unregistered language")
	}
}

const bashSchema = `{
	"type": "object",
	"required": ["cmd"],
	"properties": {
		"cmd": {"type": "string"}
	}
}`

func TestRegistrySchemaValidatesRegisteredTool(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterSchema("bash", bashSchema); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	schema, ok := r.Schema("bash")
	if !ok {
		t.Fatal("expected a schema to be registered for bash")
	}
	if err := schema.Validate(map[string]any{"cmd": "ls"}); err != nil {
		t.Errorf("expected valid input to pass, got %v", err)
	}
	if err := schema.Validate(map[string]any{}); err == nil {
		t.Error("expected missing required field to fail validation")
	}
}

func TestRegistrySchemaUnregisteredToolHasNoSchema(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Schema("unregistered"); ok {
		t.Fatal("expected no schema for an unregistered tool")
	}
}
