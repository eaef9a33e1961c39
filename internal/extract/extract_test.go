package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DhavalSuthar-24/miow-context-master/internal/graph"
)

func symbolByName(t *testing.T, syms []graph.SymbolInput, name string) graph.SymbolInput {
	t.Helper()
	for _, s := range syms {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol %q not found in %v", name, syms)
	return graph.SymbolInput{}
}

func TestExtractTSXComponentsSchemasConstants(t *testing.T) {
	source := []byte(`import { z } from "zod";

export const MAX_RETRIES = 3;

export const loginSchema = z.object({
  email: z.string().email(),
  password: z.string().min(8),
});

export function LoginForm() {
  return <form>{MAX_RETRIES}</form>;
}

function validate(data: unknown) {
  return loginSchema.parse(data);
}

interface LoginProps {
  onSubmit: () => void;
}
`)

	res, err := NewExtractor().ExtractFile(context.Background(), "src/components/LoginForm.tsx", source)
	require.NoError(t, err)
	require.Equal(t, LangTSX, res.Language)

	require.Equal(t, graph.KindConstant, symbolByName(t, res.Symbols, "MAX_RETRIES").Kind)
	require.Equal(t, graph.KindSchema, symbolByName(t, res.Symbols, "loginSchema").Kind)
	require.Equal(t, graph.KindComponent, symbolByName(t, res.Symbols, "LoginForm").Kind)
	require.Equal(t, graph.KindFunction, symbolByName(t, res.Symbols, "validate").Kind)
	require.Equal(t, graph.KindType, symbolByName(t, res.Symbols, "LoginProps").Kind)

	// validate's body mentions loginSchema: expect a references edge.
	var found bool
	for _, e := range res.Edges {
		if e.FromName == "validate" && e.ToName == "loginSchema" && e.Kind == graph.EdgeReferences {
			found = true
		}
	}
	require.True(t, found, "expected validate -> loginSchema references edge, got %v", res.Edges)
}

func TestExtractArrowComponent(t *testing.T) {
	source := []byte(`export const Button = (props) => {
  return <button>{props.label}</button>;
};

const helper = () => 42;
`)
	res, err := NewExtractor().ExtractFile(context.Background(), "Button.jsx", source)
	require.NoError(t, err)

	require.Equal(t, graph.KindComponent, symbolByName(t, res.Symbols, "Button").Kind)
	require.Equal(t, graph.KindFunction, symbolByName(t, res.Symbols, "helper").Kind)
}

func TestExtractPython(t *testing.T) {
	source := []byte(`from pydantic import BaseModel

DEFAULT_LIMIT = 50

class UserModel(BaseModel):
    name: str

class Repository:
    pass

def fetch_users(limit=DEFAULT_LIMIT):
    return []
`)
	res, err := NewExtractor().ExtractFile(context.Background(), "users.py", source)
	require.NoError(t, err)

	require.Equal(t, graph.KindConstant, symbolByName(t, res.Symbols, "DEFAULT_LIMIT").Kind)
	require.Equal(t, graph.KindSchema, symbolByName(t, res.Symbols, "UserModel").Kind)
	require.Equal(t, graph.KindType, symbolByName(t, res.Symbols, "Repository").Kind)
	require.Equal(t, graph.KindFunction, symbolByName(t, res.Symbols, "fetch_users").Kind)
}

func TestExtractGo(t *testing.T) {
	source := []byte(`package session

const MaxIdle = 30

type Session struct {
	ID string
}

func New(id string) *Session {
	return &Session{ID: id}
}
`)
	res, err := NewExtractor().ExtractFile(context.Background(), "session.go", source)
	require.NoError(t, err)

	require.Equal(t, graph.KindConstant, symbolByName(t, res.Symbols, "MaxIdle").Kind)
	require.Equal(t, graph.KindType, symbolByName(t, res.Symbols, "Session").Kind)
	require.Equal(t, graph.KindFunction, symbolByName(t, res.Symbols, "New").Kind)
}

func TestExtractCSSDesignTokens(t *testing.T) {
	source := []byte(`:root {
  --color-primary: #1a73e8;
  --color-primary: #ffffff; /* duplicate, ignored */
  --spacing-md: 16px;
}
`)
	res, err := NewExtractor().ExtractFile(context.Background(), "theme.css", source)
	require.NoError(t, err)

	require.Len(t, res.Symbols, 2)
	primary := symbolByName(t, res.Symbols, "--color-primary")
	require.Equal(t, graph.KindDesignToken, primary.Kind)
	require.Equal(t, "--color-primary: #1a73e8;", primary.Preview)
	require.Equal(t, 2, primary.StartLine)
}

func TestExtractJSONSchema(t *testing.T) {
	schema := []byte(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "User",
  "type": "object"
}`)
	res, err := NewExtractor().ExtractFile(context.Background(), "user.schema.json", schema)
	require.NoError(t, err)
	require.Len(t, res.Symbols, 1)
	require.Equal(t, "User", res.Symbols[0].Name)
	require.Equal(t, graph.KindSchema, res.Symbols[0].Kind)

	// Plain manifests are not schemas.
	res, err = NewExtractor().ExtractFile(context.Background(), "package.json", []byte(`{"name": "app"}`))
	require.NoError(t, err)
	require.Empty(t, res.Symbols)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	res, err := NewExtractor().ExtractFile(context.Background(), "README.md", []byte("# hi"))
	require.NoError(t, err)
	require.Empty(t, res.Symbols)
	require.Equal(t, LangUnknown, res.Language)
}

func TestMentionsIdentifier(t *testing.T) {
	tests := []struct {
		body, name string
		want       bool
	}{
		{"return loginSchema.parse(x)", "loginSchema", true},
		{"const loginSchemaOld = 1", "loginSchema", false},
		{"nothing here", "loginSchema", false},
	}
	for _, tt := range tests {
		if got := mentionsIdentifier(tt.body, tt.name); got != tt.want {
			t.Errorf("mentionsIdentifier(%q, %q) = %v, want %v", tt.body, tt.name, got, tt.want)
		}
	}
}
