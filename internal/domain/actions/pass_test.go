package actions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"actionlift.dev/pkg/actionlift/internal/adapter"
	"actionlift.dev/pkg/actionlift/internal/jsast"
)

const runtimeImport = `import { registerServerReference as $$register } from "@actionlift/runtime/server";`

func parse(t *testing.T, path, src string) *jsast.Tree {
	t.Helper()

	tree, err := adapter.NewLocalScriptAdapter().Parse(path, []byte(src))
	require.NoError(t, err)

	return tree
}

func transform(t *testing.T, path, src string) *Result {
	t.Helper()

	res, err := Transform(parse(t, path, src), Options{FileID: path})
	require.NoError(t, err)

	return res
}

func transformErr(t *testing.T, path, src string) *PassError {
	t.Helper()

	_, err := Transform(parse(t, path, src), Options{FileID: path})
	require.Error(t, err)

	pe, ok := AsPassError(err)
	require.True(t, ok, "expected *PassError, got %T", err)

	return pe
}

func TestTransform_ExportedAsyncFunction(t *testing.T) {
	src := "\"use server\";\nexport async function greet() {\n  return \"hi\";\n}\n"

	res := transform(t, "app/actions.js", src)

	want := runtimeImport + "\n" +
		"export var greet = $$register(async function greet() {\n  return \"hi\";\n}, \"app/actions.js\", \"greet\");\n"
	assert.Equal(t, want, res.Code)
	assert.Equal(t, ModuleServerFile, res.Mode)
	assert.Equal(t, Manifest{ID: "app/actions.js", Names: []string{"greet"}}, res.Manifest)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, ShapeFunctionDeclaration, res.Actions[0].Shape)
	assert.False(t, res.Actions[0].Hoisted)
}

func TestTransform_NestedArrowCapturesEnclosingLocal(t *testing.T) {
	src := `const y = 1;
function outer() {
  const x = 2;
  return async () => {
    "use server";
    return x + y;
  };
}
`

	res := transform(t, "app/outer.js", src)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, []string{"x"}, res.Actions[0].Captures)
	assert.True(t, res.Actions[0].Hoisted)
	assert.Equal(t, []string{"$$INLINE_ACTION"}, res.Manifest.Names)

	assert.Contains(t, res.Code, "var $$INLINE_ACTION = $$register(async ($$CLOSURE) => {\n"+
		"    let [x] = $$CLOSURE.value;\n"+
		"    return x + y;\n"+
		"  }, \"app/outer.js\", \"$$INLINE_ACTION\");\n")
	assert.Contains(t, res.Code, "  return $$INLINE_ACTION.bind(null, { get value() { return "+
		"Object.defineProperty(this, \"value\", { value: [x] }).value; } });\n")
	assert.Less(t, strings.Index(res.Code, "var $$INLINE_ACTION"), strings.Index(res.Code, "function outer"))
	assert.Greater(t, strings.Index(res.Code, "var $$INLINE_ACTION"), strings.Index(res.Code, "const y = 1;"))
	assert.True(t, strings.HasSuffix(res.Code, "}\nexport { $$INLINE_ACTION };\n"))
}

func TestTransform_AnonymousDefaultExport(t *testing.T) {
	src := "\"use server\";\n\nexport default async () => 1;\n"

	res := transform(t, "app/actions.js", src)

	want := runtimeImport + "\n" +
		"var $$INLINE_ACTION = $$register(async () => 1, \"app/actions.js\", \"$$INLINE_ACTION\");\n" +
		"export { $$INLINE_ACTION as default };\n"
	assert.Equal(t, want, res.Code)
	assert.Equal(t, []string{"$$INLINE_ACTION"}, res.Manifest.Names)
}

func TestTransform_NotAsync(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		col  int
	}{
		{"inline declaration", "function f() {\n  \"use server\";\n}\n", 1, 1},
		{"nested arrow", "function f() {\n  return () => {\n    \"use server\";\n  };\n}\n", 2, 10},
		{"server file export", "\"use server\";\nexport function save() {}\n", 2, 8},
		{"server file declarator", "\"use server\";\nexport const save = () => 1;\n", 2, 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := transformErr(t, "app/f.js", tt.src)

			assert.Equal(t, CodeNotAsync, pe.Code)
			assert.Equal(t, tt.line, pe.Pos.Line)
			assert.Equal(t, tt.col, pe.Pos.Column)
		})
	}
}

func TestTransform_SpecifierAliasRegistersOnce(t *testing.T) {
	src := "\"use server\";\nasync function foo() {}\nexport { foo, foo as bar };\n"

	res := transform(t, "app/actions.js", src)

	assert.Equal(t, 1, strings.Count(res.Code, "$$register("))
	assert.Contains(t, res.Code, "var foo = $$register(async function foo() {}, \"app/actions.js\", \"foo\");")
	assert.Contains(t, res.Code, "export { foo, foo as bar };")
	assert.Equal(t, []string{"foo"}, res.Manifest.Names)
}

func TestTransform_ExportForms(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		contains []string
		names    []string
	}{
		{
			name:     "const arrow",
			src:      "\"use server\";\nexport const save = async (x) => x;\n",
			contains: []string{`export var save = $$register(async (x) => x, "m.js", "save");`},
			names:    []string{"save"},
		},
		{
			name: "named default function",
			src:  "\"use server\";\nexport default async function save() {}\n",
			contains: []string{
				`var save = $$register(async function save() {}, "m.js", "save");` + "\nexport { save as default };",
			},
			names: []string{"save"},
		},
		{
			name: "default identifier",
			src:  "\"use server\";\nconst save = async () => {};\nexport default save;\n",
			contains: []string{
				`var save = $$register(async () => {}, "m.js", "save");`,
				"export { save as default };",
			},
			names: []string{"save"},
		},
		{
			name: "specifier as default",
			src:  "\"use server\";\nasync function save() {}\nexport { save as default };\n",
			contains: []string{
				`var save = $$register(async function save() {}, "m.js", "save");`,
				"export { save as default };",
			},
			names: []string{"save"},
		},
		{
			name: "imported binding",
			src:  "\"use server\";\nimport { save } from \"./db\";\nexport { save as persist };\n",
			contains: []string{
				"export { $$ACTION as persist };",
				`var $$ACTION = $$register(save, "m.js", "save");`,
			},
			names: []string{"save"},
		},
		{
			name: "renamed re-export",
			src:  "\"use server\";\nexport { a, b as c } from \"./other\";\n",
			contains: []string{
				`export { a } from "./other";`,
				`import { b as $$reexport } from "./other";`,
				`var $$ACTION = $$register($$reexport, "m.js", "c");`,
				"export { $$ACTION as c };",
			},
			names: []string{"c"},
		},
		{
			name:     "star re-export",
			src:      "\"use server\";\nexport * from \"./other\";\n",
			contains: []string{`export * from "./other";`},
			names:    []string{},
		},
		{
			name:     "type exports",
			src:      "\"use server\";\nexport type Input = { id: string };\nexport interface Output { ok: boolean }\n",
			contains: []string{"export type Input = { id: string };"},
			names:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "m.js"
			if strings.Contains(tt.src, "type ") {
				path = "m.ts"
			}

			res, err := Transform(parse(t, path, tt.src), Options{FileID: "m.js"})
			require.NoError(t, err)

			for _, c := range tt.contains {
				assert.Contains(t, res.Code, c)
			}

			assert.Equal(t, tt.names, res.Manifest.Names)
			assert.NotContains(t, res.Code, `"use server"`)
		})
	}
}

func TestTransform_ExportErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code Code
	}{
		{"namespace re-export", "\"use server\";\nexport * as ns from \"./other\";\n", CodeUnsupportedNamespaceReexport},
		{"default call", "\"use server\";\nexport default wrap(async () => {});\n", CodeUnsupportedDefaultExportShape},
		{"default object", "\"use server\";\nexport default { a: 1 };\n", CodeUnsupportedDefaultExportShape},
		{"class method", "class A {\n  async m() {\n    \"use server\";\n  }\n}\n", CodeUnsupportedClassMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := transformErr(t, "m.js", tt.src)
			assert.Equal(t, tt.code, pe.Code)
			assert.True(t, pe.Pos.IsValid())
		})
	}
}

func TestTransform_SkippedExportsWarn(t *testing.T) {
	src := "\"use server\";\nexport const { a } = obj;\nexport let b;\nexport class C {}\nexport async function ok() {}\n"

	res := transform(t, "m.js", src)

	assert.Equal(t, []string{"ok"}, res.Manifest.Names)
	require.Len(t, res.Diagnostics, 3)
	assert.Contains(t, res.Diagnostics[0].Message, "destructured export")
	assert.Contains(t, res.Diagnostics[1].Message, "uninitialized export b")
	assert.Contains(t, res.Diagnostics[2].Message, "exported class C")
	assert.Contains(t, res.Code, "export const { a } = obj;")
}

func TestTransform_ObjectMethod(t *testing.T) {
	src := `export function form(n) {
  return {
    async save(a) {
      "use server";
      return a + n;
    },
  };
}
`

	res := transform(t, "app/form.js", src)

	assert.Contains(t, res.Code, "var $$INLINE_ACTION = $$register(async function($$CLOSURE, a) {\n"+
		"      let [n] = $$CLOSURE.value;\n"+
		"      return a + n;\n"+
		"    }, \"app/form.js\", \"$$INLINE_ACTION\");\n")
	assert.Contains(t, res.Code, "    save: $$INLINE_ACTION.bind(null, { get value() {")
	require.Len(t, res.Actions, 1)
	assert.Equal(t, ShapeObjectMethod, res.Actions[0].Shape)
	assert.Equal(t, "save", res.Actions[0].LocalName)
}

func TestTransform_NestedDeclarationStaysHoistedInBlock(t *testing.T) {
	src := `export default function Page() {
  return save;

  async function save(data) {
    "use server";
    return data;
  }
}
`

	res := transform(t, "app/page.js", src)

	want := runtimeImport + `
var $$INLINE_ACTION = $$register(async function save(data) {
    return data;
  }, "app/page.js", "$$INLINE_ACTION");
export default function Page() {
  var save = $$INLINE_ACTION;
  return save;
}
export { $$INLINE_ACTION };
`
	assert.Equal(t, want, res.Code)
	assert.Empty(t, res.Actions[0].Captures)
}

func TestTransform_FallbackAfterLastImport(t *testing.T) {
	src := `import { app } from "./app";

app.handle(async (req) => {
  "use server";
  return req;
});
`

	res := transform(t, "app/routes.js", src)

	want := runtimeImport + `
import { app } from "./app";
var $$INLINE_ACTION = $$register(async (req) => {
  return req;
}, "app/routes.js", "$$INLINE_ACTION");

app.handle($$INLINE_ACTION);
export { $$INLINE_ACTION };
`
	assert.Equal(t, want, res.Code)
}

func TestTransform_ExpressionBodyWithCaptures(t *testing.T) {
	src := "function f(n) {\n  return g(async x => {\n    \"use server\";\n    return n * x;\n  }, async () => n);\n}\n"

	res := transform(t, "m.js", src)

	assert.Contains(t, res.Code, "async ($$CLOSURE, x) => {\n    let [n] = $$CLOSURE.value;\n    return n * x;\n  }")
	assert.NotContains(t, res.Code, "async () => { const")

	src = "function f(n) {\n  const h = async () => { \"use server\"; return n; };\n  return h;\n}\n"
	res = transform(t, "m.js", src)
	assert.Contains(t, res.Code, "async ($$CLOSURE) => { let [n] = $$CLOSURE.value; return n; }")
	assert.Contains(t, res.Code, "const h = $$INLINE_ACTION.bind(null, ")
	assert.Equal(t, "h", res.Actions[0].LocalName)
}

func TestTransform_NestedActions(t *testing.T) {
	src := `export function outer(x) {
  return async () => {
    "use server";
    const y = 1;
    return async () => {
      "use server";
      return x + y;
    };
  };
}
`

	res := transform(t, "m.js", src)

	require.Len(t, res.Actions, 2)
	assert.Equal(t, "$$INLINE_ACTION", res.Actions[0].Name)
	assert.Equal(t, []string{"x"}, res.Actions[0].Captures)
	assert.Equal(t, "$$INLINE_ACTION1", res.Actions[1].Name)
	assert.Equal(t, []string{"x", "y"}, res.Actions[1].Captures)
	assert.Equal(t, []string{"$$INLINE_ACTION", "$$INLINE_ACTION1"}, res.Manifest.Names)
	assert.Contains(t, res.Code, "export { $$INLINE_ACTION, $$INLINE_ACTION1 };")
	assert.Less(t, strings.Index(res.Code, "var $$INLINE_ACTION1 ="), strings.Index(res.Code, "var $$INLINE_ACTION ="))
}

func TestTransform_FreshNamesAvoidCollisions(t *testing.T) {
	src := "const $$INLINE_ACTION = 1, $$register = 2, $$CLOSURE = 3;\n" +
		"function f(v) {\n  return async () => {\n    \"use server\";\n    return v;\n  };\n}\n"

	res := transform(t, "m.js", src)

	assert.Contains(t, res.Code, "import { registerServerReference as $$register1 }")
	assert.Contains(t, res.Code, "var $$INLINE_ACTION1 = $$register1(async ($$CLOSURE1) => {")
	assert.Equal(t, []string{"$$INLINE_ACTION1"}, res.Manifest.Names)
}

func TestTransform_Idempotent(t *testing.T) {
	sources := map[string]string{
		"module.js":  "\"use server\";\nexport async function a() {}\nexport default async () => 1;\n",
		"inline.js":  "function f(x) {\n  return async () => {\n    \"use server\";\n    return x;\n  };\n}\n",
		"mixed.tsx":  "export function F({ id }: { id: string }) {\n  async function go() {\n    \"use server\";\n    return id;\n  }\n  return <form action={go} />;\n}\n",
		"nothing.js": "export const a = 1;\n",
	}

	for path, src := range sources {
		t.Run(path, func(t *testing.T) {
			first := transform(t, path, src)
			second := transform(t, path, first.Code)

			assert.False(t, second.Changed)
			assert.Equal(t, first.Code, second.Code)
			assert.Empty(t, second.Manifest.Names)
		})
	}
}

func TestTransform_Deterministic(t *testing.T) {
	src := `function f(c, b, a) {
  return [
    async () => { "use server"; return [a, b, c, a]; },
    async () => { "use server"; return [c, b]; },
  ];
}
`

	first := transform(t, "m.js", src)
	for range 5 {
		again := transform(t, "m.js", src)
		assert.Equal(t, first.Code, again.Code)
		assert.Equal(t, first.Manifest, again.Manifest)
	}

	assert.Equal(t, []string{"a", "b", "c"}, first.Actions[0].Captures)
	assert.Equal(t, []string{"b", "c"}, first.Actions[1].Captures)
}

func TestTransform_NotMarkedUnchanged(t *testing.T) {
	src := "// plain module\nexport async function f() { return 1 }\n"

	res := transform(t, "m.js", src)

	assert.False(t, res.Changed)
	assert.Equal(t, NotMarked, res.Mode)
	assert.Equal(t, src, res.Code)
}

func TestTransform_ManifestComment(t *testing.T) {
	src := "\"use server\";\nexport async function a() {}\n"

	res, err := Transform(parse(t, "m.js", src), Options{FileID: "lib/m.js", ManifestComment: true})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.Code, "\n/* @server-actions {\"id\":\"lib/m.js\",\"names\":[\"a\"]} */\n"))

	m, ok := ParseManifestComment(res.Code)
	require.True(t, ok)
	assert.Equal(t, res.Manifest, m)
}

func TestTransform_CustomRuntime(t *testing.T) {
	src := "async function a() {\n  \"use server\";\n}\n"

	res, err := Transform(parse(t, "m.js", src), Options{
		FileID:        "m.js",
		RuntimeModule: "react-server-dom-webpack/server",
		RegisterName:  "registerServerReference",
	})
	require.NoError(t, err)

	assert.Contains(t, res.Code, `from "react-server-dom-webpack/server";`)
	assert.Contains(t, res.Code, "var a = $$register(async function a() {\n}, \"m.js\", \"a\");")
	assert.Contains(t, res.Code, "export { a };")
}

func TestTransform_NearMissDirective(t *testing.T) {
	src := "\"use sever\";\nexport async function a() {}\n"

	res := transform(t, "m.js", src)

	assert.False(t, res.Changed)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0].Message, `did you mean "use server"`)
	assert.Equal(t, 1, res.Diagnostics[0].Pos.Line)
}

func TestWrapParseError(t *testing.T) {
	_, err := adapter.NewLocalScriptAdapter().Parse("bad.js", []byte("function ( {\n"))
	require.Error(t, err)

	pe, ok := AsPassError(WrapParseError(err))
	require.True(t, ok)
	assert.Equal(t, CodeSyntaxError, pe.Code)
	assert.Equal(t, "bad.js", pe.Path)
}

func TestTransform_CaptureReadByParameterDefault(t *testing.T) {
	src := "export function o(a) {\n  return async (x = a) => {\n    \"use server\";\n    return x;\n  };\n}\n"

	res := transform(t, "m.js", src)

	require.Len(t, res.Actions, 1)
	assert.Equal(t, []string{"a"}, res.Actions[0].Captures)
	assert.Contains(t, res.Code, "var $$INLINE_ACTION = $$register(async ({ value: [a] }, x = a) => {\n")
	assert.Contains(t, res.Code, "return $$INLINE_ACTION.bind(null, { get value() { return "+
		"Object.defineProperty(this, \"value\", { value: [a] }).value; } });")
	assert.NotContains(t, res.Code, "$$CLOSURE")
}

func TestTransform_AssignedCapture(t *testing.T) {
	src := `export function counter() {
  let n = 0;
  return async () => {
    "use server";
    n++;
    return n;
  };
}
`

	res := transform(t, "m.js", src)

	assert.Contains(t, res.Code, "async ($$CLOSURE) => {\n"+
		"    let [n] = $$CLOSURE.value;\n"+
		"    n++;\n"+
		"    return n;\n"+
		"  }")
	assert.NotContains(t, res.Code, "const [n]")
}

func TestTransform_FallbackBeforeLaterImport(t *testing.T) {
	src := `seen.push(async () => {
  "use server";
  return 1;
});
import "./rt.mjs";
`

	res := transform(t, "m.js", src)

	decl := strings.Index(res.Code, "var $$INLINE_ACTION =")
	require.GreaterOrEqual(t, decl, 0)
	assert.Less(t, decl, strings.Index(res.Code, "seen.push($$INLINE_ACTION);"))
	assert.Less(t, strings.Index(res.Code, runtimeImport), decl)
	assert.Contains(t, res.Code, "import \"./rt.mjs\";")
}

func TestTransform_ArrowLexicalContextWarns(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "this",
			src:  "function f() {\n  return async () => {\n    \"use server\";\n    return this.id;\n  };\n}\n",
			want: `"this"`,
		},
		{
			name: "arguments",
			src:  "function f() {\n  return async () => {\n    \"use server\";\n    return arguments[0];\n  };\n}\n",
			want: `"arguments"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := transform(t, "m.js", tt.src)

			require.Len(t, res.Diagnostics, 1)
			assert.Contains(t, res.Diagnostics[0].Message, tt.want)
			assert.Contains(t, res.Diagnostics[0].Message, "once hoisted")
			assert.Equal(t, 4, res.Diagnostics[0].Pos.Line)
		})
	}
}

func TestTransform_OwnLexicalContextDoesNotWarn(t *testing.T) {
	src := `function f() {
  return async () => {
    "use server";
    const arguments_ = 1;
    return [function () { return this; }, class { m() { return arguments; } }, arguments_];
  };
}
`

	res := transform(t, "m.js", src)

	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Actions, 1)
}
