package jsast

// Node kinds produced by the JavaScript and TypeScript grammars that the
// resolver and the rewriting passes care about.
const (
	KindProgram             = "program"
	KindExpressionStatement = "expression_statement"
	KindString              = "string"
	KindComment             = "comment"
	KindIdentifier          = "identifier"

	KindImportStatement = "import_statement"
	KindImportClause    = "import_clause"
	KindNamedImports    = "named_imports"
	KindImportSpecifier = "import_specifier"
	KindNamespaceImport = "namespace_import"

	KindExportStatement = "export_statement"
	KindExportClause    = "export_clause"
	KindExportSpecifier = "export_specifier"
	KindNamespaceExport = "namespace_export"

	KindFunctionDeclaration          = "function_declaration"
	KindGeneratorFunctionDeclaration = "generator_function_declaration"
	KindFunctionExpression           = "function_expression"
	KindGeneratorFunction            = "generator_function"
	KindArrowFunction                = "arrow_function"
	KindMethodDefinition             = "method_definition"
	KindFunctionSignature            = "function_signature"
	KindFormalParameters             = "formal_parameters"
	KindStatementBlock               = "statement_block"

	KindLexicalDeclaration  = "lexical_declaration"
	KindVariableDeclaration = "variable_declaration"
	KindVariableDeclarator  = "variable_declarator"

	KindClassDeclaration         = "class_declaration"
	KindAbstractClassDeclaration = "abstract_class_declaration"
	KindClass                    = "class"
	KindClassBody                = "class_body"
	KindClassStaticBlock         = "class_static_block"
	KindEnumDeclaration          = "enum_declaration"

	KindForStatement   = "for_statement"
	KindForInStatement = "for_in_statement"
	KindCatchClause    = "catch_clause"
	KindSwitchBody     = "switch_body"

	KindAssignmentExpression = "assignment_expression"
	KindParenthesized        = "parenthesized_expression"
	KindObject               = "object"
	KindPair                 = "pair"

	KindObjectPattern           = "object_pattern"
	KindArrayPattern            = "array_pattern"
	KindAssignmentPattern       = "assignment_pattern"
	KindObjectAssignmentPattern = "object_assignment_pattern"
	KindPairPattern             = "pair_pattern"
	KindRestPattern             = "rest_pattern"
	KindRequiredParameter       = "required_parameter"
	KindOptionalParameter       = "optional_parameter"

	KindShorthandProperty        = "shorthand_property_identifier"
	KindShorthandPropertyPattern = "shorthand_property_identifier_pattern"
	KindTypeIdentifier           = "type_identifier"

	KindError = "ERROR"
)

// IsFunctionLike reports whether kind is a function, arrow or method node.
func IsFunctionLike(kind string) bool {
	switch kind {
	case KindFunctionDeclaration, KindGeneratorFunctionDeclaration, KindFunctionExpression,
		KindGeneratorFunction, KindArrowFunction, KindMethodDefinition:
		return true
	}

	return false
}

// IsDeclarationStatement reports whether kind is a top-level statement that
// declares names, including export statements.
func IsDeclarationStatement(kind string) bool {
	switch kind {
	case KindLexicalDeclaration, KindVariableDeclaration, KindFunctionDeclaration,
		KindGeneratorFunctionDeclaration, KindClassDeclaration, KindAbstractClassDeclaration,
		KindExportStatement, KindEnumDeclaration:
		return true
	}

	return false
}

// typeContexts are TypeScript constructs whose identifiers name types, not values.
var typeContexts = map[string]bool{
	"type_annotation":           true,
	"type_arguments":            true,
	"type_parameters":           true,
	"type_alias_declaration":    true,
	"interface_declaration":     true,
	"implements_clause":         true,
	"type_predicate_annotation": true,
	"asserts_annotation":        true,
	"opting_type_annotation":    true,
	"omitting_type_annotation":  true,
	"ambient_declaration":       true,
	"function_signature":        true,
	"index_signature":           true,
}
