package embedded

import "github.com/ectomigo/ectomigo/internal/parser"

// hostSyntax describes how SQL strings are written in one host language.
// Queries are tried in order; captures named str* are string fragments and
// the first capture of every match locates it.
type hostSyntax struct {
	queries []string
	// leaves are string literal nodes.
	leaves map[string]bool
	// composites are expressions whose string leaves are concatenated.
	composites map[string]bool
	// interpolations are embedded host expressions inside a string.
	interpolations map[string]bool
}

func set(types ...string) map[string]bool {
	m := make(map[string]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

var javaScriptSyntax = hostSyntax{
	queries: []string{
		`(binary_expression) @str`,
		`(array (string) @str ("," (string) @strnext)*)`,
		`(template_string) @str`,
		`(string) @str`,
	},
	leaves:         set("string", "template_string"),
	composites:     set("binary_expression", "parenthesized_expression"),
	interpolations: set("template_substitution"),
}

var hostSyntaxes = map[parser.Language]hostSyntax{
	parser.LangJava: {
		queries: []string{
			`((expression_statement
			    (method_invocation
			      arguments: (argument_list . (string_literal) @str)))
			  (expression_statement
			    (method_invocation
			      name: (identifier) @mname
			      arguments: (argument_list . (string_literal) @str))
			    (#eq? @mname "append"))*)`,
			`((local_variable_declaration
			    declarator: (variable_declarator
			      value: (object_creation_expression
			        arguments: (argument_list . (string_literal) @str))))
			  (expression_statement
			    (method_invocation
			      name: (identifier) @mname
			      arguments: (argument_list . (string_literal) @str))
			    (#eq? @mname "append"))*)`,
			`(binary_expression) @str`,
			`(element_value_array_initializer (string_literal) @str ("," (string_literal) @strnext)*)`,
			`(string_literal) @str`,
		},
		leaves:     set("string_literal"),
		composites: set("binary_expression", "parenthesized_expression"),
	},
	parser.LangJavaScript: javaScriptSyntax,
	parser.LangTypeScript: javaScriptSyntax,
	parser.LangPython: {
		queries: []string{
			`(binary_operator) @str`,
			`(concatenated_string) @str`,
			`(list (string) @str ("," (string) @strnext)*)`,
			`(string) @str`,
		},
		leaves:         set("string"),
		composites:     set("binary_operator", "concatenated_string", "parenthesized_expression"),
		interpolations: set("interpolation"),
	},
	parser.LangGo: {
		queries: []string{
			`(binary_expression) @str`,
			`(raw_string_literal) @str`,
			`(interpreted_string_literal) @str`,
		},
		leaves:     set("raw_string_literal", "interpreted_string_literal"),
		composites: set("binary_expression", "parenthesized_expression"),
	},
	parser.LangCSharp: {
		queries: []string{
			`(binary_expression) @str`,
			`(interpolated_string_expression) @str`,
			`(verbatim_string_literal) @str`,
			`(raw_string_literal) @str`,
			`(string_literal) @str`,
		},
		leaves:         set("string_literal", "verbatim_string_literal", "raw_string_literal", "interpolated_string_expression"),
		composites:     set("binary_expression", "parenthesized_expression"),
		interpolations: set("interpolation"),
	},
}
