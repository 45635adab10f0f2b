package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins is the closed set of builtins an issuance policy may use.
// Everything here is pure and deterministic; time, network, and randomness
// builtins stay out so a bundle evaluates identically on every replica.
var allowedBuiltins = map[string]struct{}{
	// comparison
	"eq":    {},
	"equal": {},
	"neq":   {},
	"gt":    {},
	"gte":   {},
	"lt":    {},
	"lte":   {},

	// numbers
	"abs":           {},
	"ceil":          {},
	"floor":         {},
	"format_int":    {},
	"format_number": {},
	"max":           {},
	"min":           {},
	"pow":           {},
	"round":         {},
	"sum":           {},

	// strings
	"concat":     {},
	"contains":   {},
	"endswith":   {},
	"lower":      {},
	"replace":    {},
	"split":      {},
	"sprintf":    {},
	"startswith": {},
	"substring":  {},
	"trim":       {},
	"trim_left":  {},
	"trim_right": {},
	"upper":      {},

	// collections and objects
	"count":         {},
	"sort":          {},
	"object.get":    {},
	"object.remove": {},
	"object.union":  {},

	// encoding
	"json.marshal":    {},
	"json.unmarshal":  {},
	"urlquery.decode": {},
	"urlquery.encode": {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
