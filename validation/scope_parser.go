// Package validation implements the protocol state machines: authorize and
// token request validation, client secret parsing and validation, client
// configuration checks, and scope/resource resolution.
package validation

import (
	"log"

	"github.com/legit-games/oidc-core/models"
)

// ScopeParser turns raw scope values into structured parsed scopes.
type ScopeParser interface {
	ParseScopeValues(scopeValues []string) *ParsedScopesResult
}

// ScopeParseError a scope value that failed to parse
type ScopeParseError struct {
	RawValue string
	Error    string
}

// ParsedScopesResult the outcome of parsing a set of raw scope values
type ParsedScopesResult struct {
	ParsedScopes []models.ParsedScopeValue
	Errors       []ScopeParseError
}

// Succeeded reports whether no scope produced an error.
func (r *ParsedScopesResult) Succeeded() bool {
	return len(r.Errors) == 0
}

// ParseScopeContext is handed to the per-value parse hook. The hook marks the
// value valid (optionally decomposed into name and parameter), failed, or
// ignored.
type ParseScopeContext struct {
	RawValue string

	parsedName      string
	parsedParameter string
	errMessage      string
	failed          bool
	ignored         bool
}

// SetParsedValues marks the value valid with the given name and parameter.
func (c *ParseScopeContext) SetParsedValues(name, parameter string) {
	c.parsedName = name
	c.parsedParameter = parameter
	c.failed = false
	c.ignored = false
}

// SetError marks the value invalid.
func (c *ParseScopeContext) SetError(message string) {
	c.errMessage = message
	c.failed = true
}

// SetIgnore silently drops the value from the result.
func (c *ParseScopeContext) SetIgnore() {
	c.ignored = true
}

// DefaultScopeParser treats every raw value as a valid scope name as-is.
// Deployments supporting parameterized scopes (e.g. "transaction:123") set
// ParseScopeValue to decompose them.
type DefaultScopeParser struct {
	// ParseScopeValue optional per-value hook. Nil keeps the raw value.
	ParseScopeValue func(*ParseScopeContext)
}

// ParseScopeValues parses all raw values, collecting errors without throwing.
func (p *DefaultScopeParser) ParseScopeValues(scopeValues []string) *ParsedScopesResult {
	result := &ParsedScopesResult{}
	for _, raw := range scopeValues {
		pctx := &ParseScopeContext{RawValue: raw, parsedName: raw}
		if p.ParseScopeValue != nil {
			p.ParseScopeValue(pctx)
		}
		switch {
		case pctx.ignored:
			log.Printf("scope value %q ignored by parser", raw)
		case pctx.failed:
			result.Errors = append(result.Errors, ScopeParseError{RawValue: raw, Error: pctx.errMessage})
		default:
			result.ParsedScopes = append(result.ParsedScopes, models.ParsedScopeValue{
				RawValue:        raw,
				ParsedName:      pctx.parsedName,
				ParsedParameter: pctx.parsedParameter,
			})
		}
	}
	return result
}
