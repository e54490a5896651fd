// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
)

type (
	// ActionableError is a failure reported to the user: the operation that
	// failed, the container, entry or file it concerned, hints on what to do
	// next and, optionally, the catalog entry that explains it at length.
	//
	//	return issue.NewErrorContext().
	//		WithOperation("open container").
	//		WithResource("./app.jar").
	//		WithIssue(issue.ContainerNotFoundId).
	//		WithSuggestion("Run 'bootpack pack' to build one").
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "open container".
		Operation string
		// Resource is the path or entry involved (optional).
		Resource string
		// Suggestions are printed as hints below the message.
		Suggestions []string
		// Cause is the underlying error (optional).
		Cause error
		// Issue links a catalog entry (optional).
		Issue Id
	}

	// ErrorContext accumulates the fields of an ActionableError. It can be
	// kept around and built more than once; each build gets its own copy of
	// the suggestions.
	ErrorContext struct {
		pending ActionableError
	}
)

// NewErrorContext returns an empty builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Annotate attaches an operation and resource to err. It returns nil when
// err is nil.
func Annotate(err error, operation, resource string) error {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Resource: resource, Cause: err}
}

// Error returns "<operation> (<resource>): <cause>", omitting the parts
// that are unset.
func (e *ActionableError) Error() string {
	var b strings.Builder
	b.WriteString(e.Operation)
	if e.Resource != "" {
		b.WriteString(" (")
		b.WriteString(e.Resource)
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message followed by one "hint:" line per suggestion.
// Verbose output appends every link of the cause chain.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())
	for _, s := range e.Suggestions {
		b.WriteString("\n  hint: ")
		b.WriteString(s)
	}
	if verbose && e.Cause != nil {
		b.WriteString("\n\ncaused by:")
		for _, link := range causeChain(e.Cause) {
			b.WriteString("\n  - ")
			b.WriteString(link)
		}
	}
	return b.String()
}

// Explain renders the linked catalog entry, or returns "" when the error
// carries none.
func (e *ActionableError) Explain(stylePath string) (string, error) {
	if e.Issue == 0 {
		return "", nil
	}
	entry := Get(e.Issue)
	if entry == nil {
		return "", nil
	}
	return entry.Render(stylePath)
}

// causeChain lists the messages from err down to its root cause.
// Multi-error unwraps list the sentinel first and the cause last; a lone
// sentinel ends the chain.
func causeChain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		if multi, ok := err.(interface{ Unwrap() []error }); ok {
			errs := multi.Unwrap()
			if len(errs) < 2 {
				break
			}
			err = errs[len(errs)-1]
			continue
		}
		err = errors.Unwrap(err)
	}
	return chain
}

// WithOperation sets the operation.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.pending.Operation = op
	return c
}

// WithResource sets the resource.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.pending.Resource = res
	return c
}

// WithSuggestion appends a hint.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.pending.Suggestions = append(c.pending.Suggestions, sug)
	return c
}

// WithSuggestions appends several hints.
func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.pending.Suggestions = append(c.pending.Suggestions, sugs...)
	return c
}

// WithIssue links the error to a catalog entry.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.pending.Issue = id
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.pending.Cause = err
	return c
}

// Build returns the ActionableError, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.pending.Operation == "" {
		return nil
	}
	ae := c.pending
	ae.Suggestions = append([]string(nil), c.pending.Suggestions...)
	return &ae
}

// BuildError is Build for return statements: it never yields a typed nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
