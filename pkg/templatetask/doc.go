// Package templatetask adapts the templating environment to the task host.
// A Task either compiles one template with data into final text or
// precompiles templates into a JavaScript module, and hands the result to the
// host Writer.
package templatetask
