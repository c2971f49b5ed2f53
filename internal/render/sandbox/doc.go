/*
Package sandbox executes compiled templates inside an isolated goja runtime.

# Overview

Every Execute call builds a fresh goja VM, so nothing a template does is
visible to another render. The VM's global scope is an explicit allow-list:

 1. ECMAScript built-ins provided by goja
 2. the caller's bindings (deep-copied) and the same copy as `locals`
 3. the capability functions handed in by the caller
 4. `console`, routed to the caller's log sink

The names in Suppressed (eval, Function, require, ...) are then forced to
undefined, whatever the bindings or capabilities contained. The constructor
property of the function prototypes is removed as well, so code cannot be
compiled at runtime through an existing function. This keeps ambient globals
out of reach of ordinary templates; it is not a defence against hostile code.

# Suspension

Template code runs on the calling goroutine. A capability that performs I/O
simply blocks until its result is ready and returns it to the script, which
then continues with the next statement.

# Limits

  - Context cancellation and deadlines interrupt the VM; Config.Timeout adds
    a deadline of its own. Callers that run capabilities doing I/O should put
    the deadline on the context they hand those capabilities, so blocked
    calls end with it.
  - Call stack depth is capped (Config.MaxCallStackSize)

# Failures

A failure while executing is returned as *Fault, carrying the template line
recorded by the compiled program and the underlying error. Errors raised by
capabilities come back as the original Go error value.
*/
package sandbox
