/*
Package tracing provides lightweight request and render tracing.

# Overview

A trace starts at the HTTP edge (HTTPMiddleware) or at the first span created
on a bare context, and is carried through context.Context. The render engine
opens one span per top-level render and one child span per include, so a slow
page can be broken down by template.

Finished spans are handed to a buffered collector that writes them to the
structured log. When the buffer is full, spans are dropped with a warning.

# Usage

	tracer := tracing.New("sandrender", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "render")
	defer tracer.End(span)
	span.SetTag("template", name)

# Propagation

  - X-Trace-ID: identifies the whole request flow
  - X-Span-ID: identifies the caller's span
*/
package tracing
