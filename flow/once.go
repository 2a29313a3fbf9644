package flow

import (
	"context"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/model"
	"github.com/hupe1980/toolagent/tool"
)

// RunOnce performs a single manual tool round: the model is asked once with
// the catalog, any requested tools are executed, and the model is asked again
// without tools for the final answer.
func RunOnce(
	ctx context.Context,
	m model.Model,
	catalog *tool.Catalog,
	conv core.Conversation,
	optFns ...func(o *Options),
) (*Result, error) {
	fns := append([]func(o *Options){func(o *Options) {
		o.MaxSteps = 2
		o.MaxToolRounds = 1
	}}, optFns...)
	return New(m, catalog, fns...).Run(ctx, conv)
}
