package cmd

import (
	"log/slog"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/condition"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/ai"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/conditional"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/humanapproval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/integration"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/trigger"
	"github.com/SanketsMane/Flowversal-sub007/pkg/executors/utility"
	"github.com/SanketsMane/Flowversal-sub007/pkg/protocol"
	"github.com/SanketsMane/Flowversal-sub007/pkg/registry"
)

// NewRegistry builds the executor registry with every native node executor
// registered under its node types.
func NewRegistry(
	logger *slog.Logger,
	modelClient protocol.ModelClient,
	httpClient protocol.HTTPDoer,
	mailer protocol.Mailer,
	approvals *approval.Service,
) *registry.Registry {
	reg := registry.NewRegistry(logger)

	conditionalExecutor := conditional.NewExecutor(logger, modelClient, condition.NewEvaluator(logger))

	reg.Register(trigger.NewExecutor(logger, conditionalExecutor))
	reg.Register(ai.NewExecutor(logger, modelClient))
	reg.Register(integration.NewExecutor(logger, httpClient, mailer))
	reg.Register(conditionalExecutor)
	reg.Register(utility.NewExecutor(logger))
	reg.Register(humanapproval.NewExecutor(logger, approvals))

	return reg
}
