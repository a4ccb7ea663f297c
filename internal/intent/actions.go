package intent

import "github.com/cosmohq/cosmo-core/internal/types"

// ResolveActions expands a detected intent into an ordered action plan:
// one action per required function, with parameters bound from the
// extracted entities where the function can use them.
func ResolveActions(intentKey, prompt string, requiredFunctions []string, entities map[string][]string, reqCtx types.RequestContext) types.ActionPlan {
	plan := types.ActionPlan{}

	for _, fn := range requiredFunctions {
		action := types.CosmoAction{
			FunctionKey: fn,
			Parameters:  map[string]string{"query": prompt},
		}

		switch fn {
		case "maps":
			if place := first(entities["place"]); place != "" {
				action.Parameters["location"] = place
			}
		case "gmail":
			if email := first(entities["email"]); email != "" {
				action.Parameters["recipient"] = email
			}
		case "calendar":
			if date := first(entities["date"]); date != "" {
				action.Parameters["date"] = date
			}
		case "knowledge_base":
			if reqCtx.WorkspaceID != "" {
				action.Parameters["workspace_id"] = reqCtx.WorkspaceID
			}
			if q := first(entities["quoted"]); q != "" {
				action.Parameters["query"] = q
			}
		case "chat":
			// The orchestrator drives the conversational call; the plan
			// entry only records intent provenance.
			action.Parameters = map[string]string{"intent_key": intentKey}
		}

		plan.Actions = append(plan.Actions, action)
	}

	return plan
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
