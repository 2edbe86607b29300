package agent

import (
	"github.com/jlindermeir/ami0/internal/app"
	"github.com/jlindermeir/ami0/internal/schema"
)

// Built-in action tags owned by the loop itself.
const (
	TagLaunchApp = "launch_app"
	TagExitApp   = "exit_app"
	// FieldAppName is the launch_app payload field naming the target app.
	FieldAppName = "app_name"
)

// launchModel returns the home-screen action variant. The app name field is
// constrained to the closed set of registered names, which makes an unknown
// app unrepresentable rather than merely rejected after the fact.
func launchModel(names []string) schema.ActionModel {
	return schema.ActionModel{
		Tag:         TagLaunchApp,
		Description: "Launch one of the available apps.",
		Payload: schema.Object(map[string]*schema.Node{
			FieldAppName: schema.StringEnum("Name of the app to launch.", names...),
		}),
	}
}

// exitModel returns the payload-free exit variant available inside any app.
func exitModel() schema.ActionModel {
	return schema.ActionModel{
		Tag:         TagExitApp,
		Description: "Exit the current app and return to the home screen.",
	}
}

// ComposeSchema computes the exact reply schema for the current state. It
// is pure and is recomputed every turn, so a registry whose usage or roster
// changes between turns is always reflected in the next schema.
//
// Home state (current == nil): the action union has exactly one member,
// launch_app, with the registered names as a closed enum. In-app state: the
// union is the app's declared variants plus exit_app.
func ComposeSchema(reg *app.Registry, current app.App) (*schema.Node, error) {
	if current == nil {
		names := reg.Names()
		if len(names) == 0 {
			return nil, Errorf(KindConfiguration, "cannot compose home schema: no apps registered")
		}
		return schema.Reply([]schema.ActionModel{launchModel(names)}), nil
	}

	appModels := current.ActionModels()
	models := make([]schema.ActionModel, 0, len(appModels)+1)
	seen := make(map[string]bool, len(appModels)+1)
	for _, m := range appModels {
		if m.Tag == TagLaunchApp || m.Tag == TagExitApp || seen[m.Tag] {
			return nil, Errorf(KindConfiguration, "app %q declares reserved or duplicate action tag %q", current.Name(), m.Tag)
		}
		seen[m.Tag] = true
		models = append(models, m)
	}
	models = append(models, exitModel())
	return schema.Reply(models), nil
}

// appActionTags returns the set of tags the active app accepts.
func appActionTags(a app.App) map[string]bool {
	tags := make(map[string]bool)
	for _, m := range a.ActionModels() {
		tags[m.Tag] = true
	}
	return tags
}
