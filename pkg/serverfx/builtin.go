package serverfx

import (
	"github.com/joeydtaylor/steeze-project/pkg/core"
	"github.com/joeydtaylor/steeze-project/pkg/method"
)

// RegisterBuiltins adds the introspection methods every served App exposes:
//
//	app.methods  sorted registered method names
//	app.state    idle, initing or inited
//	app.config   the value at params["key"]
func RegisterBuiltins(app *core.App) error {
	if err := app.Method("app.methods").Register(func(any) (any, error) {
		return app.Methods.Names(), nil
	}); err != nil {
		return err
	}
	if err := app.Method("app.state").Register(func(any) (any, error) {
		return app.State().String(), nil
	}); err != nil {
		return err
	}

	cfg := app.Method("app.config")
	if err := cfg.Check(method.Schema{
		"key": {Required: true, Validate: func(v any) bool {
			s, ok := v.(string)
			return ok && s != ""
		}},
	}); err != nil {
		return err
	}
	return cfg.Register(func(in any) (any, error) {
		p, _ := in.(map[string]any)
		key, _ := p["key"].(string)
		return app.Config.Get(key)
	})
}
